package crypto

import (
	"errors"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrDecryptionFailed is returned when a ciphertext fails authentication or
// cannot be opened under the supplied key material.
var ErrDecryptionFailed = errors.New("decryption failed")

// Decrypt decrypts a message from a sender using authenticated public-key
// encryption (NaCl box).
func Decrypt(ciphertext []byte, nonce Nonce, senderPK [32]byte, recipientSK [32]byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, errors.New("empty ciphertext")
	}

	decrypted, ok := box.Open(nil, ciphertext, (*[24]byte)(&nonce), (*[32]byte)(&senderPK), (*[32]byte)(&recipientSK))
	if !ok {
		return nil, ErrDecryptionFailed
	}

	return decrypted, nil
}

// DecryptSymmetric decrypts a message using a symmetric key.
func DecryptSymmetric(ciphertext []byte, nonce Nonce, key [32]byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, errors.New("empty ciphertext")
	}

	out, ok := secretbox.Open(nil, ciphertext, (*[24]byte)(&nonce), (*[32]byte)(&key))
	if !ok {
		return nil, ErrDecryptionFailed
	}

	return out, nil
}
