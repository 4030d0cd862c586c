package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

// Nonce is a 24-byte value used for encryption.
type Nonce [24]byte

// GenerateNonce creates a cryptographically secure random nonce.
func GenerateNonce() (Nonce, error) {
	var nonce Nonce
	_, err := rand.Read(nonce[:])
	if err != nil {
		return Nonce{}, err
	}
	return nonce, nil
}

// MaxMessageSize caps plaintext size at 4MB so a hostile peer cannot force
// excessive allocation through the codec path.
const MaxMessageSize = 4 * 1024 * 1024

// Encrypt encrypts a message for a recipient using authenticated public-key
// encryption (NaCl box).
func Encrypt(message []byte, nonce Nonce, recipientPK [32]byte, senderSK [32]byte) ([]byte, error) {
	if len(message) > MaxMessageSize {
		return nil, errors.New("message too large")
	}

	encrypted := box.Seal(nil, message, (*[24]byte)(&nonce), (*[32]byte)(&recipientPK), (*[32]byte)(&senderSK))
	return encrypted, nil
}

// EncryptSymmetric encrypts a message using a symmetric key.
//
// NaCl's secretbox provides both confidentiality and integrity protection.
func EncryptSymmetric(message []byte, nonce Nonce, key [32]byte) ([]byte, error) {
	if len(message) > MaxMessageSize {
		return nil, errors.New("message too large")
	}

	out := secretbox.Seal(nil, message, (*[24]byte)(&nonce), (*[32]byte)(&key))
	return out, nil
}
