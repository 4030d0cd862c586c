package payload

import (
	"errors"

	"github.com/opd-ai/sealedchat/crypto"
)

// ErrBlobTooShort is returned when a ciphertext blob is shorter than its
// nonce prefix.
var ErrBlobTooShort = errors.New("payload: blob too short")

// Encrypt seals a plaintext blob under the conversation key. The random
// nonce is prefixed to the ciphertext so Decrypt is self-contained.
func Encrypt(plaintext []byte, key [32]byte) ([]byte, error) {
	nonce, err := crypto.GenerateNonce()
	if err != nil {
		return nil, err
	}

	sealed, err := crypto.EncryptSymmetric(plaintext, nonce, key)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, len(nonce)+len(sealed))
	blob = append(blob, nonce[:]...)
	blob = append(blob, sealed...)
	return blob, nil
}

// Decrypt opens a blob produced by Encrypt.
func Decrypt(blob []byte, key [32]byte) ([]byte, error) {
	if len(blob) < len(crypto.Nonce{}) {
		return nil, ErrBlobTooShort
	}

	var nonce crypto.Nonce
	copy(nonce[:], blob[:len(nonce)])
	return crypto.DecryptSymmetric(blob[len(nonce):], nonce, key)
}
