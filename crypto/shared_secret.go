package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const conversationKeyDomain = "sealedchat-conversation-key-v1"

// DeriveSharedSecret computes a shared secret between two parties using
// Elliptic Curve Diffie-Hellman (ECDH) on Curve25519.
func DeriveSharedSecret(peerPublicKey, privateKey [32]byte) ([32]byte, error) {
	logrus.WithFields(logrus.Fields{
		"function":        "DeriveSharedSecret",
		"peer_key_prefix": fmt.Sprintf("%x", peerPublicKey[:8]),
	}).Debug("Computing shared secret using ECDH")

	// Work on copies so the caller's keys are never modified.
	var publicKeyCopy [32]byte
	var privateKeyCopy [32]byte
	copy(publicKeyCopy[:], peerPublicKey[:])
	copy(privateKeyCopy[:], privateKey[:])

	sharedSecret, err := curve25519.X25519(privateKeyCopy[:], publicKeyCopy[:])
	if err != nil {
		ZeroBytes(privateKeyCopy[:])
		return [32]byte{}, fmt.Errorf("failed to compute shared secret: %w", err)
	}

	var result [32]byte
	copy(result[:], sharedSecret)

	ZeroBytes(privateKeyCopy[:])
	ZeroBytes(sharedSecret)

	return result, nil
}

// ConversationKey derives the symmetric key both parties use for payload
// codecs in a conversation. Each side computes it from its own private key
// and the peer's public key; ECDH guarantees both arrive at the same bytes.
// The raw ECDH output is passed through HKDF under a conversation-specific
// label so the same keypairs can later support other key purposes without
// key reuse.
func ConversationKey(self *KeyPair, peerPublicKey [32]byte) ([32]byte, error) {
	shared, err := DeriveSharedSecret(peerPublicKey, self.Private)
	if err != nil {
		return [32]byte{}, err
	}
	defer ZeroBytes(shared[:])

	var key [32]byte
	r := hkdf.New(sha256.New, shared[:], nil, []byte(conversationKeyDomain))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return [32]byte{}, fmt.Errorf("failed to expand conversation key: %w", err)
	}
	return key, nil
}
