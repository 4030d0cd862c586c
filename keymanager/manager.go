package keymanager

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/sealedchat/crypto"
	"github.com/opd-ai/sealedchat/storage"
)

// prfEvalInput is the fixed PRF evaluation input. A fixed input makes the
// PRF output, and therefore the derived key, stable across sessions.
var prfEvalInput = []byte("sealedchat-passkey-prf-input-v1")

// DeriveResult carries a derived keypair plus derivation caveats the caller
// must surface to the user.
type DeriveResult struct {
	KeyPair *crypto.KeyPair

	// PRFFallback is true when the passkey credential lacked PRF support
	// and a random keypair was generated instead. The key works, but it
	// cannot be re-derived on another device, and the user should be told.
	PRFFallback bool
}

// Manager owns the device's active keypair and its synchronization with the
// remote key directory.
type Manager struct {
	mu        sync.RWMutex
	store     *storage.Store
	directory DirectoryClient
	cached    *crypto.KeyPair
}

// NewManager creates a key manager over a local store and a directory client.
func NewManager(store *storage.Store, directory DirectoryClient) *Manager {
	return &Manager{
		store:     store,
		directory: directory,
	}
}

// DeriveKey derives the keypair for the given auth type and activates it as
// the device's keypair. The derivation is deterministic for wallet, passkey
// PRF, and PIN sources: the same secret always produces the same keypair,
// which is what makes multi-device recovery possible.
func (m *Manager) DeriveKey(ctx context.Context, authType crypto.AuthType, userAddress string, secret SecretSource) (*DeriveResult, error) {
	address := crypto.NormalizeAddress(userAddress)

	logrus.WithFields(logrus.Fields{
		"function":  "DeriveKey",
		"auth_type": authType.String(),
		"address":   address,
	}).Info("Deriving encryption keypair")

	result, err := m.deriveForAuthType(ctx, authType, address, secret)
	if err != nil {
		return nil, &KeyDerivationError{AuthType: authType, Err: err}
	}

	if err := m.activate(result.KeyPair); err != nil {
		return nil, fmt.Errorf("failed to activate keypair: %w", err)
	}

	if authType.RequiresPIN() {
		// Remember a local verifier so later sessions can check the PIN
		// without a directory round-trip.
		if err := m.store.SavePINVerifier(address, pinVerifier(result.KeyPair)); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "DeriveKey",
				"error":    err.Error(),
			}).Warn("Failed to persist PIN verifier")
		}
	}

	return result, nil
}

// deriveForAuthType dispatches to the derivation path for one auth variant.
func (m *Manager) deriveForAuthType(ctx context.Context, authType crypto.AuthType, address string, secret SecretSource) (*DeriveResult, error) {
	switch authType {
	case crypto.AuthWallet:
		return deriveFromWallet(ctx, secret.Wallet)
	case crypto.AuthPasskey:
		return deriveFromPasskey(ctx, secret.Passkey)
	case crypto.AuthEmail, crypto.AuthDigitalID, crypto.AuthSolana:
		kp, err := crypto.DeriveFromPIN(secret.PIN, address)
		if err != nil {
			return nil, err
		}
		// When the directory already holds a key for this account, a PIN
		// that derives a different public key is simply wrong. Activating
		// the mismatched key would strand every message encrypted under the
		// published one.
		remote, err := m.directory.GetPublicKey(ctx, address)
		if err != nil {
			crypto.WipeKeyPair(kp)
			return nil, &DirectoryError{Op: "lookup", Err: err}
		}
		if remote != nil && !bytes.Equal(remote, kp.Public[:]) {
			crypto.WipeKeyPair(kp)
			return nil, ErrPINMismatch
		}
		return &DeriveResult{KeyPair: kp}, nil
	default:
		return nil, fmt.Errorf("unsupported auth type %d", authType)
	}
}

func deriveFromWallet(ctx context.Context, signer WalletSigner) (*DeriveResult, error) {
	if signer == nil {
		return nil, ErrMissingSecret
	}

	signature, err := signer.SignMessage(ctx, crypto.ConsentMessage)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrSignatureRejected, err)
	}

	kp, err := crypto.DeriveFromSignature(signature)
	crypto.ZeroBytes(signature)
	if err != nil {
		return nil, err
	}
	return &DeriveResult{KeyPair: kp}, nil
}

func deriveFromPasskey(ctx context.Context, prf PRFEvaluator) (*DeriveResult, error) {
	if prf == nil {
		return nil, ErrMissingSecret
	}

	output, supported, err := prf.Evaluate(ctx, prfEvalInput)
	if err != nil {
		return nil, fmt.Errorf("prf evaluation failed: %w", err)
	}

	if !supported {
		logrus.WithFields(logrus.Fields{
			"function": "deriveFromPasskey",
		}).Warn("Authenticator lacks PRF support, generating fallback keypair")

		kp, err := crypto.GenerateKeyPair(crypto.SourcePasskeyFallback)
		if err != nil {
			return nil, err
		}
		return &DeriveResult{KeyPair: kp, PRFFallback: true}, nil
	}

	kp, err := crypto.DeriveFromPRF(output)
	crypto.ZeroBytes(output)
	if err != nil {
		return nil, err
	}
	return &DeriveResult{KeyPair: kp}, nil
}

// activate installs a keypair as the device's single active keypair. The
// prior cached keypair is cleared explicitly first.
func (m *Manager) activate(kp *crypto.KeyPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.ClearKeyPair(); err != nil {
		return err
	}
	if err := m.store.SaveKeyPair(kp); err != nil {
		return err
	}
	m.cached = kp
	return nil
}

// ActiveKeyPair returns the device's active keypair, loading it from the
// local store on first use. Returns (nil, nil) when the device has none.
func (m *Manager) ActiveKeyPair() (*crypto.KeyPair, error) {
	m.mu.RLock()
	if m.cached != nil {
		kp := m.cached
		m.mu.RUnlock()
		return kp, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached != nil {
		return m.cached, nil
	}

	kp, err := m.store.LoadKeyPair()
	if err != nil {
		return nil, err
	}
	m.cached = kp
	return kp, nil
}

// ClearKey removes the active keypair from the device.
func (m *Manager) ClearKey() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil {
		crypto.WipeKeyPair(m.cached)
		m.cached = nil
	}
	return m.store.ClearKeyPair()
}

// PublishPublicKey upserts the public key to the remote directory, keyed by
// normalized address. Idempotent: publishing a key the directory already
// holds is a no-op.
func (m *Manager) PublishPublicKey(ctx context.Context, userAddress string, publicKey []byte) error {
	address := crypto.NormalizeAddress(userAddress)

	existing, err := m.directory.GetPublicKey(ctx, address)
	if err != nil {
		return &DirectoryError{Op: "lookup", Err: err}
	}
	if bytes.Equal(existing, publicKey) {
		logrus.WithFields(logrus.Fields{
			"function": "PublishPublicKey",
			"address":  address,
		}).Debug("Public key already published")
		return nil
	}

	if err := m.directory.UpsertPublicKey(ctx, address, publicKey); err != nil {
		return &DirectoryError{Op: "upsert", Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"function": "PublishPublicKey",
		"address":  address,
	}).Info("Public key published to directory")
	return nil
}

// ConversationKey exposes the ECDH-derived symmetric key payload codecs use
// for this conversation. The private key itself never crosses this boundary.
func (m *Manager) ConversationKey(peerPublicKey [32]byte) ([32]byte, error) {
	kp, err := m.ActiveKeyPair()
	if err != nil {
		return [32]byte{}, err
	}
	if kp == nil {
		return [32]byte{}, fmt.Errorf("no active keypair on this device")
	}
	return crypto.ConversationKey(kp, peerPublicKey)
}

// pinVerifier computes the local verifier stored after a successful PIN
// derivation. Hashing the public key keeps the PIN itself out of storage.
func pinVerifier(kp *crypto.KeyPair) []byte {
	sum := sha256.Sum256(kp.Public[:])
	return sum[:]
}
