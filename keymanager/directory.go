package keymanager

import (
	"context"

	"github.com/opd-ai/sealedchat/crypto"
)

// RemoteKeyInfo describes what the directory holds for an address.
type RemoteKeyInfo struct {
	HasKey bool
	Source crypto.KeySource
}

// DirectoryClient is the contract sealedchat requires from the remote public
// key directory. Addresses passed to implementations are already normalized.
type DirectoryClient interface {
	// GetPublicKey returns the published public key for an address, or nil
	// when the directory holds none.
	GetPublicKey(ctx context.Context, address string) ([]byte, error)

	// UpsertPublicKey publishes (or replaces) the public key for an address.
	UpsertPublicKey(ctx context.Context, address string, publicKey []byte) error

	// GetRemoteKeySource reports whether a key exists remotely and which
	// derivation source produced it.
	GetRemoteKeySource(ctx context.Context, address string) (RemoteKeyInfo, error)

	// VerifyPinAgainstRemote checks a PIN against the directory's stored
	// derivation for the address. Used when the device has no local
	// verifier yet.
	VerifyPinAgainstRemote(ctx context.Context, pin, address string) (bool, error)
}

// WalletSigner produces a signature over a message using the user's wallet.
// Signing the fixed consent message is the reproducible secret behind
// wallet-derived keys; it blocks on user approval and carries no timeout of
// its own, so callers cancel via ctx when the session closes.
type WalletSigner interface {
	SignMessage(ctx context.Context, message string) ([]byte, error)
}

// PRFEvaluator evaluates a passkey credential's PRF extension. supported is
// false when the authenticator lacks the extension, in which case output is
// nil and err is nil.
type PRFEvaluator interface {
	Evaluate(ctx context.Context, input []byte) (output []byte, supported bool, err error)
}

// SecretSource bundles the auth secrets a session can offer. Only the field
// matching the auth type is consulted.
type SecretSource struct {
	Wallet  WalletSigner
	Passkey PRFEvaluator
	PIN     string
}
