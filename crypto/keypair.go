package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/curve25519"
)

// KeySource identifies how a keypair was derived. The tag travels with the
// keypair through the local cache so a later session can tell a deterministic
// key from one that cannot be re-derived on another device.
type KeySource uint8

const (
	// SourceEOA is a key derived from a wallet signature over the fixed
	// consent message.
	SourceEOA KeySource = iota
	// SourcePasskeyPRF is a key derived from a hardware credential's PRF
	// extension output.
	SourcePasskeyPRF
	// SourcePasskeyFallback is a randomly generated key created when the
	// credential does not support PRF evaluation.
	SourcePasskeyFallback
	// SourcePIN is a key stretched from a user PIN and an account-bound salt.
	SourcePIN
	// SourceLegacy is a pre-existing non-deterministic key from before
	// deterministic derivation shipped.
	SourceLegacy
)

// String returns the wire/storage name of the source tag.
func (s KeySource) String() string {
	switch s {
	case SourceEOA:
		return "eoa"
	case SourcePasskeyPRF:
		return "passkey-prf"
	case SourcePasskeyFallback:
		return "passkey-fallback"
	case SourcePIN:
		return "pin"
	case SourceLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Deterministic reports whether a key with this source can be re-derived from
// its auth secret on a different device.
func (s KeySource) Deterministic() bool {
	switch s {
	case SourceEOA, SourcePasskeyPRF, SourcePIN:
		return true
	default:
		return false
	}
}

// ParseKeySource converts a stored source name back to its tag.
func ParseKeySource(name string) (KeySource, error) {
	switch name {
	case "eoa":
		return SourceEOA, nil
	case "passkey-prf":
		return SourcePasskeyPRF, nil
	case "passkey-fallback":
		return SourcePasskeyFallback, nil
	case "pin":
		return SourcePIN, nil
	case "legacy":
		return SourceLegacy, nil
	default:
		return 0, errors.New("unknown key source: " + name)
	}
}

// AuthType identifies the authentication method the user signed in with. It
// selects the derivation path and whether a PIN flow is required.
type AuthType uint8

const (
	AuthWallet AuthType = iota
	AuthPasskey
	AuthEmail
	AuthDigitalID
	AuthSolana
)

// String returns the canonical name of the auth type.
func (a AuthType) String() string {
	switch a {
	case AuthWallet:
		return "wallet"
	case AuthPasskey:
		return "passkey"
	case AuthEmail:
		return "email"
	case AuthDigitalID:
		return "digitalid"
	case AuthSolana:
		return "solana"
	default:
		return "unknown"
	}
}

// RequiresPIN reports whether this auth type derives its key from a PIN.
// Wallet and passkey logins carry their own reproducible secret; the rest
// have nothing device-independent to derive from except a user PIN.
func (a AuthType) RequiresPIN() bool {
	switch a {
	case AuthEmail, AuthDigitalID, AuthSolana:
		return true
	default:
		return false
	}
}

// KeyPair represents a Curve25519 keypair together with the source it was
// derived from. The private key never leaves the device except as ciphertext
// artifacts produced by this package.
type KeyPair struct {
	Public  [32]byte
	Private [32]byte
	Source  KeySource
}

// GenerateKeyPair creates a new random keypair. Used for the passkey
// fallback path and for legacy-style keys; deterministic paths go through
// FromSeed.
func GenerateKeyPair(source KeySource) (*KeyPair, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}
	kp, err := FromSeed(seed, source)
	ZeroBytes(seed[:])
	return kp, err
}

// FromSeed builds a keypair from 32 bytes of seed material, clamping the
// seed into a valid Curve25519 scalar and deriving the public key.
func FromSeed(seed [32]byte, source KeySource) (*KeyPair, error) {
	if isZeroKey(seed) {
		return nil, errors.New("invalid seed: all zeros")
	}

	var private [32]byte
	copy(private[:], seed[:])
	clampScalar(&private)

	public, err := curve25519.X25519(private[:], curve25519.Basepoint)
	if err != nil {
		ZeroBytes(private[:])
		return nil, err
	}

	kp := &KeyPair{Source: source, Private: private}
	copy(kp.Public[:], public)
	return kp, nil
}

// clampScalar applies the standard Curve25519 scalar clamping so that every
// seed maps to a valid private key.
func clampScalar(k *[32]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

// isZeroKey checks if a key consists of all zeros.
func isZeroKey(key [32]byte) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}
