package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/scrypt"
)

// ConsentMessage is the fixed, user-visible message a wallet signs to derive
// the encryption key. It must never change: the signature over it is the
// reproducible secret that makes the derived key recoverable on any device.
const ConsentMessage = "sealedchat key derivation v1\n\n" +
	"Sign this message to unlock your encrypted messages.\n" +
	"This signature stays on your device and never costs gas."

// Domain separation labels for HKDF. Distinct labels keep keys derived from
// different secret classes in disjoint key spaces even if the underlying
// secret bytes collide.
const (
	signatureDomain = "sealedchat-signature-key-v1"
	prfDomain       = "sealedchat-passkey-prf-key-v1"
	pinDomain       = "sealedchat-pin-key-v1"
	pinSaltDomain   = "sealedchat-pin-salt-v1"
)

// scrypt cost parameters for PIN stretching. A PIN has very little entropy,
// so the work factor carries most of the defense.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// MinPINLength is the minimum number of digits a PIN must have.
const MinPINLength = 6

var (
	// ErrMalformedPIN is returned when a PIN fails validation.
	ErrMalformedPIN = errors.New("pin must be at least 6 numeric digits")
	// ErrEmptySecret is returned when derivation input material is empty.
	ErrEmptySecret = errors.New("empty secret material")
)

// DeriveFromSignature derives a deterministic keypair from a wallet
// signature over ConsentMessage. The same signature always yields the same
// keypair, which is what lets a second device recover the key by re-signing.
func DeriveFromSignature(signature []byte) (*KeyPair, error) {
	if len(signature) == 0 {
		return nil, ErrEmptySecret
	}

	logrus.WithFields(logrus.Fields{
		"function": "DeriveFromSignature",
		"sig_len":  len(signature),
	}).Debug("Deriving keypair from wallet signature")

	seed, err := expandSeed(signature, signatureDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to expand signature: %w", err)
	}
	defer ZeroBytes(seed[:])

	return FromSeed(seed, SourceEOA)
}

// DeriveFromPRF derives a deterministic keypair from a passkey credential's
// PRF extension output.
func DeriveFromPRF(prfOutput []byte) (*KeyPair, error) {
	if len(prfOutput) == 0 {
		return nil, ErrEmptySecret
	}

	logrus.WithFields(logrus.Fields{
		"function": "DeriveFromPRF",
	}).Debug("Deriving keypair from passkey PRF output")

	seed, err := expandSeed(prfOutput, prfDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to expand PRF output: %w", err)
	}
	defer ZeroBytes(seed[:])

	return FromSeed(seed, SourcePasskeyPRF)
}

// DeriveFromPIN derives a deterministic keypair by stretching the PIN with
// scrypt under an account-bound salt, then expanding the result with HKDF.
// Binding the salt to the address keeps two users with the same PIN on
// different keys.
func DeriveFromPIN(pin, userAddress string) (*KeyPair, error) {
	if err := ValidatePIN(pin); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "DeriveFromPIN",
		"address":  NormalizeAddress(userAddress),
	}).Debug("Deriving keypair from PIN")

	stretched, err := scrypt.Key([]byte(pin), PINSalt(userAddress), scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, fmt.Errorf("scrypt stretching failed: %w", err)
	}
	defer ZeroBytes(stretched)

	seed, err := expandSeed(stretched, pinDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to expand stretched pin: %w", err)
	}
	defer ZeroBytes(seed[:])

	return FromSeed(seed, SourcePIN)
}

// PINSalt returns the account-bound scrypt salt for an address.
func PINSalt(userAddress string) []byte {
	sum := sha256.Sum256([]byte(pinSaltDomain + ":" + NormalizeAddress(userAddress)))
	return sum[:]
}

// ValidatePIN checks that a PIN is at least MinPINLength numeric digits.
func ValidatePIN(pin string) error {
	if len(pin) < MinPINLength {
		return ErrMalformedPIN
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return ErrMalformedPIN
		}
	}
	return nil
}

// NormalizeAddress lowercases and trims an address so both conversation
// participants compute identical identifiers and directory keys.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// expandSeed runs HKDF-SHA256 over secret material under a domain label and
// returns 32 bytes of seed.
func expandSeed(material []byte, domain string) ([32]byte, error) {
	var seed [32]byte
	r := hkdf.New(sha256.New, material, nil, []byte(domain))
	if _, err := io.ReadFull(r, seed[:]); err != nil {
		return [32]byte{}, err
	}
	return seed, nil
}
