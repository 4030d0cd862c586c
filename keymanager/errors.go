package keymanager

import (
	"errors"
	"fmt"

	"github.com/opd-ai/sealedchat/crypto"
)

var (
	// ErrSignatureRejected is returned when the wallet refuses to sign the
	// consent message. Retryable: the user can approve the prompt again.
	ErrSignatureRejected = errors.New("wallet signature rejected")

	// ErrPINMismatch is returned when a PIN derives a key that contradicts
	// the one published for the account. Retryable with no lockout at this
	// layer.
	ErrPINMismatch = errors.New("pin does not match")

	// ErrMissingSecret is returned when DeriveKey is called without the
	// secret source the auth type requires.
	ErrMissingSecret = errors.New("missing secret source for auth type")
)

// KeyDerivationError wraps a failure to derive a keypair for an auth type.
type KeyDerivationError struct {
	AuthType crypto.AuthType
	Err      error
}

func (e *KeyDerivationError) Error() string {
	return fmt.Sprintf("key derivation failed for %s auth: %v", e.AuthType, e.Err)
}

func (e *KeyDerivationError) Unwrap() error { return e.Err }

// DirectoryError wraps a remote key-directory failure. Recoverable: the
// restore evaluation runs again on the next session open.
type DirectoryError struct {
	Op  string
	Err error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("key directory %s failed: %v", e.Op, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }
