package keymanager

import (
	"context"
	"crypto/subtle"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/sealedchat/crypto"
)

// VerifyPIN checks a PIN against the verifier stored on this device.
//
// hasLocal is false when the device has never derived a key from this PIN
// (first use on this device); the caller must then fall back to
// VerifyPINRemote. PIN mismatches are retryable with no lockout here; rate
// limiting is an external concern.
func (m *Manager) VerifyPIN(pin, userAddress string) (matched bool, hasLocal bool, err error) {
	address := crypto.NormalizeAddress(userAddress)

	if err := crypto.ValidatePIN(pin); err != nil {
		return false, false, err
	}

	verifier, err := m.store.LoadPINVerifier(address)
	if err != nil {
		return false, false, err
	}
	if verifier == nil {
		return false, false, nil
	}

	kp, err := crypto.DeriveFromPIN(pin, address)
	if err != nil {
		return false, true, err
	}
	defer crypto.WipeKeyPair(kp)

	matched = subtle.ConstantTimeCompare(verifier, pinVerifier(kp)) == 1

	logrus.WithFields(logrus.Fields{
		"function": "VerifyPIN",
		"address":  address,
		"matched":  matched,
	}).Debug("Local PIN verification complete")

	return matched, true, nil
}

// VerifyPINRemote verifies a PIN against the directory's stored derivation
// when no local verifier exists.
func (m *Manager) VerifyPINRemote(ctx context.Context, pin, userAddress string) (bool, error) {
	address := crypto.NormalizeAddress(userAddress)

	if err := crypto.ValidatePIN(pin); err != nil {
		return false, err
	}

	ok, err := m.directory.VerifyPinAgainstRemote(ctx, pin, address)
	if err != nil {
		return false, &DirectoryError{Op: "pin verification", Err: err}
	}
	return ok, nil
}
