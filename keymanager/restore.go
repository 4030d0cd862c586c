package keymanager

import (
	"bytes"
	"context"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/sealedchat/crypto"
)

// RestoreReason is the outcome of the session-open key health check. It
// drives which restore banner, if any, the UI shows.
type RestoreReason uint8

const (
	// RestoreOK means the local key is present, deterministic, and matches
	// the directory. No banner.
	RestoreOK RestoreReason = iota
	// RestoreNoKey means neither this device nor the directory has a key.
	RestoreNoKey
	// RestoreLegacyKey means a non-deterministic legacy key is cached and
	// the user should upgrade to a derivable one.
	RestoreLegacyKey
	// RestorePasskeyUpgrade means the cached key is a passkey fallback but
	// the device may support PRF now.
	RestorePasskeyUpgrade
	// RestoreKeyMismatch means the local public key differs from, or is
	// absent from, the remote directory.
	RestoreKeyMismatch
	// RestoreNeedsPIN means a PIN-based auth type has no local key and the
	// user must enter their PIN to re-derive it.
	RestoreNeedsPIN
)

// String returns the banner identifier for a restore reason.
func (r RestoreReason) String() string {
	switch r {
	case RestoreOK:
		return "ok"
	case RestoreNoKey:
		return "no_key"
	case RestoreLegacyKey:
		return "legacy_key"
	case RestorePasskeyUpgrade:
		return "passkey_upgrade"
	case RestoreKeyMismatch:
		return "key_mismatch"
	case RestoreNeedsPIN:
		return "needs_pin"
	default:
		return "unknown"
	}
}

// EvaluateRestoreNeed decides whether the user needs a key restore banner.
//
// The answer is recomputed from scratch on every session open: device
// storage can be cleared independently of server state, so a cached "is ok"
// flag would go stale without anything invalidating it. The procedure
// inspects local cache presence, the cached key's source tag, and whether
// the local public key matches what the directory holds.
func (m *Manager) EvaluateRestoreNeed(ctx context.Context, userAddress string, authType crypto.AuthType) (RestoreReason, error) {
	address := crypto.NormalizeAddress(userAddress)

	local, err := m.ActiveKeyPair()
	if err != nil {
		return RestoreOK, err
	}

	if local == nil {
		reason, err := m.evaluateMissingLocal(ctx, address, authType)
		if err != nil {
			return RestoreOK, err
		}
		m.logRestore(address, authType, reason)
		return reason, nil
	}

	// A cached key exists. Non-deterministic sources get their upgrade
	// banners before any directory comparison: even a directory match
	// would not make them recoverable on another device.
	switch local.Source {
	case crypto.SourceLegacy:
		m.logRestore(address, authType, RestoreLegacyKey)
		return RestoreLegacyKey, nil
	case crypto.SourcePasskeyFallback:
		m.logRestore(address, authType, RestorePasskeyUpgrade)
		return RestorePasskeyUpgrade, nil
	}

	remotePub, err := m.directory.GetPublicKey(ctx, address)
	if err != nil {
		return RestoreOK, &DirectoryError{Op: "lookup", Err: err}
	}
	if remotePub == nil || !bytes.Equal(remotePub, local.Public[:]) {
		m.logRestore(address, authType, RestoreKeyMismatch)
		return RestoreKeyMismatch, nil
	}

	m.logRestore(address, authType, RestoreOK)
	return RestoreOK, nil
}

// evaluateMissingLocal handles the no-local-key cases.
func (m *Manager) evaluateMissingLocal(ctx context.Context, address string, authType crypto.AuthType) (RestoreReason, error) {
	if authType.RequiresPIN() {
		return RestoreNeedsPIN, nil
	}

	info, err := m.directory.GetRemoteKeySource(ctx, address)
	if err != nil {
		return RestoreOK, &DirectoryError{Op: "source lookup", Err: err}
	}
	if !info.HasKey {
		return RestoreNoKey, nil
	}
	// The directory has a key this device cannot decrypt with.
	return RestoreKeyMismatch, nil
}

func (m *Manager) logRestore(address string, authType crypto.AuthType, reason RestoreReason) {
	logrus.WithFields(logrus.Fields{
		"function":  "EvaluateRestoreNeed",
		"address":   address,
		"auth_type": authType.String(),
		"reason":    reason.String(),
	}).Info("Restore evaluation complete")
}
