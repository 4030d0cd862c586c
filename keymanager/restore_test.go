package keymanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/sealedchat/crypto"
)

func TestEvaluateRestoreNeedNoKey(t *testing.T) {
	m := newTestManager(t, newFakeDirectory())

	reason, err := m.EvaluateRestoreNeed(context.Background(), "0xuser", crypto.AuthWallet)
	require.NoError(t, err)
	assert.Equal(t, RestoreNoKey, reason, "no local key and no remote key")
}

func TestEvaluateRestoreNeedNeedsPIN(t *testing.T) {
	m := newTestManager(t, newFakeDirectory())

	reason, err := m.EvaluateRestoreNeed(context.Background(), "0xuser", crypto.AuthEmail)
	require.NoError(t, err)
	assert.Equal(t, RestoreNeedsPIN, reason, "PIN auth with no local key asks for the PIN")
}

func TestEvaluateRestoreNeedRemoteOnlyKey(t *testing.T) {
	dir := newFakeDirectory()
	dir.keys["0xuser"] = []byte{9, 9, 9}
	dir.sources["0xuser"] = crypto.SourceEOA
	m := newTestManager(t, dir)

	reason, err := m.EvaluateRestoreNeed(context.Background(), "0xuser", crypto.AuthWallet)
	require.NoError(t, err)
	assert.Equal(t, RestoreKeyMismatch, reason,
		"directory holds a key this cleared device cannot use")
}

func TestEvaluateRestoreNeedLegacyKey(t *testing.T) {
	m := newTestManager(t, newFakeDirectory())

	kp, err := crypto.GenerateKeyPair(crypto.SourceLegacy)
	require.NoError(t, err)
	require.NoError(t, m.activate(kp))

	reason, err := m.EvaluateRestoreNeed(context.Background(), "0xuser", crypto.AuthWallet)
	require.NoError(t, err)
	assert.Equal(t, RestoreLegacyKey, reason)
}

func TestEvaluateRestoreNeedPasskeyUpgrade(t *testing.T) {
	m := newTestManager(t, newFakeDirectory())

	res, err := m.DeriveKey(context.Background(), crypto.AuthPasskey, "0xuser", SecretSource{Passkey: &fakePasskey{supported: false}})
	require.NoError(t, err)
	require.True(t, res.PRFFallback)

	reason, err := m.EvaluateRestoreNeed(context.Background(), "0xuser", crypto.AuthPasskey)
	require.NoError(t, err)
	assert.Equal(t, RestorePasskeyUpgrade, reason)
}

func TestEvaluateRestoreNeedKeyMismatch(t *testing.T) {
	dir := newFakeDirectory()
	m := newTestManager(t, dir)

	res, err := m.DeriveKey(context.Background(), crypto.AuthWallet, "0xuser", SecretSource{Wallet: &fakeWallet{secret: []byte("s")}})
	require.NoError(t, err)

	// Directory holds a different key for the address.
	dir.keys["0xuser"] = []byte{1, 2, 3}

	reason, err := m.EvaluateRestoreNeed(context.Background(), "0xuser", crypto.AuthWallet)
	require.NoError(t, err)
	assert.Equal(t, RestoreKeyMismatch, reason)

	// Publish the real key; the next session-open evaluation clears up.
	require.NoError(t, m.PublishPublicKey(context.Background(), "0xuser", res.KeyPair.Public[:]))

	reason, err = m.EvaluateRestoreNeed(context.Background(), "0xuser", crypto.AuthWallet)
	require.NoError(t, err)
	assert.Equal(t, RestoreOK, reason)
}

func TestEvaluateRestoreNeedDirectoryFailure(t *testing.T) {
	dir := newFakeDirectory()
	m := newTestManager(t, dir)

	res, err := m.DeriveKey(context.Background(), crypto.AuthWallet, "0xuser", SecretSource{Wallet: &fakeWallet{secret: []byte("s")}})
	require.NoError(t, err)
	require.NoError(t, m.PublishPublicKey(context.Background(), "0xuser", res.KeyPair.Public[:]))

	dir.failLookups = true
	_, err = m.EvaluateRestoreNeed(context.Background(), "0xuser", crypto.AuthWallet)

	var derr *DirectoryError
	assert.ErrorAs(t, err, &derr, "directory failures surface for retry on next session open")

	// Recovery on the next evaluation once the directory is back.
	dir.failLookups = false
	reason, err := m.EvaluateRestoreNeed(context.Background(), "0xuser", crypto.AuthWallet)
	require.NoError(t, err)
	assert.Equal(t, RestoreOK, reason)
}
