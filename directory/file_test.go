package directory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/sealedchat/crypto"
)

func newTestDirectory(t *testing.T) *FileDirectory {
	t.Helper()
	return NewFileDirectory(filepath.Join(t.TempDir(), "directory.json"))
}

func TestGetPublicKeyAbsent(t *testing.T) {
	d := newTestDirectory(t)

	pub, err := d.GetPublicKey(context.Background(), "0xnobody")
	require.NoError(t, err)
	assert.Nil(t, pub)

	info, err := d.GetRemoteKeySource(context.Background(), "0xnobody")
	require.NoError(t, err)
	assert.False(t, info.HasKey)
}

func TestUpsertAndGet(t *testing.T) {
	d := newTestDirectory(t)

	require.NoError(t, d.UpsertPublicKey(context.Background(), "0xAlice", []byte{1, 2, 3}))
	require.NoError(t, d.SetKeySource("0xalice", crypto.SourceEOA))

	pub, err := d.GetPublicKey(context.Background(), "0xALICE")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, pub, "lookups are normalized")

	info, err := d.GetRemoteKeySource(context.Background(), "0xalice")
	require.NoError(t, err)
	assert.True(t, info.HasKey)
	assert.Equal(t, crypto.SourceEOA, info.Source)
}

func TestUpsertReplaces(t *testing.T) {
	d := newTestDirectory(t)

	require.NoError(t, d.UpsertPublicKey(context.Background(), "0xalice", []byte{1}))
	require.NoError(t, d.UpsertPublicKey(context.Background(), "0xalice", []byte{2}))

	pub, err := d.GetPublicKey(context.Background(), "0xalice")
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, pub)
}

func TestVerifyPinAgainstRemote(t *testing.T) {
	d := newTestDirectory(t)

	kp, err := crypto.DeriveFromPIN("314159", "0xalice")
	require.NoError(t, err)
	require.NoError(t, d.UpsertPublicKey(context.Background(), "0xalice", kp.Public[:]))

	ok, err := d.VerifyPinAgainstRemote(context.Background(), "314159", "0xalice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.VerifyPinAgainstRemote(context.Background(), "271828", "0xalice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPinNoPublishedKey(t *testing.T) {
	d := newTestDirectory(t)

	_, err := d.VerifyPinAgainstRemote(context.Background(), "314159", "0xalice")
	assert.Error(t, err)
}
