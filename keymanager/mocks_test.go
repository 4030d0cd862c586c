package keymanager

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opd-ai/sealedchat/crypto"
	"github.com/opd-ai/sealedchat/storage"
)

// fakeDirectory is an in-memory DirectoryClient for tests.
type fakeDirectory struct {
	keys    map[string][]byte
	sources map[string]crypto.KeySource
	pins    map[string]string

	failLookups bool
	upserts     int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		keys:    make(map[string][]byte),
		sources: make(map[string]crypto.KeySource),
		pins:    make(map[string]string),
	}
}

func (d *fakeDirectory) GetPublicKey(_ context.Context, address string) ([]byte, error) {
	if d.failLookups {
		return nil, errors.New("directory unavailable")
	}
	return d.keys[address], nil
}

func (d *fakeDirectory) UpsertPublicKey(_ context.Context, address string, publicKey []byte) error {
	if d.failLookups {
		return errors.New("directory unavailable")
	}
	d.upserts++
	d.keys[address] = append([]byte(nil), publicKey...)
	return nil
}

func (d *fakeDirectory) GetRemoteKeySource(_ context.Context, address string) (RemoteKeyInfo, error) {
	if d.failLookups {
		return RemoteKeyInfo{}, errors.New("directory unavailable")
	}
	if _, ok := d.keys[address]; !ok {
		return RemoteKeyInfo{}, nil
	}
	return RemoteKeyInfo{HasKey: true, Source: d.sources[address]}, nil
}

func (d *fakeDirectory) VerifyPinAgainstRemote(_ context.Context, pin, address string) (bool, error) {
	if d.failLookups {
		return false, errors.New("directory unavailable")
	}
	return d.pins[address] == pin, nil
}

// fakeWallet signs deterministically from a fixed per-wallet secret, the way
// a real wallet produces the same signature over the same message.
type fakeWallet struct {
	secret []byte
	reject bool
}

func (w *fakeWallet) SignMessage(_ context.Context, message string) ([]byte, error) {
	if w.reject {
		return nil, errors.New("user rejected signature request")
	}
	sig := append([]byte(nil), w.secret...)
	sig = append(sig, []byte(message)...)
	return sig, nil
}

// fakePasskey models a PRF-capable or PRF-less authenticator.
type fakePasskey struct {
	output    []byte
	supported bool
	err       error
}

func (p *fakePasskey) Evaluate(_ context.Context, input []byte) ([]byte, bool, error) {
	if p.err != nil {
		return nil, false, p.err
	}
	if !p.supported {
		return nil, false, nil
	}
	out := append([]byte(nil), p.output...)
	out = append(out, input...)
	return out, true, nil
}

func newTestManager(t *testing.T, dir *fakeDirectory) *Manager {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewManager(store, dir)
}
