package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/opd-ai/sealedchat/crypto"
	"github.com/opd-ai/sealedchat/keymanager"
)

// FileDirectory is a JSON-file-backed keymanager.DirectoryClient. Every
// operation reads and rewrites the whole file; directories are small and
// the simplicity wins.
type FileDirectory struct {
	mu   sync.Mutex
	path string
}

var _ keymanager.DirectoryClient = (*FileDirectory)(nil)

type fileRecord struct {
	PublicKey []byte `json:"public_key"`
	Source    string `json:"source,omitempty"`
}

// NewFileDirectory creates a directory client over a JSON file. The file
// is created on first write.
func NewFileDirectory(path string) *FileDirectory {
	return &FileDirectory{path: path}
}

// GetPublicKey returns the published key for an address, or nil.
func (d *FileDirectory) GetPublicKey(_ context.Context, address string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.load()
	if err != nil {
		return nil, err
	}
	rec, ok := records[crypto.NormalizeAddress(address)]
	if !ok {
		return nil, nil
	}
	return rec.PublicKey, nil
}

// UpsertPublicKey publishes a key for an address.
func (d *FileDirectory) UpsertPublicKey(_ context.Context, address string, publicKey []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.load()
	if err != nil {
		return err
	}

	addr := crypto.NormalizeAddress(address)
	rec := records[addr]
	rec.PublicKey = append([]byte(nil), publicKey...)
	records[addr] = rec
	return d.save(records)
}

// SetKeySource records the derivation source alongside a published key, so
// GetRemoteKeySource can answer restore evaluations.
func (d *FileDirectory) SetKeySource(address string, source crypto.KeySource) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.load()
	if err != nil {
		return err
	}

	addr := crypto.NormalizeAddress(address)
	rec := records[addr]
	rec.Source = source.String()
	records[addr] = rec
	return d.save(records)
}

// GetRemoteKeySource reports key presence and the recorded source.
func (d *FileDirectory) GetRemoteKeySource(_ context.Context, address string) (keymanager.RemoteKeyInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.load()
	if err != nil {
		return keymanager.RemoteKeyInfo{}, err
	}
	rec, ok := records[crypto.NormalizeAddress(address)]
	if !ok || len(rec.PublicKey) == 0 {
		return keymanager.RemoteKeyInfo{}, nil
	}

	info := keymanager.RemoteKeyInfo{HasKey: true, Source: crypto.SourceLegacy}
	if parsed, err := crypto.ParseKeySource(rec.Source); err == nil {
		info.Source = parsed
	}
	return info, nil
}

// VerifyPinAgainstRemote re-derives the PIN keypair and compares its public
// half to the published key.
func (d *FileDirectory) VerifyPinAgainstRemote(_ context.Context, pin, address string) (bool, error) {
	addr := crypto.NormalizeAddress(address)

	d.mu.Lock()
	records, err := d.load()
	d.mu.Unlock()
	if err != nil {
		return false, err
	}

	rec, ok := records[addr]
	if !ok || len(rec.PublicKey) == 0 {
		return false, fmt.Errorf("no published key for %s", addr)
	}

	kp, err := crypto.DeriveFromPIN(pin, addr)
	if err != nil {
		return false, err
	}
	defer crypto.WipeKeyPair(kp)

	return bytes.Equal(kp.Public[:], rec.PublicKey), nil
}

// load reads the directory file. A missing file is an empty directory.
func (d *FileDirectory) load() (map[string]fileRecord, error) {
	data, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		return make(map[string]fileRecord), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read directory file: %w", err)
	}

	records := make(map[string]fileRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse directory file: %w", err)
	}
	return records, nil
}

func (d *FileDirectory) save(records map[string]fileRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(d.path, data, 0o600)
}
