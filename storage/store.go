package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/opd-ai/sealedchat/crypto"
)

var (
	bucketKeypair       = []byte("keypair")
	bucketPINVerifier   = []byte("pinverifier")
	bucketConversations = []byte("conversations")

	// The device holds at most one active keypair, stored under a fixed key.
	keypairRecordKey = []byte("active")
)

// ErrStoreClosed is returned when an operation runs against a closed store.
var ErrStoreClosed = errors.New("storage: store is closed")

// Store is a bbolt-backed device-local store.
type Store struct {
	db *bolt.DB
}

// keypairRecord is the CBOR shape of the cached keypair.
type keypairRecord struct {
	Public  []byte `cbor:"1,keyasint"`
	Private []byte `cbor:"2,keyasint"`
	Source  string `cbor:"3,keyasint"`
}

// Open opens (or creates) the store at path, creating parent directories as
// needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketKeypair, bucketPINVerifier, bucketConversations} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Open",
		"path":     path,
	}).Debug("Local store opened")

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// SaveKeyPair persists the active keypair and its source tag. The previous
// record, if any, is overwritten: callers that want the one-active-keypair
// invariant enforced go through keymanager, which clears explicitly first.
func (s *Store) SaveKeyPair(kp *crypto.KeyPair) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	if kp == nil {
		return errors.New("storage: nil keypair")
	}

	rec := keypairRecord{
		Public:  append([]byte(nil), kp.Public[:]...),
		Private: append([]byte(nil), kp.Private[:]...),
		Source:  kp.Source.String(),
	}
	data, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode keypair: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKeypair).Put(keypairRecordKey, data)
	})
}

// LoadKeyPair returns the cached keypair, or (nil, nil) when the device has
// none.
func (s *Store) LoadKeyPair() (*crypto.KeyPair, error) {
	if s.db == nil {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketKeypair).Get(keypairRecordKey)
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var rec keypairRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode keypair: %w", err)
	}
	if len(rec.Public) != 32 || len(rec.Private) != 32 {
		return nil, errors.New("storage: corrupt keypair record")
	}

	source, err := crypto.ParseKeySource(rec.Source)
	if err != nil {
		// Records written before source tagging existed are treated as
		// legacy keys so the restore flow offers an upgrade.
		source = crypto.SourceLegacy
	}

	kp := &crypto.KeyPair{Source: source}
	copy(kp.Public[:], rec.Public)
	copy(kp.Private[:], rec.Private)
	crypto.ZeroBytes(rec.Private)
	return kp, nil
}

// ClearKeyPair removes the cached keypair.
func (s *Store) ClearKeyPair() error {
	if s.db == nil {
		return ErrStoreClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKeypair).Delete(keypairRecordKey)
	})
}

// SavePINVerifier stores the local PIN verifier hash for an address.
func (s *Store) SavePINVerifier(address string, verifier []byte) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	key := []byte(crypto.NormalizeAddress(address))
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPINVerifier).Put(key, verifier)
	})
}

// LoadPINVerifier returns the stored verifier hash, or nil when this device
// has never verified a PIN for the address.
func (s *Store) LoadPINVerifier(address string) ([]byte, error) {
	if s.db == nil {
		return nil, ErrStoreClosed
	}
	key := []byte(crypto.NormalizeAddress(address))

	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketPINVerifier).Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// SaveConversation stores an opaque encoded message-cache blob for a
// conversation id.
func (s *Store) SaveConversation(conversationID string, data []byte) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConversations).Put([]byte(conversationID), data)
	})
}

// LoadConversation returns the cached blob for a conversation id, or nil
// when none exists.
func (s *Store) LoadConversation(conversationID string) ([]byte, error) {
	if s.db == nil {
		return nil, ErrStoreClosed
	}

	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketConversations).Get([]byte(conversationID))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}
