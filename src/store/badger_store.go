package store

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/meshworks/manifold/src/artifact"
	cm "github.com/meshworks/manifold/src/common"
	"github.com/ugorji/go/codec"
)

const (
	artifactPrefix = "artifact"
	seenPrefix     = "seen"
)

// BadgerStore wraps an InmemStore with a durable Badger database. Reads are
// served from memory; writes go to both.
type BadgerStore struct {
	inmemStore    *InmemStore
	db            *badger.DB
	path          string
	needBootstrap bool
}

// NewBadgerStore creates a brand new store with a new database.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(),
		db:         handle,
		path:       path,
	}

	return store, nil
}

// LoadBadgerStore creates a store from an existing database, replaying its
// contents into a fresh in-memory store.
func LoadBadgerStore(path string) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore:    NewInmemStore(),
		db:            handle,
		path:          path,
		needBootstrap: true,
	}

	if err := store.dbLoad(); err != nil {
		store.db.Close()
		return nil, err
	}

	return store, nil
}

// LoadOrCreateBadgerStore loads an existing database or creates a new one if
// the path does not exist.
func LoadOrCreateBadgerStore(path string) (*BadgerStore, error) {
	store, err := LoadBadgerStore(path)

	if err != nil {
		store, err = NewBadgerStore(path)
		if err != nil {
			return nil, err
		}
	}

	return store, nil
}

// SetArtifact implements the Store interface.
func (s *BadgerStore) SetArtifact(a *artifact.Artifact) error {
	if err := s.inmemStore.SetArtifact(a); err != nil {
		return err
	}
	return s.dbSetArtifact(a)
}

// GetArtifact implements the Store interface.
func (s *BadgerStore) GetArtifact(kind, hash string) (*artifact.Artifact, error) {
	return s.inmemStore.GetArtifact(kind, hash)
}

// Artifacts implements the Store interface.
func (s *BadgerStore) Artifacts(kind string) []*artifact.Artifact {
	return s.inmemStore.Artifacts(kind)
}

// AllArtifacts implements the Store interface.
func (s *BadgerStore) AllArtifacts() []*artifact.Artifact {
	return s.inmemStore.AllArtifacts()
}

// Count implements the Store interface.
func (s *BadgerStore) Count(kind string) int {
	return s.inmemStore.Count(kind)
}

// MarkSeen implements the Store interface.
func (s *BadgerStore) MarkSeen(hash string) bool {
	if !s.inmemStore.MarkSeen(hash) {
		return false
	}
	if err := s.dbSetSeen(hash); err != nil {
		// The in-memory seen-set remains authoritative for this run.
		return true
	}
	return true
}

// Seen implements the Store interface.
func (s *BadgerStore) Seen(hash string) bool {
	return s.inmemStore.Seen(hash)
}

// SeenCount implements the Store interface.
func (s *BadgerStore) SeenCount() int {
	return s.inmemStore.SeenCount()
}

// NeedBootstrap implements the Store interface.
func (s *BadgerStore) NeedBootstrap() bool {
	return s.needBootstrap
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

/* Database access */

func artifactKey(kind, hash string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", artifactPrefix, kind, hash))
}

func seenKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s:%s", seenPrefix, hash))
}

func (s *BadgerStore) dbSetArtifact(a *artifact.Artifact) error {
	raw, err := a.Marshal()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(artifactKey(a.Kind, a.Hash), raw)
	})
}

func (s *BadgerStore) dbSetSeen(hash string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(seenKey(hash), []byte{1})
	})
}

// dbLoad replays the persisted artifacts and seen-set into the in-memory
// store.
func (s *BadgerStore) dbLoad() error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(artifactPrefix + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				a := new(artifact.Artifact)
				jh := new(codec.JsonHandle)
				jh.Canonical = true
				if err := codec.NewDecoder(bytes.NewBuffer(val), jh).Decode(a); err != nil {
					return err
				}
				if err := s.inmemStore.SetArtifact(a); err != nil && !cm.IsStore(err, cm.KeyAlreadyExists) {
					return err
				}
				return nil
			})
			if err != nil {
				return err
			}
		}

		prefix = []byte(seenPrefix + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			s.inmemStore.MarkSeen(string(key[len(prefix):]))
		}

		return nil
	})
}
