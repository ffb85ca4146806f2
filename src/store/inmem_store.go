package store

import (
	"sort"
	"sync"

	"github.com/meshworks/manifold/src/artifact"
	cm "github.com/meshworks/manifold/src/common"
)

// InmemStore keeps all artifact state in memory. Stores grow for the life of
// the process; there is no eviction or TTL.
type InmemStore struct {
	sync.RWMutex
	artifacts map[string]map[string]*artifact.Artifact
	seen      map[string]struct{}
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		artifacts: map[string]map[string]*artifact.Artifact{
			artifact.Knowledge: {},
			artifact.Media:     {},
			artifact.Meta:      {},
		},
		seen: make(map[string]struct{}),
	}
}

// SetArtifact implements the Store interface.
func (s *InmemStore) SetArtifact(a *artifact.Artifact) error {
	s.Lock()
	defer s.Unlock()

	kindStore, ok := s.artifacts[a.Kind]
	if !ok {
		return cm.NewStoreErr("Artifact", cm.UnknownKind, a.Kind)
	}

	existing, ok := kindStore[a.Hash]
	if ok {
		// Knowledge artifacts are insert-once; media and meta follow
		// last-writer-wins by timestamp.
		if a.Kind == artifact.Knowledge {
			return cm.NewStoreErr("Artifact", cm.KeyAlreadyExists, a.Hash)
		}
		if a.Timestamp <= existing.Timestamp {
			return cm.NewStoreErr("Artifact", cm.TooLate, a.Hash)
		}
	}

	kindStore[a.Hash] = a

	return nil
}

// GetArtifact implements the Store interface.
func (s *InmemStore) GetArtifact(kind, hash string) (*artifact.Artifact, error) {
	s.RLock()
	defer s.RUnlock()

	kindStore, ok := s.artifacts[kind]
	if !ok {
		return nil, cm.NewStoreErr("Artifact", cm.UnknownKind, kind)
	}

	a, ok := kindStore[hash]
	if !ok {
		return nil, cm.NewStoreErr("Artifact", cm.KeyNotFound, hash)
	}

	return a, nil
}

// Artifacts implements the Store interface.
func (s *InmemStore) Artifacts(kind string) []*artifact.Artifact {
	s.RLock()
	defer s.RUnlock()

	return sortedValues(s.artifacts[kind])
}

// AllArtifacts implements the Store interface.
func (s *InmemStore) AllArtifacts() []*artifact.Artifact {
	s.RLock()
	defer s.RUnlock()

	res := []*artifact.Artifact{}
	for _, kind := range []string{artifact.Knowledge, artifact.Media, artifact.Meta} {
		res = append(res, sortedValues(s.artifacts[kind])...)
	}
	return res
}

// Count implements the Store interface.
func (s *InmemStore) Count(kind string) int {
	s.RLock()
	defer s.RUnlock()

	return len(s.artifacts[kind])
}

// MarkSeen implements the Store interface.
func (s *InmemStore) MarkSeen(hash string) bool {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.seen[hash]; ok {
		return false
	}

	s.seen[hash] = struct{}{}
	return true
}

// Seen implements the Store interface.
func (s *InmemStore) Seen(hash string) bool {
	s.RLock()
	defer s.RUnlock()

	_, ok := s.seen[hash]
	return ok
}

// SeenCount implements the Store interface.
func (s *InmemStore) SeenCount() int {
	s.RLock()
	defer s.RUnlock()

	return len(s.seen)
}

// NeedBootstrap implements the Store interface.
func (s *InmemStore) NeedBootstrap() bool {
	return false
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

func sortedValues(m map[string]*artifact.Artifact) []*artifact.Artifact {
	res := make([]*artifact.Artifact, 0, len(m))
	for _, a := range m {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Timestamp != res[j].Timestamp {
			return res[i].Timestamp < res[j].Timestamp
		}
		return res[i].Hash < res[j].Hash
	})
	return res
}
