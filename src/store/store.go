// Package store holds a node's local artifact state: the kind-segregated
// artifact maps and the seen-set used for loop prevention. An InmemStore
// keeps everything in memory; a BadgerStore wraps it with a durable
// database.
package store

import (
	"github.com/meshworks/manifold/src/artifact"
)

// Store is the interface for a node's local artifact state.
//
// Insertion policy is per kind: knowledge artifacts are accepted at most
// once per hash, while media and meta artifacts are replaced when a
// later-timestamped version of the same hash arrives (last-writer-wins).
type Store interface {
	// SetArtifact inserts or replaces an artifact according to the
	// per-kind policy.
	SetArtifact(a *artifact.Artifact) error

	// GetArtifact retrieves an artifact from the store of its kind.
	GetArtifact(kind, hash string) (*artifact.Artifact, error)

	// Artifacts returns every artifact of a kind, sorted by timestamp then
	// hash.
	Artifacts(kind string) []*artifact.Artifact

	// AllArtifacts returns every artifact of every kind.
	AllArtifacts() []*artifact.Artifact

	// Count returns the number of artifacts of a kind.
	Count(kind string) int

	// MarkSeen records the hash in the seen-set. It returns false if the
	// hash was already present. The check-and-set is atomic.
	MarkSeen(hash string) bool

	// Seen reports whether a hash is in the seen-set.
	Seen(hash string) bool

	// SeenCount returns the size of the seen-set.
	SeenCount() int

	// NeedBootstrap reports whether the store was loaded from an existing
	// database.
	NeedBootstrap() bool

	// Close releases the store's resources.
	Close() error
}
