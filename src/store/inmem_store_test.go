package store

import (
	"sync"
	"testing"

	"github.com/meshworks/manifold/src/artifact"
	cm "github.com/meshworks/manifold/src/common"
)

func TestInmemStoreKinds(t *testing.T) {
	s := NewInmemStore()

	k := artifact.NewWithValue("knowledge payload", artifact.Knowledge, 0.5)
	m := artifact.NewWithValue("media payload", artifact.Media, 0.5)
	meta := artifact.NewWithValue("meta payload", artifact.Meta, 0.5)

	for _, a := range []*artifact.Artifact{k, m, meta} {
		if err := s.SetArtifact(a); err != nil {
			t.Fatal(err)
		}
	}

	for _, kind := range []string{artifact.Knowledge, artifact.Media, artifact.Meta} {
		if got := s.Count(kind); got != 1 {
			t.Fatalf("kind %s: expected 1 artifact, got %d", kind, got)
		}
	}

	if _, err := s.GetArtifact(artifact.Knowledge, m.Hash); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("media artifact leaked into knowledge store: %v", err)
	}

	if got := len(s.AllArtifacts()); got != 3 {
		t.Fatalf("expected 3 artifacts total, got %d", got)
	}
}

func TestInmemStoreKnowledgeInsertOnce(t *testing.T) {
	s := NewInmemStore()

	a := artifact.NewWithValue("once", artifact.Knowledge, 0.5)
	if err := s.SetArtifact(a); err != nil {
		t.Fatal(err)
	}

	resend := a.Evolve("other")
	if err := s.SetArtifact(resend); !cm.IsStore(err, cm.KeyAlreadyExists) {
		t.Fatalf("expected KeyAlreadyExists, got %v", err)
	}

	stored, err := s.GetArtifact(artifact.Knowledge, a.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if stored != a {
		t.Fatal("resend replaced the stored knowledge artifact")
	}
}

func TestInmemStoreMediaLastWriterWins(t *testing.T) {
	s := NewInmemStore()

	a := artifact.NewWithValue("same media", artifact.Media, 0.5)
	a.Timestamp = 100
	if err := s.SetArtifact(a); err != nil {
		t.Fatal(err)
	}

	older := *a
	older.Timestamp = 50
	if err := s.SetArtifact(&older); !cm.IsStore(err, cm.TooLate) {
		t.Fatalf("expected TooLate, got %v", err)
	}

	newer := *a
	newer.Timestamp = 200
	newer.Value = 9
	if err := s.SetArtifact(&newer); err != nil {
		t.Fatal(err)
	}

	stored, err := s.GetArtifact(artifact.Media, a.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Value != 9 {
		t.Fatal("later-timestamped media version did not replace the stored one")
	}
}

func TestInmemStoreUnknownKind(t *testing.T) {
	s := NewInmemStore()

	bogus := artifact.NewWithValue("x", "bogus", 0.5)
	if err := s.SetArtifact(bogus); !cm.IsStore(err, cm.UnknownKind) {
		t.Fatalf("expected UnknownKind, got %v", err)
	}
}

func TestMarkSeenAtomic(t *testing.T) {
	s := NewInmemStore()

	const workers = 16
	hash := "deadbeef"

	var wg sync.WaitGroup
	wins := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- s.MarkSeen(hash)
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for w := range wins {
		if w {
			count++
		}
	}

	if count != 1 {
		t.Fatalf("MarkSeen won %d times for the same hash, want exactly 1", count)
	}
	if !s.Seen(hash) {
		t.Fatal("hash not in seen-set after MarkSeen")
	}
	if s.SeenCount() != 1 {
		t.Fatalf("seen count %d, want 1", s.SeenCount())
	}
}
