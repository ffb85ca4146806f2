package store

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/meshworks/manifold/src/artifact"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir, err := ioutil.TempDir("", "snapshot_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	s := NewInmemStore()

	k := artifact.NewWithValue("insight one", artifact.Knowledge, 1.0)
	k.ProcessedBy = []string{"node0"}
	m := artifact.NewWithValue("a video", artifact.Media, 2.0)
	meta := artifact.NewWithValue("insight one|a video", artifact.Meta, 3.0)

	for _, a := range []*artifact.Artifact{k, m, meta} {
		if err := s.SetArtifact(a); err != nil {
			t.Fatal(err)
		}
	}

	file := NewSnapshotFile(filepath.Join(dir, "node0_state.json"))

	if err := file.Write(NewSnapshot(s)); err != nil {
		t.Fatal(err)
	}

	snap, err := file.Read()
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(snap.State[k.Hash], k) {
		t.Fatalf("knowledge artifact mismatch: %+v", snap.State[k.Hash])
	}
	if !reflect.DeepEqual(snap.MediaState[m.Hash], m) {
		t.Fatalf("media artifact mismatch: %+v", snap.MediaState[m.Hash])
	}
	if !reflect.DeepEqual(snap.MetaArtifacts[meta.Hash], meta) {
		t.Fatalf("meta artifact mismatch: %+v", snap.MetaArtifacts[meta.Hash])
	}

	if got := len(snap.Artifacts()); got != 3 {
		t.Fatalf("expected 3 artifacts in snapshot, got %d", got)
	}
}

func TestSnapshotReadMissingFile(t *testing.T) {
	file := NewSnapshotFile(filepath.Join(os.TempDir(), "does_not_exist_state.json"))
	if _, err := file.Read(); err == nil {
		t.Fatal("expected error reading missing snapshot")
	}
}
