package store

import (
	"bytes"
	"io/ioutil"
	"sync"

	"github.com/meshworks/manifold/src/artifact"
	"github.com/ugorji/go/codec"
)

// Snapshot is the durable JSON representation of a node's stores. Field
// names match the on-disk format written by mesh deployments.
type Snapshot struct {
	State         map[string]*artifact.Artifact `json:"state"`
	MediaState    map[string]*artifact.Artifact `json:"media_state"`
	MetaArtifacts map[string]*artifact.Artifact `json:"meta_artifacts"`
}

// NewSnapshot builds a Snapshot from a store's current contents.
func NewSnapshot(s Store) *Snapshot {
	snap := &Snapshot{
		State:         map[string]*artifact.Artifact{},
		MediaState:    map[string]*artifact.Artifact{},
		MetaArtifacts: map[string]*artifact.Artifact{},
	}

	for _, a := range s.Artifacts(artifact.Knowledge) {
		snap.State[a.Hash] = a
	}
	for _, a := range s.Artifacts(artifact.Media) {
		snap.MediaState[a.Hash] = a
	}
	for _, a := range s.Artifacts(artifact.Meta) {
		snap.MetaArtifacts[a.Hash] = a
	}

	return snap
}

// Artifacts returns every artifact in the snapshot.
func (snap *Snapshot) Artifacts() []*artifact.Artifact {
	res := []*artifact.Artifact{}
	for _, m := range []map[string]*artifact.Artifact{snap.State, snap.MediaState, snap.MetaArtifacts} {
		for _, a := range m {
			res = append(res, a)
		}
	}
	return res
}

// SnapshotFile persists Snapshots to a JSON file. Persistence is best
// effort: write errors are reported but the node keeps operating in memory.
type SnapshotFile struct {
	l    sync.Mutex
	path string
}

// NewSnapshotFile ...
func NewSnapshotFile(path string) *SnapshotFile {
	return &SnapshotFile{path: path}
}

// Path returns the snapshot file path.
func (f *SnapshotFile) Path() string {
	return f.path
}

// Write serializes the snapshot to the file.
func (f *SnapshotFile) Write(snap *Snapshot) error {
	f.l.Lock()
	defer f.l.Unlock()

	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(snap); err != nil {
		return err
	}

	return ioutil.WriteFile(f.path, b.Bytes(), 0755)
}

// Read loads a snapshot from the file.
func (f *SnapshotFile) Read() (*Snapshot, error) {
	f.l.Lock()
	defer f.l.Unlock()

	buf, err := ioutil.ReadFile(f.path)
	if err != nil {
		return nil, err
	}

	snap := new(Snapshot)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(bytes.NewBuffer(buf), jh)

	if err := dec.Decode(snap); err != nil {
		return nil, err
	}

	if snap.State == nil {
		snap.State = map[string]*artifact.Artifact{}
	}
	if snap.MediaState == nil {
		snap.MediaState = map[string]*artifact.Artifact{}
	}
	if snap.MetaArtifacts == nil {
		snap.MetaArtifacts = map[string]*artifact.Artifact{}
	}

	return snap, nil
}
