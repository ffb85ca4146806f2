package peers

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"sync"
)

const jsonPeerSetPath = "peers.json"

// JSONPeerSet is used to provide peer persistence on disk in the form of a
// JSON file.
type JSONPeerSet struct {
	l    sync.Mutex
	path string
}

// NewJSONPeerSet creates a new JSONPeerSet with reference to a base
// directory where the JSON file resides.
func NewJSONPeerSet(base string) *JSONPeerSet {
	return &JSONPeerSet{
		path: filepath.Join(base, jsonPeerSetPath),
	}
}

// PeerSet parses the underlying JSON file and returns the corresponding
// PeerSet.
func (j *JSONPeerSet) PeerSet() (*PeerSet, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	// Check for no peers
	if len(buf) == 0 {
		return nil, nil
	}

	var peers []*Peer
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(&peers); err != nil {
		return nil, err
	}

	return NewPeerSetFromSlice(peers), nil
}

// Write persists a peer list to the JSON file.
func (j *JSONPeerSet) Write(peers []*Peer) error {
	j.l.Lock()
	defer j.l.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(peers); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, buf.Bytes(), 0755)
}
