package artifact

import (
	"bytes"
	"fmt"
	"math/rand"
	"time"

	"github.com/meshworks/manifold/src/crypto"
	"github.com/ugorji/go/codec"
)

// Artifact kinds. The kind determines which store an artifact lands in and
// whether it goes through the acceptance gate.
const (
	Knowledge = "knowledge"
	Media     = "media"
	Meta      = "meta"
)

// Artifact is a content-addressed unit of data propagated through the mesh.
// The Hash is computed from Data at creation time and never changes; all
// other mutations go through Evolve, which returns a new version.
type Artifact struct {
	Hash        string   `json:"hash"`
	Data        string   `json:"data"`
	Kind        string   `json:"type"`
	Timestamp   float64  `json:"timestamp"`
	ProcessedBy []string `json:"processed_by"`
	Value       float64  `json:"value"`
}

// New creates an Artifact with the content hash of data, the current
// timestamp, an empty provenance trail, and a random initial value.
func New(data string, kind string) *Artifact {
	return NewWithValue(data, kind, rand.Float64())
}

// NewWithValue is like New but with an explicit initial value. It is used
// where a deterministic value is required, such as synthesis and tests.
func NewWithValue(data string, kind string, value float64) *Artifact {
	return &Artifact{
		Hash:        crypto.SHA256Hex([]byte(data)),
		Data:        data,
		Kind:        kind,
		Timestamp:   now(),
		ProcessedBy: []string{},
		Value:       value,
	}
}

// Evolve returns a new version of the artifact with moniker appended to the
// provenance trail, a refreshed timestamp, and a small positive value bump.
// The receiver is not modified.
func (a *Artifact) Evolve(moniker string) *Artifact {
	processedBy := make([]string, len(a.ProcessedBy), len(a.ProcessedBy)+1)
	copy(processedBy, a.ProcessedBy)
	processedBy = append(processedBy, moniker)

	return &Artifact{
		Hash:        a.Hash,
		Data:        a.Data,
		Kind:        a.Kind,
		Timestamp:   now(),
		ProcessedBy: processedBy,
		Value:       a.Value + rand.Float64(),
	}
}

// Verify recomputes the content hash from Data and compares it to the
// declared Hash. A mismatch signals corruption or tampering and the artifact
// must be dropped.
func (a *Artifact) Verify() error {
	computed := crypto.SHA256Hex([]byte(a.Data))
	if computed != a.Hash {
		return fmt.Errorf("artifact hash mismatch: declared %s, computed %s", a.Hash, computed)
	}
	return nil
}

// Marshal returns the canonical JSON encoding of the artifact.
func (a *Artifact) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(a); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal decodes a canonical JSON encoding into the artifact.
func (a *Artifact) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(a)
}

func now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
