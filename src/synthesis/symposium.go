// Package synthesis derives meta artifacts from the set of accepted
// artifacts. A Symposium reduces the full set into one summary artifact; a
// Forecaster builds a predictive summary from the highest-momentum
// artifacts.
package synthesis

import (
	"errors"
	"strings"

	"github.com/meshworks/manifold/src/artifact"
)

// Premium is the fixed multiplier applied to the mean input value of a
// reduced meta artifact.
const Premium = 1.15

const joinDelimiter = "|"

// ErrNoArtifacts is returned when a reducer is invoked with no input.
// Callers are expected to skip synthesis while the store is empty.
var ErrNoArtifacts = errors.New("synthesis: no input artifacts")

// Symposium reduces a set of artifacts into one derived meta artifact.
type Symposium struct {
	name string
}

// NewSymposium ...
func NewSymposium(name string) *Symposium {
	return &Symposium{name: name}
}

// Name returns the symposium's name.
func (s *Symposium) Name() string {
	return s.name
}

// Reduce produces a meta artifact whose data is the ordered join of the
// inputs' data and whose value is the mean of the input values scaled by the
// synthesis premium. Re-running Reduce on an unchanged input set produces a
// new artifact with a fresh timestamp but the same hash; once the inputs
// change, the hash changes with them.
func (s *Symposium) Reduce(artifacts []*artifact.Artifact) (*artifact.Artifact, error) {
	if len(artifacts) == 0 {
		return nil, ErrNoArtifacts
	}

	parts := make([]string, len(artifacts))
	sum := 0.0
	for i, a := range artifacts {
		parts[i] = a.Data
		sum += a.Value
	}

	value := sum / float64(len(artifacts)) * Premium

	return artifact.NewWithValue(strings.Join(parts, joinDelimiter), artifact.Meta, value), nil
}
