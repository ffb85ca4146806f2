// Package gate implements the acceptance gate that decides whether incoming
// artifacts are admitted into a node's local store. A gate aggregates the
// scores of its advisors and accepts an artifact when the mean score strictly
// exceeds the threshold.
package gate

import (
	"errors"

	"github.com/meshworks/manifold/src/artifact"
)

// DefaultThreshold is the acceptance threshold applied when callers do not
// override it.
const DefaultThreshold = 0.3

// ErrNoAdvisors is returned when a gate is constructed without advisors. An
// advisor-less gate is a configuration error, not a pass-through.
var ErrNoAdvisors = errors.New("gate: advisor list is empty")

// ScoreFunc scores an artifact in [0,1].
type ScoreFunc func(*artifact.Artifact) float64

// Advisor is a named scoring function.
type Advisor struct {
	Name  string
	Score ScoreFunc
}

// Gate is a pluggable acceptance predicate composed of advisors.
type Gate struct {
	name      string
	advisors  []Advisor
	threshold float64
}

// NewGate creates a Gate. It fails fast on an empty advisor list.
func NewGate(name string, threshold float64, advisors []Advisor) (*Gate, error) {
	if len(advisors) == 0 {
		return nil, ErrNoAdvisors
	}

	return &Gate{
		name:      name,
		advisors:  advisors,
		threshold: threshold,
	}, nil
}

// Name returns the gate's name.
func (g *Gate) Name() string {
	return g.name
}

// Score returns the mean advisor score for the artifact.
func (g *Gate) Score(a *artifact.Artifact) float64 {
	sum := 0.0
	for _, adv := range g.advisors {
		sum += adv.Score(a)
	}
	return sum / float64(len(g.advisors))
}

// Evaluate accepts the artifact iff the mean advisor score strictly exceeds
// the threshold. A score exactly at the threshold is a rejection.
func (g *Gate) Evaluate(a *artifact.Artifact) bool {
	return g.Score(a) > g.threshold
}
