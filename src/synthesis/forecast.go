package synthesis

import (
	"sort"
	"strings"

	"github.com/meshworks/manifold/src/artifact"
)

// ForecastPremium is the multiplier applied to the summed value of the
// top-ranked artifacts in a forecast.
const ForecastPremium = 1.1

// DefaultForecastTop is the number of top-ranked artifacts included in a
// forecast.
const DefaultForecastTop = 5

const forecastDelimiter = " + "

// Forecaster builds a predictive meta artifact from the artifacts with the
// highest growth momentum, where momentum is value weighted by the length of
// the provenance trail.
type Forecaster struct {
	name string
	top  int
}

// NewForecaster ...
func NewForecaster(name string, top int) *Forecaster {
	if top <= 0 {
		top = DefaultForecastTop
	}
	return &Forecaster{name: name, top: top}
}

// Forecast ranks the inputs by value x provenance-length, takes the top N,
// and produces a meta artifact joining their data, valued at the sum of
// their values scaled by the forecast premium.
func (f *Forecaster) Forecast(artifacts []*artifact.Artifact) (*artifact.Artifact, error) {
	if len(artifacts) == 0 {
		return nil, ErrNoArtifacts
	}

	ranked := make([]*artifact.Artifact, len(artifacts))
	copy(ranked, artifacts)

	momentum := func(a *artifact.Artifact) float64 {
		return a.Value * float64(len(a.ProcessedBy))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		mi, mj := momentum(ranked[i]), momentum(ranked[j])
		if mi != mj {
			return mi > mj
		}
		return ranked[i].Hash < ranked[j].Hash
	})

	if len(ranked) > f.top {
		ranked = ranked[:f.top]
	}

	parts := make([]string, len(ranked))
	sum := 0.0
	for i, a := range ranked {
		parts[i] = a.Data
		sum += a.Value
	}

	value := sum * ForecastPremium

	return artifact.NewWithValue(strings.Join(parts, forecastDelimiter), artifact.Meta, value), nil
}
