package gate

import (
	"math/rand"
	"time"

	"github.com/meshworks/manifold/src/artifact"
)

// RandomAdvisor scores every artifact with a uniform random value. This is
// the scoring mode of the observed deployments; the gate outcome is
// explicitly non-deterministic with it. Tests should use deterministic
// advisors instead.
func RandomAdvisor(name string) Advisor {
	return Advisor{
		Name:  name,
		Score: func(*artifact.Artifact) float64 { return rand.Float64() },
	}
}

// ConstantAdvisor scores every artifact with the same value.
func ConstantAdvisor(name string, score float64) Advisor {
	return Advisor{
		Name:  name,
		Score: func(*artifact.Artifact) float64 { return score },
	}
}

// LengthAdvisor scores artifacts by payload size relative to max, capped at
// 1. Longer payloads score higher.
func LengthAdvisor(name string, max int) Advisor {
	return Advisor{
		Name: name,
		Score: func(a *artifact.Artifact) float64 {
			if max <= 0 {
				return 0
			}
			s := float64(len(a.Data)) / float64(max)
			if s > 1 {
				return 1
			}
			return s
		},
	}
}

// RecencyAdvisor scores artifacts by age: 1 for a brand new artifact,
// decaying linearly to 0 at the window boundary.
func RecencyAdvisor(name string, window time.Duration) Advisor {
	return Advisor{
		Name: name,
		Score: func(a *artifact.Artifact) float64 {
			if window <= 0 {
				return 0
			}
			age := float64(time.Now().UnixNano())/float64(time.Second) - a.Timestamp
			if age < 0 {
				age = 0
			}
			s := 1 - age/window.Seconds()
			if s < 0 {
				return 0
			}
			return s
		},
	}
}
