package gate

import (
	"testing"
	"time"

	"github.com/meshworks/manifold/src/artifact"
)

func TestEmptyAdvisorsFailFast(t *testing.T) {
	if _, err := NewGate("empty", DefaultThreshold, nil); err != ErrNoAdvisors {
		t.Fatalf("expected ErrNoAdvisors, got %v", err)
	}
}

func TestThresholdBoundary(t *testing.T) {
	a := artifact.NewWithValue("boundary", artifact.Knowledge, 0.5)

	atThreshold, err := NewGate("at", DefaultThreshold, []Advisor{
		ConstantAdvisor("const", DefaultThreshold),
	})
	if err != nil {
		t.Fatal(err)
	}
	if atThreshold.Evaluate(a) {
		t.Fatal("score equal to threshold must be rejected (strict >)")
	}

	epsilon := 0.0001
	aboveThreshold, err := NewGate("above", DefaultThreshold, []Advisor{
		ConstantAdvisor("const", DefaultThreshold+epsilon),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !aboveThreshold.Evaluate(a) {
		t.Fatal("score above threshold must be accepted")
	}
}

func TestMeanAggregation(t *testing.T) {
	a := artifact.NewWithValue("mean", artifact.Knowledge, 0.5)

	g, err := NewGate("mean", DefaultThreshold, []Advisor{
		ConstantAdvisor("low", 0.0),
		ConstantAdvisor("mid", 0.5),
		ConstantAdvisor("high", 1.0),
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := g.Score(a); got != 0.5 {
		t.Fatalf("mean score: got %f, want 0.5", got)
	}
	if !g.Evaluate(a) {
		t.Fatal("mean 0.5 against threshold 0.3 must accept")
	}
}

func TestStockAdvisorsBounded(t *testing.T) {
	arts := []*artifact.Artifact{
		artifact.NewWithValue("", artifact.Knowledge, 0),
		artifact.NewWithValue("short", artifact.Media, 0.5),
		artifact.NewWithValue("a somewhat longer artifact payload than the others", artifact.Meta, 1),
	}

	advisors := []Advisor{
		RandomAdvisor("random"),
		LengthAdvisor("length", 20),
		RecencyAdvisor("recency", time.Minute),
	}

	for _, adv := range advisors {
		for _, a := range arts {
			s := adv.Score(a)
			if s < 0 || s > 1 {
				t.Fatalf("advisor %s scored %f outside [0,1]", adv.Name, s)
			}
		}
	}
}
