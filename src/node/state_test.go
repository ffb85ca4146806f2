package node

import (
	"testing"
)

func TestGoFuncLimit(t *testing.T) {
	s := &state{}

	release := make(chan struct{})
	started := make(chan struct{}, WGLIMIT)

	for i := 0; i < WGLIMIT; i++ {
		if !s.goFunc(func() {
			started <- struct{}{}
			<-release
		}) {
			t.Fatalf("routine %d should have been accepted", i)
		}
	}

	//make sure every routine is live before testing the limit
	for i := 0; i < WGLIMIT; i++ {
		<-started
	}

	if s.goFunc(func() {}) {
		t.Fatal("routine past the limit should be refused")
	}

	close(release)
	s.waitRoutines()

	if !s.goFunc(func() {}) {
		t.Fatal("routine should be accepted again after the others finish")
	}

	s.waitRoutines()
}
