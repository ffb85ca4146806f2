package node

import (
	"math/rand"
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// ControlTimer drives the local generation loop. It can be reset or stopped
// by the routines that listen to it.
type ControlTimer struct {
	timerFactory timerFactory
	tickCh       chan struct{}      //sends a signal to listening process
	resetCh      chan time.Duration //receives instruction to reset the timer
	stopCh       chan struct{}      //receives instruction to stop the timer
	shutdownCh   chan struct{}      //receives instruction to exit Run loop
	set          bool
}

// NewControlTimer ...
func NewControlTimer(timerFactory timerFactory) *ControlTimer {
	return &ControlTimer{
		timerFactory: timerFactory,
		tickCh:       make(chan struct{}),
		resetCh:      make(chan time.Duration),
		stopCh:       make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

// NewRandomControlTimer spreads ticks over [min, 2*min) so that nodes
// started together do not generate in lockstep.
func NewRandomControlTimer() *ControlTimer {
	randomTimeout := func(min time.Duration) <-chan time.Time {
		if min == 0 {
			return nil
		}
		extra := (time.Duration(rand.Int63()) % min)
		return time.After(min + extra)
	}
	return NewControlTimer(randomTimeout)
}

// Run ...
func (c *ControlTimer) Run(init time.Duration) {

	setTimer := func(t time.Duration) <-chan time.Time {
		c.set = true
		return c.timerFactory(t)
	}

	timer := setTimer(init)
	for {
		select {
		case <-timer:
			c.tickCh <- struct{}{}
			c.set = false
			timer = setTimer(init)
		case t := <-c.resetCh:
			timer = setTimer(t)
		case <-c.stopCh:
			timer = nil
			c.set = false
		case <-c.shutdownCh:
			c.set = false
			return
		}
	}
}

// Shutdown ...
func (c *ControlTimer) Shutdown() {
	close(c.shutdownCh)
}
