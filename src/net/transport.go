package net

import (
	"github.com/meshworks/manifold/src/artifact"
)

// Transport provides an interface for network transports to allow a node to
// exchange artifacts with other nodes.
type Transport interface {

	// Listen starts the transport listening for inbound artifacts. It
	// blocks until the transport is closed.
	Listen()

	// Consumer returns a channel that delivers decoded inbound artifacts.
	Consumer() <-chan *artifact.Artifact

	// LocalAddr is used to return our local address.
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other
	// peers can reach us.
	AdvertiseAddr() string

	// Send frames and delivers one artifact to the target address.
	Send(target string, a *artifact.Artifact) error

	// Close permanently closes the transport, stopping any associated
	// goroutines and freeing other resources.
	Close() error
}
