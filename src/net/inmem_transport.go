package net

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meshworks/manifold/src/artifact"
)

// NewInmemAddr returns a new in-memory addr with a random UUID as the ID.
func NewInmemAddr() string {
	return uuid.New().String()
}

// InmemTransport implements the Transport interface, to allow the mesh to be
// tested in-memory without going over a network.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan *artifact.Artifact
	localAddr  string
	peers      map[string]*InmemTransport
	timeout    time.Duration
}

// NewInmemTransport is used to initialize a new transport and generates a
// random local address if none is specified.
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan *artifact.Artifact, 16),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		timeout:    50 * time.Millisecond,
	}
	return addr, trans
}

// Listen implements the Transport interface.
func (i *InmemTransport) Listen() {
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan *artifact.Artifact {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// Send implements the Transport interface. The artifact goes through a
// marshal/unmarshal round trip so the receiver gets its own copy, the same
// way the wire transport behaves.
func (i *InmemTransport) Send(target string, a *artifact.Artifact) error {
	i.RLock()
	peer, ok := i.peers[target]
	i.RUnlock()

	if !ok {
		return fmt.Errorf("failed to connect to peer: %v", target)
	}

	raw, err := a.Marshal()
	if err != nil {
		return err
	}

	copied := new(artifact.Artifact)
	if err := copied.Unmarshal(raw); err != nil {
		return err
	}

	if err := copied.Verify(); err != nil {
		return err
	}

	select {
	case peer.consumerCh <- copied:
		return nil
	case <-time.After(i.timeout):
		return fmt.Errorf("send to %v timed out", target)
	}
}

// Connect is used to connect this transport to another transport for a given
// peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport.
func (i *InmemTransport) Close() error {
	return nil
}
