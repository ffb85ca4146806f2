package net

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/meshworks/manifold/src/artifact"
	"github.com/sirupsen/logrus"
)

const (
	bufSize = 65535
)

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")
)

/*
NetworkTransport provides a network based transport that can be used to
exchange artifacts with remote nodes. It requires an underlying stream layer
to provide a stream abstraction, which can be simple TCP, TLS, etc.

The protocol is one-way: each frame carries one JSON-encoded artifact and no
response is expected. Delivery reliability comes from the node's periodic
self-heal re-broadcast, not from acknowledgements.
*/
type NetworkTransport struct {
	logger *logrus.Entry

	connPool     map[string][]*netConn
	connPoolLock sync.Mutex
	maxPool      int

	consumeCh chan *artifact.Artifact

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	stream StreamLayer

	timeout time.Duration
}

type netConn struct {
	target string
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
}

// Release closes the underlying connection
func (n *netConn) Release() error {
	return n.conn.Close()
}

// NewNetworkTransport creates a new network transport with the given stream
// layer. The maxPool controls how many connections we will pool per target.
// The timeout is used to apply I/O deadlines.
func NewNetworkTransport(
	stream StreamLayer,
	maxPool int,
	timeout time.Duration,
	logger *logrus.Entry,
) *NetworkTransport {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	trans := &NetworkTransport{
		connPool:   make(map[string][]*netConn),
		consumeCh:  make(chan *artifact.Artifact),
		logger:     logger,
		maxPool:    maxPool,
		shutdownCh: make(chan struct{}),
		stream:     stream,
		timeout:    timeout,
	}

	return trans
}

// Close is used to stop the network transport.
func (n *NetworkTransport) Close() error {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if !n.shutdown {
		close(n.shutdownCh)
		n.stream.Close()

		n.shutdown = true
	}
	return nil
}

// Consumer implements the Transport interface.
func (n *NetworkTransport) Consumer() <-chan *artifact.Artifact {
	return n.consumeCh
}

// LocalAddr implements the Transport interface.
func (n *NetworkTransport) LocalAddr() string {
	addr := n.stream.Addr()

	if addr != nil {
		return addr.String()
	}

	return ""
}

// AdvertiseAddr implements the Transport interface.
func (n *NetworkTransport) AdvertiseAddr() string {
	return n.stream.AdvertiseAddr()
}

// IsShutdown is used to check if the transport is shutdown.
func (n *NetworkTransport) IsShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// getPooledConn is used to grab a pooled connection.
func (n *NetworkTransport) getPooledConn(target string) *netConn {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	conns, ok := n.connPool[target]
	if !ok || len(conns) == 0 {
		return nil
	}

	var conn *netConn
	num := len(conns)
	conn, conns[num-1] = conns[num-1], nil
	n.connPool[target] = conns[:num-1]
	return conn
}

// getConn is used to get a connection to the target, pooled or fresh.
func (n *NetworkTransport) getConn(target string, timeout time.Duration) (*netConn, error) {
	// Check for a pooled conn
	if conn := n.getPooledConn(target); conn != nil {
		return conn, nil
	}

	// Dial a new connection
	conn, err := n.stream.Dial(target, timeout)
	if err != nil {
		return nil, err
	}

	// Wrap the conn
	netConn := &netConn{
		target: target,
		conn:   conn,
		r:      bufio.NewReaderSize(conn, bufSize),
		w:      bufio.NewWriterSize(conn, bufSize),
	}

	return netConn, nil
}

// returnConn returns a connection back to the pool.
func (n *NetworkTransport) returnConn(conn *netConn) {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	key := conn.target
	conns := n.connPool[key]

	if !n.IsShutdown() && len(conns) < n.maxPool {
		n.connPool[key] = append(conns, conn)
	} else {
		conn.Release()
	}
}

// Send implements the Transport interface. A failed send releases the
// connection; the caller decides when to retry.
func (n *NetworkTransport) Send(target string, a *artifact.Artifact) error {
	if n.IsShutdown() {
		return ErrTransportShutdown
	}

	raw, err := a.Marshal()
	if err != nil {
		return err
	}

	conn, err := n.getConn(target, n.timeout)
	if err != nil {
		return err
	}

	if n.timeout > 0 {
		conn.conn.SetWriteDeadline(time.Now().Add(n.timeout))
	}

	if err := WriteFrame(conn.w, raw); err != nil {
		conn.Release()
		return err
	}

	if err := conn.w.Flush(); err != nil {
		conn.Release()
		return err
	}

	n.returnConn(conn)

	return nil
}

// Listen opens the stream and handles incoming connections.
func (n *NetworkTransport) Listen() {
	for {
		// Accept incoming connections
		conn, err := n.stream.Accept()
		if err != nil {
			if n.IsShutdown() {
				return
			}
			n.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		n.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		// Handle the connection in dedicated routine
		go n.handleConn(conn)
	}
}

// handleConn is used to handle an inbound connection for its lifespan,
// decoding a stream of frames into the consume channel.
func (n *NetworkTransport) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReaderSize(conn, bufSize)

	for {
		payload, err := ReadFrame(r)
		if err != nil {
			if err != io.EOF {
				n.logger.WithField("error", err).Error("Failed to read frame")
			}
			return
		}

		a := new(artifact.Artifact)
		if err := a.Unmarshal(payload); err != nil {
			// The frame boundary is intact; drop the payload and keep
			// reading.
			n.logger.WithField("error", err).Error("Failed to decode artifact")
			continue
		}

		if err := a.Verify(); err != nil {
			n.logger.WithFields(logrus.Fields{
				"hash":  a.Hash,
				"error": err,
			}).Error("Dropping corrupt artifact")
			continue
		}

		select {
		case n.consumeCh <- a:
		case <-n.shutdownCh:
			return
		}
	}
}
