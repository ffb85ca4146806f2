// Package discovery implements zero-configuration peer discovery over UDP
// broadcast. Each node periodically announces its moniker and reachable
// address; a listener feeds announcements from other nodes back to the mesh.
package discovery

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"github.com/meshworks/manifold/src/peers"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// maxDatagramSize bounds announcement datagrams. Announcements are tiny;
// anything bigger is garbage.
const maxDatagramSize = 1024

// Announcement is the discovery wire format.
type Announcement struct {
	Moniker string `json:"moniker"`
	NetAddr string `json:"net_addr"`
}

// PeerFunc receives peers heard on the discovery port.
type PeerFunc func(*peers.Peer)

// Discovery announces the local node and listens for other nodes on a UDP
// port. A Discovery with port 0 is disabled and all its methods are no-ops.
type Discovery struct {
	moniker  string
	netAddr  string
	port     int
	interval time.Duration

	// target is the announce destination. It defaults to the limited
	// broadcast address and is overridable for tests.
	target string

	onPeer PeerFunc

	conn       *net.UDPConn
	shutdownCh chan struct{}

	logger *logrus.Entry
}

// NewDiscovery ...
func NewDiscovery(
	moniker string,
	netAddr string,
	port int,
	interval time.Duration,
	onPeer PeerFunc,
	logger *logrus.Entry) *Discovery {

	return &Discovery{
		moniker:    moniker,
		netAddr:    netAddr,
		port:       port,
		interval:   interval,
		target:     fmt.Sprintf("255.255.255.255:%d", port),
		onPeer:     onPeer,
		shutdownCh: make(chan struct{}),
		logger:     logger.WithField("prefix", "discovery"),
	}
}

// Start binds the discovery port and launches the announce and listen
// loops.
func (d *Discovery) Start() error {
	if d.port == 0 {
		d.logger.Debug("Discovery disabled")
		return nil
	}

	laddr := &net.UDPAddr{IP: net.IPv4zero, Port: d.port}

	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return err
	}
	d.conn = conn

	go d.listen()
	go d.announce()

	d.logger.WithFields(logrus.Fields{
		"port":     d.port,
		"interval": d.interval,
	}).Debug("Discovery started")

	return nil
}

func (d *Discovery) announce() {
	payload, err := marshalAnnouncement(&Announcement{
		Moniker: d.moniker,
		NetAddr: d.netAddr,
	})
	if err != nil {
		d.logger.WithField("error", err).Error("Encoding announcement")
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conn, err := net.Dial("udp4", d.target)
			if err != nil {
				d.logger.WithField("error", err).Debug("Dialing announce target")
				continue
			}
			if _, err := conn.Write(payload); err != nil {
				d.logger.WithField("error", err).Debug("Sending announcement")
			}
			conn.Close()
		case <-d.shutdownCh:
			return
		}
	}
}

func (d *Discovery) listen() {
	buf := make([]byte, maxDatagramSize)

	for {
		n, _, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-d.shutdownCh:
				return
			default:
				d.logger.WithField("error", err).Debug("Reading discovery datagram")
				continue
			}
		}

		ann := new(Announcement)
		if err := unmarshalAnnouncement(buf[:n], ann); err != nil {
			d.logger.WithField("error", err).Debug("Dropping malformed announcement")
			continue
		}

		//our own broadcasts come back to us
		if ann.NetAddr == d.netAddr {
			continue
		}

		d.onPeer(peers.NewPeer(ann.Moniker, ann.NetAddr))
	}
}

// Shutdown stops the loops and closes the socket.
func (d *Discovery) Shutdown() {
	if d.port == 0 {
		return
	}

	close(d.shutdownCh)

	if d.conn != nil {
		d.conn.Close()
	}
}

func marshalAnnouncement(ann *Announcement) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true

	if err := codec.NewEncoder(b, jh).Encode(ann); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func unmarshalAnnouncement(data []byte, ann *Announcement) error {
	jh := new(codec.JsonHandle)
	jh.Canonical = true

	return codec.NewDecoder(bytes.NewBuffer(data), jh).Decode(ann)
}
