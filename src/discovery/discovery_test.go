package discovery

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/meshworks/manifold/src/common"
	"github.com/meshworks/manifold/src/peers"
)

// freeUDPPort grabs an ephemeral UDP port and releases it for the caller.
func freeUDPPort(t *testing.T) int {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	return conn.LocalAddr().(*net.UDPAddr).Port
}

func TestDiscoveryListen(t *testing.T) {
	port := freeUDPPort(t)

	peerCh := make(chan *peers.Peer, 4)
	onPeer := func(p *peers.Peer) { peerCh <- p }

	d := NewDiscovery("bob", "127.0.0.1:7000", port, time.Hour, onPeer,
		common.NewTestEntry(t))

	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	defer d.Shutdown()

	payload, err := marshalAnnouncement(&Announcement{
		Moniker: "alice",
		NetAddr: "127.0.0.1:6000",
	})
	if err != nil {
		t.Fatal(err)
	}

	conn, err := net.Dial("udp4", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	//own announcements must be filtered out
	own, err := marshalAnnouncement(&Announcement{
		Moniker: "bob",
		NetAddr: "127.0.0.1:7000",
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := conn.Write(own); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write(payload); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-peerCh:
		if p.Moniker != "alice" || p.NetAddr != "127.0.0.1:6000" {
			t.Fatalf("unexpected peer %v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for discovered peer")
	}

	select {
	case p := <-peerCh:
		t.Fatalf("unexpected extra peer %v", p)
	default:
	}
}

func TestDiscoveryAnnounce(t *testing.T) {
	listenPort := freeUDPPort(t)

	listener, err := net.ListenUDP("udp4",
		&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: listenPort})
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	d := NewDiscovery("alice", "127.0.0.1:6000", freeUDPPort(t),
		20*time.Millisecond, func(*peers.Peer) {}, common.NewTestEntry(t))

	//announce over loopback instead of the broadcast address
	d.target = fmt.Sprintf("127.0.0.1:%d", listenPort)

	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	defer d.Shutdown()

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))

	buf := make([]byte, maxDatagramSize)
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatal(err)
	}

	ann := new(Announcement)
	if err := unmarshalAnnouncement(buf[:n], ann); err != nil {
		t.Fatal(err)
	}

	if ann.Moniker != "alice" || ann.NetAddr != "127.0.0.1:6000" {
		t.Fatalf("unexpected announcement %v", ann)
	}
}

func TestDiscoveryDisabled(t *testing.T) {
	d := NewDiscovery("alice", "127.0.0.1:6000", 0, time.Second,
		func(*peers.Peer) {}, common.NewTestEntry(t))

	if err := d.Start(); err != nil {
		t.Fatal(err)
	}

	d.Shutdown()
}
