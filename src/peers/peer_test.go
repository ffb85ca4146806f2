package peers

import (
	"io/ioutil"
	"os"
	"reflect"
	"testing"
)

func TestPeerSetAddRemove(t *testing.T) {
	ps := NewPeerSet()

	ps.AddPeer(NewPeer("b", "127.0.0.1:2002"))
	ps.AddPeer(NewPeer("a", "127.0.0.1:2001"))
	ps.AddPeer(NewPeer("dup", "127.0.0.1:2001"))

	if ps.Len() != 2 {
		t.Fatalf("expected 2 peers, got %d", ps.Len())
	}

	got := []string{}
	for _, p := range ps.Peers() {
		got = append(got, p.NetAddr)
	}
	want := []string{"127.0.0.1:2001", "127.0.0.1:2002"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("peers not sorted by address: %v", got)
	}

	ps.RemovePeer("127.0.0.1:2001")
	if ps.Len() != 1 {
		t.Fatalf("expected 1 peer after removal, got %d", ps.Len())
	}
	if _, ok := ps.ByAddr("127.0.0.1:2001"); ok {
		t.Fatal("removed peer still resolvable by address")
	}
}

func TestJSONPeerSet(t *testing.T) {
	dir, err := ioutil.TempDir("", "json_peer_set_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store := NewJSONPeerSet(dir)

	// The file does not exist yet
	if _, err := store.PeerSet(); err == nil {
		t.Fatal("expected error loading missing peers.json")
	}

	peers := []*Peer{
		NewPeer("node0", "127.0.0.1:9000"),
		NewPeer("node1", "127.0.0.1:9001"),
		NewPeer("node2", "127.0.0.2:9000"),
	}

	if err := store.Write(peers); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.PeerSet()
	if err != nil {
		t.Fatal(err)
	}

	if loaded.Len() != len(peers) {
		t.Fatalf("expected %d peers, got %d", len(peers), loaded.Len())
	}

	for _, p := range peers {
		lp, ok := loaded.ByAddr(p.NetAddr)
		if !ok {
			t.Fatalf("peer %s missing after reload", p.NetAddr)
		}
		if lp.Moniker != p.Moniker {
			t.Fatalf("wrong moniker for %s: %s", p.NetAddr, lp.Moniker)
		}
		if lp.ID != p.ID {
			t.Fatalf("ID not recomputed for %s", p.NetAddr)
		}
	}
}
