package node

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meshworks/manifold/src/artifact"
	"github.com/meshworks/manifold/src/net"
	"github.com/meshworks/manifold/src/peers"
	"github.com/meshworks/manifold/src/store"
)

type testMesh struct {
	nodes  []*Node
	trans  []*net.InmemTransport
	addrs  []string
	client *net.InmemTransport
}

// newTestMesh builds n fully connected nodes over in-memory transports,
// plus a client transport connected to every node for injecting artifacts.
func newTestMesh(t *testing.T, monikers []string) *testMesh {
	mesh := &testMesh{}

	for range monikers {
		addr, trans := net.NewInmemTransport("")
		mesh.addrs = append(mesh.addrs, addr)
		mesh.trans = append(mesh.trans, trans)
	}

	peerSlice := []*peers.Peer{}
	for i, moniker := range monikers {
		peerSlice = append(peerSlice, peers.NewPeer(moniker, mesh.addrs[i]))
	}

	for i, trans := range mesh.trans {
		for j, other := range mesh.trans {
			if i != j {
				trans.Connect(mesh.addrs[j], other)
			}
		}
	}

	_, client := net.NewInmemTransport("")
	for i, trans := range mesh.trans {
		client.Connect(mesh.addrs[i], trans)
	}
	mesh.client = client

	for i, moniker := range monikers {
		conf := TestConfig(t)

		node := NewNode(conf,
			moniker,
			peers.NewPeerSetFromSlice(peerSlice),
			store.NewInmemStore(),
			acceptAllGate(t),
			mesh.trans[i],
			nil,
		)

		if err := node.Init(); err != nil {
			t.Fatal(err)
		}

		mesh.nodes = append(mesh.nodes, node)
	}

	return mesh
}

func (m *testMesh) run() {
	for _, n := range m.nodes {
		n.RunAsync(false)
	}
}

func (m *testMesh) shutdown() {
	for _, n := range m.nodes {
		n.Shutdown()
	}
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestNodePropagation(t *testing.T) {
	mesh := newTestMesh(t, []string{"alice", "bob"})
	defer mesh.shutdown()
	mesh.run()

	a := artifact.New("breaking news", artifact.Knowledge)
	if err := mesh.client.Send(mesh.addrs[0], a); err != nil {
		t.Fatal(err)
	}

	eventually(t, 3*time.Second, func() bool {
		for _, n := range mesh.nodes {
			if _, ok := n.GetArtifact(a.Hash); !ok {
				return false
			}
		}
		return true
	}, "artifact should reach every node")

	//the copy on bob traveled through alice, so it carries both monikers
	stored, _ := mesh.nodes[1].GetArtifact(a.Hash)
	if len(stored.ProcessedBy) != 2 ||
		stored.ProcessedBy[0] != "alice" || stored.ProcessedBy[1] != "bob" {
		t.Fatalf("provenance should be [alice bob], got %v", stored.ProcessedBy)
	}
}

func TestNodeLoopPrevention(t *testing.T) {
	mesh := newTestMesh(t, []string{"alice", "bob", "carol"})
	defer mesh.shutdown()
	mesh.run()

	a := artifact.New("echo chamber", artifact.Knowledge)
	if err := mesh.client.Send(mesh.addrs[0], a); err != nil {
		t.Fatal(err)
	}

	eventually(t, 3*time.Second, func() bool {
		for _, n := range mesh.nodes {
			if _, ok := n.GetArtifact(a.Hash); !ok {
				return false
			}
		}
		return true
	}, "artifact should reach every node")

	//let re-broadcasts settle; the seen-set keeps every store at one copy
	time.Sleep(300 * time.Millisecond)

	for i, n := range mesh.nodes {
		n.coreLock.Lock()
		count := n.core.store.Count(artifact.Knowledge)
		n.coreLock.Unlock()

		if count != 1 {
			t.Fatalf("node %d should hold exactly 1 artifact, got %d", i, count)
		}
	}
}

func TestNodeSelfHeal(t *testing.T) {
	mesh := newTestMesh(t, []string{"alice", "bob"})
	defer mesh.shutdown()

	//alice cannot reach bob for now
	mesh.trans[0].Disconnect(mesh.addrs[1])

	mesh.run()

	a := artifact.New("missed update", artifact.Knowledge)
	if err := mesh.client.Send(mesh.addrs[0], a); err != nil {
		t.Fatal(err)
	}

	eventually(t, 3*time.Second, func() bool {
		_, ok := mesh.nodes[0].GetArtifact(a.Hash)
		return ok
	}, "alice should ingest the artifact")

	if _, ok := mesh.nodes[1].GetArtifact(a.Hash); ok {
		t.Fatal("bob should not have the artifact during the partition")
	}

	//heal the partition; the next self-heal round re-broadcasts state
	mesh.trans[0].Connect(mesh.addrs[1], mesh.trans[1])

	eventually(t, 3*time.Second, func() bool {
		_, ok := mesh.nodes[1].GetArtifact(a.Hash)
		return ok
	}, "bob should converge after the partition heals")
}

func TestNodeSelfHealMedia(t *testing.T) {
	mesh := newTestMesh(t, []string{"alice", "bob"})
	defer mesh.shutdown()

	//alice cannot reach bob for now
	mesh.trans[0].Disconnect(mesh.addrs[1])

	mesh.run()

	//one artifact per non-knowledge kind; neither goes through the gate
	m := artifact.New("cat picture", artifact.Media)
	meta := artifact.NewWithValue("summary", artifact.Meta, 1.0)

	if err := mesh.client.Send(mesh.addrs[0], m); err != nil {
		t.Fatal(err)
	}
	if err := mesh.client.Send(mesh.addrs[0], meta); err != nil {
		t.Fatal(err)
	}

	eventually(t, 3*time.Second, func() bool {
		_, okMedia := mesh.nodes[0].GetArtifact(m.Hash)
		_, okMeta := mesh.nodes[0].GetArtifact(meta.Hash)
		return okMedia && okMeta
	}, "alice should ingest the media and meta artifacts")

	if _, ok := mesh.nodes[1].GetArtifact(m.Hash); ok {
		t.Fatal("bob should not have the media artifact during the partition")
	}

	//heal the partition; self-heal must cover every store, not just knowledge
	mesh.trans[0].Connect(mesh.addrs[1], mesh.trans[1])

	eventually(t, 3*time.Second, func() bool {
		_, okMedia := mesh.nodes[1].GetArtifact(m.Hash)
		_, okMeta := mesh.nodes[1].GetArtifact(meta.Hash)
		return okMedia && okMeta
	}, "bob should converge on media and meta artifacts after the partition heals")
}

func TestNodeUnreachablePeerRemoved(t *testing.T) {
	_, trans := net.NewInmemTransport("")
	defer trans.Close()

	conf := TestConfig(t)
	conf.MaxRetries = 2

	peerSet := peers.NewPeerSetFromSlice([]*peers.Peer{
		peers.NewPeer("ghost", "nowhere:1234"),
	})

	node := NewNode(conf, "alice", peerSet, store.NewInmemStore(),
		acceptAllGate(t), trans, nil)

	if err := node.Init(); err != nil {
		t.Fatal(err)
	}
	defer node.Shutdown()

	a := artifact.New("unroutable", artifact.Knowledge)

	for i := 0; i < conf.MaxRetries+1; i++ {
		node.propagate(a)
		//step past the backoff window so the next send is attempted
		time.Sleep(conf.RetryBackoffMax)
	}

	if _, ok := peerSet.ByAddr("nowhere:1234"); ok {
		t.Fatal("unreachable peer should have been removed")
	}
}

func TestNodeSnapshotFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "node_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.json")

	_, trans := net.NewInmemTransport("")

	node := NewNode(TestConfig(t), "alice", peers.NewPeerSet(),
		store.NewInmemStore(), acceptAllGate(t), trans,
		store.NewSnapshotFile(path))

	if err := node.Init(); err != nil {
		t.Fatal(err)
	}

	a := artifact.New("persistent fact", artifact.Knowledge)
	node.ingest(a)

	node.Shutdown()

	snap, err := store.NewSnapshotFile(path).Read()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := snap.State[a.Hash]; !ok {
		t.Fatal("snapshot should contain the ingested artifact")
	}

	//a fresh node restores the snapshot on Init
	_, trans2 := net.NewInmemTransport("")
	node2 := NewNode(TestConfig(t), "alice", peers.NewPeerSet(),
		store.NewInmemStore(), acceptAllGate(t), trans2,
		store.NewSnapshotFile(path))

	if err := node2.Init(); err != nil {
		t.Fatal(err)
	}
	defer node2.Shutdown()

	if _, ok := node2.GetArtifact(a.Hash); !ok {
		t.Fatal("restored node should hold the snapshotted artifact")
	}
}

func TestNodeSynthesisPropagates(t *testing.T) {
	mesh := newTestMesh(t, []string{"alice", "bob"})
	defer mesh.shutdown()
	mesh.run()

	a := artifact.New("raw material", artifact.Knowledge)
	if err := mesh.client.Send(mesh.addrs[0], a); err != nil {
		t.Fatal(err)
	}

	//each node synthesizes its own meta artifact and they cross-propagate
	eventually(t, 3*time.Second, func() bool {
		for _, n := range mesh.nodes {
			n.coreLock.Lock()
			count := n.core.store.Count(artifact.Meta)
			n.coreLock.Unlock()
			if count == 0 {
				return false
			}
		}
		return true
	}, "every node should hold meta artifacts")
}

func TestNodeShutdownTwice(t *testing.T) {
	_, trans := net.NewInmemTransport("")

	node := NewNode(TestConfig(t), "alice", peers.NewPeerSet(),
		store.NewInmemStore(), acceptAllGate(t), trans, nil)

	if err := node.Init(); err != nil {
		t.Fatal(err)
	}
	node.RunAsync(false)

	node.Shutdown()
	node.Shutdown()

	if node.getState() != Shutdown {
		t.Fatalf("state should be Shutdown, got %v", node.getState())
	}
}

func TestNodeAddPeer(t *testing.T) {
	addr, trans := net.NewInmemTransport("")
	defer trans.Close()

	node := NewNode(TestConfig(t), "alice", peers.NewPeerSet(),
		store.NewInmemStore(), acceptAllGate(t), trans, nil)

	node.AddPeer(peers.NewPeer("bob", "inmem://bob"))
	node.AddPeer(peers.NewPeer("bob", "inmem://bob"))
	node.AddPeer(peers.NewPeer("alice", addr)) //self announcement

	got := node.GetPeers()
	if len(got) != 1 || got[0].Moniker != "bob" {
		t.Fatalf("peer set should contain only bob, got %v", got)
	}
}
