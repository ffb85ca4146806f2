package node

import (
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/meshworks/manifold/src/artifact"
	"github.com/meshworks/manifold/src/gate"
	"github.com/meshworks/manifold/src/net"
	"github.com/meshworks/manifold/src/peers"
	"github.com/meshworks/manifold/src/store"
	"github.com/meshworks/manifold/src/synthesis"
	"github.com/sirupsen/logrus"
)

// peerBackoff tracks consecutive send failures to one peer. The peer is
// skipped until the deadline passes, and removed from the peer set when the
// failure count exceeds the configured maximum.
type peerBackoff struct {
	failures int
	until    time.Time
}

// Node is a running mesh participant. It consumes artifacts from the
// transport, runs them through the Core pipeline, propagates evolved copies
// to peers, and periodically self-heals, synthesizes, and generates.
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	core     *Core
	coreLock sync.Mutex

	peerSet *peers.PeerSet

	trans net.Transport
	netCh <-chan *artifact.Artifact

	// snapshotFile is nil when snapshot persistence is disabled.
	snapshotFile *store.SnapshotFile

	backoffs    map[string]*peerBackoff
	backoffLock sync.Mutex

	controlTimer *ControlTimer

	sigintCh   chan os.Signal
	shutdownCh chan struct{}

	start time.Time
}

// NewNode ...
func NewNode(conf *Config,
	moniker string,
	peerSet *peers.PeerSet,
	st store.Store,
	acceptance *gate.Gate,
	trans net.Transport,
	snapshotFile *store.SnapshotFile,
) *Node {
	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	node := Node{
		conf:         conf,
		logger:       conf.Logger.WithField("moniker", moniker),
		core:         NewCore(moniker, st, acceptance, conf.Logger.WithField("prefix", "core")),
		peerSet:      peerSet,
		trans:        trans,
		netCh:        trans.Consumer(),
		snapshotFile: snapshotFile,
		backoffs:     make(map[string]*peerBackoff),
		sigintCh:     sigintCh,
		shutdownCh:   make(chan struct{}),
		controlTimer: NewRandomControlTimer(),
	}

	return &node
}

// Init prepares the node for running: it recovers the generation counter
// from a pre-existing database, or restores a snapshot file when there is
// one, and starts the transport's listener.
func (n *Node) Init() error {
	if n.core.store.NeedBootstrap() {
		n.logger.Debug("Bootstrap")
		if err := n.core.Bootstrap(); err != nil {
			return err
		}
	} else if n.snapshotFile != nil {
		snap, err := n.snapshotFile.Read()
		if err != nil {
			if !os.IsNotExist(err) {
				return err
			}
		} else {
			if err := n.core.Restore(snap); err != nil {
				return err
			}
		}
	}

	go n.trans.Listen()

	n.setState(Running)

	n.start = time.Now()

	return nil
}

// RunAsync calls Run in a separate goroutine.
func (n *Node) RunAsync(generate bool) {
	n.logger.WithField("generate", generate).Debug("runasync")

	go n.Run(generate)
}

// Run invokes the main loop of the node. When generate is true, the node
// emits a new artifact on every heartbeat tick.
func (n *Node) Run(generate bool) {
	//The ControlTimer spreads generation ticks so that nodes started
	//together do not flood the mesh in lockstep.
	go n.controlTimer.Run(n.conf.HeartbeatTimeout)

	//Consume inbound artifacts regardless of timer activity.
	go n.doBackgroundWork()

	healTicker := time.NewTicker(n.conf.HealInterval)
	defer healTicker.Stop()

	synthesisTicker := time.NewTicker(n.conf.SynthesisInterval)
	defer synthesisTicker.Stop()

	for {
		select {
		case <-n.controlTimer.tickCh:
			if generate {
				n.generate()
			}
			n.logStats()
		case <-healTicker.C:
			n.selfHeal()
		case <-synthesisTicker.C:
			n.synthesize()
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) doBackgroundWork() {
	for {
		select {
		case a := <-n.netCh:
			if !n.goFunc(func() {
				n.ingest(a)
			}) {
				//self-heal redelivers; the drop only costs latency
				n.logger.WithField("hash", a.Hash).Debug("Routine limit reached, dropping artifact")
			}
		case <-n.shutdownCh:
			return
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT")
			n.Shutdown()
			os.Exit(0)
		}
	}
}

// ingest runs one inbound artifact through the pipeline and propagates the
// evolved copy when the pipeline accepted it.
func (n *Node) ingest(a *artifact.Artifact) {
	n.coreLock.Lock()
	evolved, err := n.core.Ingest(a)
	n.coreLock.Unlock()

	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"hash":  a.Hash,
			"error": err,
		}).Error("Dropping artifact")
		return
	}

	if evolved == nil {
		return
	}

	n.propagate(evolved)

	n.writeSnapshot()
}

// generate emits one locally numbered artifact and propagates it.
func (n *Node) generate() {
	n.coreLock.Lock()
	evolved, err := n.core.Generate()
	n.coreLock.Unlock()

	if err != nil {
		n.logger.WithField("error", err).Error("Generating artifact")
		return
	}

	if evolved == nil {
		return
	}

	n.propagate(evolved)

	n.writeSnapshot()
}

// synthesize runs the symposium and the forecaster over the accumulated
// knowledge and propagates any new meta artifacts.
func (n *Node) synthesize() {
	n.coreLock.Lock()
	reduced, redErr := n.core.Synthesize()
	forecast, foreErr := n.core.Forecast()
	n.coreLock.Unlock()

	//An empty store is the normal quiet state, not an error worth logging.
	if redErr != nil && redErr != synthesis.ErrNoArtifacts {
		n.logger.WithField("error", redErr).Error("Symposium")
	}
	if foreErr != nil && foreErr != synthesis.ErrNoArtifacts {
		n.logger.WithField("error", foreErr).Error("Forecast")
	}

	for _, meta := range []*artifact.Artifact{reduced, forecast} {
		if meta != nil {
			n.propagate(meta)
		}
	}

	if reduced != nil || forecast != nil {
		n.writeSnapshot()
	}
}

// selfHeal re-broadcasts every artifact in every store to every peer. Peers
// drop what they have already seen, so repeated rounds converge partitions
// without flooding.
func (n *Node) selfHeal() {
	n.coreLock.Lock()
	artifacts := n.core.store.AllArtifacts()
	n.coreLock.Unlock()

	if len(artifacts) == 0 {
		return
	}

	n.logger.WithField("artifacts", len(artifacts)).Debug("Self-heal round")

	for _, a := range artifacts {
		n.propagate(a)
	}
}

// propagate sends an artifact to every reachable peer. Peers inside their
// backoff window are skipped; peers that keep failing are removed.
func (n *Node) propagate(a *artifact.Artifact) {
	self := n.trans.AdvertiseAddr()

	for _, peer := range n.peerSet.Peers() {
		if peer.NetAddr == self {
			continue
		}

		if !n.sendAllowed(peer.NetAddr) {
			continue
		}

		if err := n.trans.Send(peer.NetAddr, a); err != nil {
			n.logger.WithFields(logrus.Fields{
				"peer":  peer.NetAddr,
				"error": err,
			}).Debug("Sending artifact")
			n.recordFailure(peer)
			continue
		}

		n.clearBackoff(peer.NetAddr)
	}
}

// sendAllowed reports whether the peer is outside its backoff window.
func (n *Node) sendAllowed(netAddr string) bool {
	n.backoffLock.Lock()
	defer n.backoffLock.Unlock()

	b, ok := n.backoffs[netAddr]
	if !ok {
		return true
	}

	return time.Now().After(b.until)
}

// recordFailure doubles the peer's backoff delay, and drops the peer from
// the active set once the failure count exceeds MaxRetries.
func (n *Node) recordFailure(peer *peers.Peer) {
	n.backoffLock.Lock()

	b, ok := n.backoffs[peer.NetAddr]
	if !ok {
		b = &peerBackoff{}
		n.backoffs[peer.NetAddr] = b
	}

	b.failures++
	b.until = time.Now().Add(backoffDelay(b.failures, n.conf.RetryBackoffBase, n.conf.RetryBackoffMax))

	failures := b.failures

	if failures > n.conf.MaxRetries {
		delete(n.backoffs, peer.NetAddr)
	}

	n.backoffLock.Unlock()

	if failures > n.conf.MaxRetries {
		n.logger.WithFields(logrus.Fields{
			"peer":     peer.NetAddr,
			"moniker":  peer.Moniker,
			"failures": failures,
		}).Warn("Removing unreachable peer")

		n.peerSet.RemovePeer(peer.NetAddr)
	}
}

func (n *Node) clearBackoff(netAddr string) {
	n.backoffLock.Lock()
	delete(n.backoffs, netAddr)
	n.backoffLock.Unlock()
}

// backoffDelay returns base doubled failures-1 times, capped at max.
func backoffDelay(failures int, base, max time.Duration) time.Duration {
	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// writeSnapshot persists the store's contents to the snapshot file. The
// snapshot is captured under the core lock but written outside it.
func (n *Node) writeSnapshot() {
	if n.snapshotFile == nil {
		return
	}

	n.coreLock.Lock()
	snap := n.core.Snapshot()
	n.coreLock.Unlock()

	if err := n.snapshotFile.Write(snap); err != nil {
		n.logger.WithFields(logrus.Fields{
			"file":  n.snapshotFile.Path(),
			"error": err,
		}).Error("Writing snapshot")
	}
}

// AddPeer adds a discovered peer to the active set. Announcements for this
// node itself are ignored.
func (n *Node) AddPeer(peer *peers.Peer) {
	if peer.NetAddr == n.trans.AdvertiseAddr() {
		return
	}

	if _, ok := n.peerSet.ByAddr(peer.NetAddr); ok {
		return
	}

	n.logger.WithFields(logrus.Fields{
		"peer":    peer.NetAddr,
		"moniker": peer.Moniker,
	}).Debug("Discovered peer")

	n.peerSet.AddPeer(peer)
}

// Shutdown shuts down the node
func (n *Node) Shutdown() {
	if n.getState() != Shutdown {
		n.logger.Debug("Shutdown")

		//Exit any non-shutdown state immediately
		n.setState(Shutdown)

		//Stop and wait for concurrent operations
		close(n.shutdownCh)

		n.waitRoutines()

		n.controlTimer.Shutdown()

		//Capture the final state before the store goes away
		n.writeSnapshot()

		//transport and store should only be closed once all concurrent
		//operations are finished otherwise they will panic trying to use
		//closed objects
		n.trans.Close()

		n.core.store.Close()
	}
}

// Moniker ...
func (n *Node) Moniker() string {
	return n.core.Moniker()
}

// GetPeers returns the current active peer set.
func (n *Node) GetPeers() []*peers.Peer {
	return n.peerSet.Peers()
}

// GetArtifacts returns every stored artifact of every kind.
func (n *Node) GetArtifacts() []*artifact.Artifact {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.core.store.AllArtifacts()
}

// GetArtifact looks up an artifact by hash across all kinds.
func (n *Node) GetArtifact(hash string) (*artifact.Artifact, bool) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	for _, kind := range []string{artifact.Knowledge, artifact.Media, artifact.Meta} {
		if a, err := n.core.store.GetArtifact(kind, hash); err == nil {
			return a, true
		}
	}

	return nil, false
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	n.coreLock.Lock()

	knowledge := n.core.store.Count(artifact.Knowledge)
	media := n.core.store.Count(artifact.Media)
	meta := n.core.store.Count(artifact.Meta)
	seen := n.core.store.SeenCount()
	counter := n.core.Counter()

	n.coreLock.Unlock()

	timeElapsed := time.Since(n.start)

	artifactsPerSecond := float64(seen) / timeElapsed.Seconds()

	s := map[string]string{
		"knowledge_artifacts":  strconv.Itoa(knowledge),
		"media_artifacts":      strconv.Itoa(media),
		"meta_artifacts":       strconv.Itoa(meta),
		"seen_hashes":          strconv.Itoa(seen),
		"generation_counter":   strconv.Itoa(counter),
		"artifacts_per_second": strconv.FormatFloat(artifactsPerSecond, 'f', 2, 64),
		"num_peers":            strconv.Itoa(n.peerSet.Len()),
		"state":                n.getState().String(),
		"moniker":              n.core.Moniker(),
		"addr":                 n.trans.AdvertiseAddr(),
	}
	return s
}

func (n *Node) logStats() {
	stats := n.GetStats()

	n.logger.WithFields(logrus.Fields{
		"knowledge_artifacts": stats["knowledge_artifacts"],
		"media_artifacts":     stats["media_artifacts"],
		"meta_artifacts":      stats["meta_artifacts"],
		"seen_hashes":         stats["seen_hashes"],
		"generation_counter":  stats["generation_counter"],
		"artifacts/s":         stats["artifacts_per_second"],
		"num_peers":           stats["num_peers"],
		"state":               stats["state"],
	}).Debug("Stats")
}
