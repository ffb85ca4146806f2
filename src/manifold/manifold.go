package manifold

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/meshworks/manifold/src/config"
	"github.com/meshworks/manifold/src/discovery"
	"github.com/meshworks/manifold/src/gate"
	"github.com/meshworks/manifold/src/net"
	"github.com/meshworks/manifold/src/node"
	"github.com/meshworks/manifold/src/peers"
	"github.com/meshworks/manifold/src/service"
	"github.com/meshworks/manifold/src/store"
)

// Manifold is a mesh node engine. It wires together the peer set, the
// store, the transport, the node, and the optional HTTP service and UDP
// discovery, from a single Config object.
type Manifold struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Store     store.Store
	Peers     *peers.PeerSet
	Service   *service.Service
	Discovery *discovery.Discovery
}

// NewManifold ...
func NewManifold(config *config.Config) *Manifold {
	engine := &Manifold{
		Config: config,
	}

	return engine
}

func (m *Manifold) initPeers() error {
	peerStore := peers.NewJSONPeerSet(m.Config.DataDir)

	peerSet, err := peerStore.PeerSet()
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}

		//without a peers file, the node can only find peers over discovery
		if m.Config.DiscoveryPort == 0 {
			return fmt.Errorf("no peers.json in %s and discovery is disabled", m.Config.DataDir)
		}

		peerSet = peers.NewPeerSet()
	}

	//an empty peers file parses to a nil set
	if peerSet == nil {
		peerSet = peers.NewPeerSet()
	}

	m.Peers = peerSet

	return nil
}

func (m *Manifold) initStore() error {
	if !m.Config.Store {
		m.Store = store.NewInmemStore()

		m.Config.Logger().Debug("created new in-mem store")
	} else {
		var err error

		m.Config.Logger().WithField("path", m.Config.DatabaseDir).Debug("Attempting to load or create database")

		m.Store, err = store.LoadOrCreateBadgerStore(m.Config.DatabaseDir)

		if err != nil {
			return err
		}

		if m.Store.NeedBootstrap() {
			m.Config.Logger().Debug("loaded badger store from existing database")
		} else {
			m.Config.Logger().Debug("created new badger store from fresh database")
		}
	}

	return nil
}

func (m *Manifold) initTransport() error {
	transport, err := net.NewTCPTransport(
		m.Config.BindAddr,
		m.Config.AdvertiseAddr,
		m.Config.MaxPool,
		m.Config.TCPTimeout,
		m.Config.Logger(),
	)

	if err != nil {
		return err
	}

	m.Transport = transport

	return nil
}

func (m *Manifold) initNode() error {
	moniker := m.Config.Moniker
	if moniker == "" {
		moniker = fmt.Sprintf("node-%s", uuid.New().String()[:8])
	}

	acceptance, err := gate.NewGate(
		moniker,
		m.Config.Threshold,
		[]gate.Advisor{gate.RandomAdvisor("fidelity")},
	)
	if err != nil {
		return err
	}

	var snapshotFile *store.SnapshotFile
	if !m.Config.NoSnapshot {
		snapshotFile = store.NewSnapshotFile(m.Config.SnapshotFile())
	}

	nodeConfig := node.NewConfig(
		m.Config.HeartbeatTimeout,
		m.Config.HealInterval,
		m.Config.SynthesisInterval,
		m.Config.MaxRetries,
		m.Config.BackoffBase,
		m.Config.BackoffMax,
		m.Config.Logger().Logger,
	)

	m.Node = node.NewNode(
		nodeConfig,
		moniker,
		m.Peers,
		m.Store,
		acceptance,
		m.Transport,
		snapshotFile,
	)

	if err := m.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

func (m *Manifold) initService() error {
	if !m.Config.NoService {
		m.Service = service.NewService(m.Config.ServiceAddr, m.Node, m.Config.Logger())
	}
	return nil
}

func (m *Manifold) initDiscovery() error {
	m.Discovery = discovery.NewDiscovery(
		m.Node.Moniker(),
		m.Transport.AdvertiseAddr(),
		m.Config.DiscoveryPort,
		m.Config.DiscoveryInterval,
		m.Node.AddPeer,
		m.Config.Logger(),
	)
	return nil
}

// Init initialises all the engine's components in dependency order.
func (m *Manifold) Init() error {
	if err := m.initPeers(); err != nil {
		return err
	}

	if err := m.initStore(); err != nil {
		return err
	}

	if err := m.initTransport(); err != nil {
		return err
	}

	if err := m.initNode(); err != nil {
		return err
	}

	if err := m.initService(); err != nil {
		return err
	}

	if err := m.initDiscovery(); err != nil {
		return err
	}

	return nil
}

// Run starts the auxiliary components and blocks in the node's main loop.
func (m *Manifold) Run() {
	if m.Service != nil {
		go m.Service.Serve()
	}

	if err := m.Discovery.Start(); err != nil {
		m.Config.Logger().WithField("error", err).Error("Starting discovery")
	}

	m.Node.Run(!m.Config.NoGenerate)

	m.Discovery.Shutdown()
}
