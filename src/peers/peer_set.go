package peers

import (
	"sort"
	"sync"
)

// PeerSet is the set of peers a node propagates artifacts to. It grows
// through static configuration or discovery, and shrinks only when a peer is
// dropped for being repeatedly unreachable.
type PeerSet struct {
	sync.RWMutex
	peers  []*Peer
	byAddr map[string]*Peer
}

/* Constructors */

// NewPeerSet ...
func NewPeerSet() *PeerSet {
	return &PeerSet{
		byAddr: make(map[string]*Peer),
	}
}

// NewPeerSetFromSlice creates a PeerSet from a list of Peers.
func NewPeerSetFromSlice(source []*Peer) *PeerSet {
	peerSet := NewPeerSet()

	for _, peer := range source {
		peerSet.addPeerRaw(peer)
	}

	peerSet.internalSort()

	return peerSet
}

// addPeerRaw adds a peer without sorting. Not protected by the mutex; handle
// with care.
func (p *PeerSet) addPeerRaw(peer *Peer) {
	if peer.ID == 0 {
		peer.computeID()
	}

	if _, ok := p.byAddr[peer.NetAddr]; ok {
		return
	}

	p.byAddr[peer.NetAddr] = peer
	p.peers = append(p.peers, peer)
}

// AddPeer adds a peer if its address is not already known.
func (p *PeerSet) AddPeer(peer *Peer) {
	p.Lock()
	defer p.Unlock()

	p.addPeerRaw(peer)

	p.internalSort()
}

// RemovePeer removes the peer with the given address.
func (p *PeerSet) RemovePeer(netAddr string) {
	p.Lock()
	defer p.Unlock()

	if _, ok := p.byAddr[netAddr]; !ok {
		return
	}

	delete(p.byAddr, netAddr)
	_, p.peers = ExcludePeer(p.peers, netAddr)
}

func (p *PeerSet) internalSort() {
	sort.Slice(p.peers, func(i, j int) bool {
		return p.peers[i].NetAddr < p.peers[j].NetAddr
	})
}

/* Read methods */

// ByAddr returns the peer with the given address.
func (p *PeerSet) ByAddr(netAddr string) (*Peer, bool) {
	p.RLock()
	defer p.RUnlock()

	peer, ok := p.byAddr[netAddr]
	return peer, ok
}

// Peers returns a snapshot of the peer list, sorted by address.
func (p *PeerSet) Peers() []*Peer {
	p.RLock()
	defer p.RUnlock()

	res := make([]*Peer, len(p.peers))
	copy(res, p.peers)
	return res
}

// Len ...
func (p *PeerSet) Len() int {
	p.RLock()
	defer p.RUnlock()

	return len(p.peers)
}
