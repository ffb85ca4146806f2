package peers

import (
	"github.com/meshworks/manifold/src/common"
)

// Peer is a mesh participant reachable at NetAddr. The numeric ID is derived
// from the network address and is only used as a compact identifier; it is
// not an authenticated identity.
type Peer struct {
	ID      uint32 `json:"-"`
	Moniker string `json:"moniker"`
	NetAddr string `json:"net_addr"`
}

// NewPeer ...
func NewPeer(moniker, netAddr string) *Peer {
	peer := &Peer{
		Moniker: moniker,
		NetAddr: netAddr,
	}

	peer.computeID()

	return peer
}

func (p *Peer) computeID() {
	p.ID = common.Hash32([]byte(p.NetAddr))
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []*Peer, netAddr string) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.NetAddr != netAddr {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
