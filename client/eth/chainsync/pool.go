// Copyright 2025 R5 Labs
// This file is part of the R5 Core library.
//
// This software is provided "as is", without warranty of any kind,
// express or implied, including but not limited to the warranties
// of merchantability, fitness for a particular purpose and
// noninfringement. In no event shall the authors or copyright
// holders be liable for any claim, damages, or other liability,
// whether in an action of contract, tort or otherwise, arising
// from, out of or in connection with the software or the use or
// other dealings in the software.

package chainsync

import (
	"sync"

	"github.com/r5-labs/r5-core/client/log"
)

// Pool is the set of admitted peers. Reads take a snapshot copy so that
// iteration never races a concurrent Add/Remove; this mirrors the teacher's
// peerSet, a map keyed by peer id. Snapshots come back in no particular
// order; difficulty-aware selection is left to the caller.
type Pool struct {
	mu    sync.RWMutex
	peers map[string]Peer
	log   log.Logger
}

// NewPool constructs an empty Pool.
func NewPool(logger log.Logger) *Pool {
	if logger == nil {
		logger = log.Root()
	}
	return &Pool{peers: make(map[string]Peer), log: logger}
}

// Add admits a peer, replacing any previous entry under the same id.
func (p *Pool) Add(peer Peer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peers[peer.ID()] = peer
}

// Remove evicts a peer by id, returning it if present.
func (p *Pool) Remove(id string) (Peer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	peer, ok := p.peers[id]
	if ok {
		delete(p.peers, id)
	}
	return peer, ok
}

// Get looks up a peer by id.
func (p *Pool) Get(id string) (Peer, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	peer, ok := p.peers[id]
	return peer, ok
}

// Contains reports whether id is currently admitted.
func (p *Pool) Contains(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.peers[id]
	return ok
}

// Len returns the number of admitted peers.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.peers)
}

// Snapshot returns a copy of the currently admitted peers, safe to range
// over without holding the pool's lock.
func (p *Pool) Snapshot() []Peer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Peer, 0, len(p.peers))
	for _, peer := range p.peers {
		out = append(out, peer)
	}
	return out
}

// IDs returns the ids of every admitted peer.
func (p *Pool) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.peers))
	for id := range p.peers {
		out = append(out, id)
	}
	return out
}

// TransitionAll drives every admitted peer into state.
func (p *Pool) TransitionAll(state PeerState) {
	for _, peer := range p.Snapshot() {
		peer.ChangeState(state)
	}
}

// TransitionWhere drives every admitted peer matching pred into state.
func (p *Pool) TransitionWhere(pred func(Peer) bool, state PeerState) {
	for _, peer := range p.Snapshot() {
		if pred(peer) {
			peer.ChangeState(state)
		}
	}
}
