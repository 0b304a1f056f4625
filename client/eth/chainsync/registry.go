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
	"time"

	"github.com/r5-labs/r5-core/client/log"
)

// ConnectionRegistry tracks the lifecycle of peer ids that are not (or no
// longer) pool members: in-flight dial attempts, accrued disconnect hits and
// active bans. It is guarded by its own mutex, distinct from the manager's
// state-transition lock, the same split the teacher draws between a
// peerSet's lock and a dialer's own bookkeeping.
type ConnectionRegistry struct {
	mu              sync.Mutex
	connectAttempts map[string]time.Time
	bans            map[string]time.Time
	disconnectHits  map[string]int
	log             log.Logger

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

// NewConnectionRegistry constructs an empty ConnectionRegistry.
func NewConnectionRegistry(logger log.Logger) *ConnectionRegistry {
	if logger == nil {
		logger = log.Root()
	}
	return &ConnectionRegistry{
		connectAttempts: make(map[string]time.Time),
		bans:            make(map[string]time.Time),
		disconnectHits:  make(map[string]int),
		log:             logger,
		now:             time.Now,
	}
}

// IsConnecting reports whether id currently has an outstanding dial attempt.
func (r *ConnectionRegistry) IsConnecting(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.connectAttempts[id]
	return ok
}

// IsBanned reports whether id is currently banned.
func (r *ConnectionRegistry) IsBanned(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.bans[id]
	return ok
}

// ClearAttempt removes any outstanding dial-attempt record for id, called
// once a peer completes its handshake and is handed to AddPeer.
func (r *ConnectionRegistry) ClearAttempt(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connectAttempts, id)
}

// Ban places id under ban for banTimeout and resets its disconnect hit
// count, as happens when a stuck master is disconnected or a peer id
// accrues too many disconnects.
func (r *ConnectionRegistry) Ban(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bans[id] = r.now()
	delete(r.disconnectHits, id)
}

// RecordDisconnectHit increments id's disconnect hit count and bans it, the
// count resetting to zero, once the count exceeds disconnectHitsThreshold.
// It reports whether this call caused a ban.
func (r *ConnectionRegistry) RecordDisconnectHit(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnectHits[id]++
	if r.disconnectHits[id] > disconnectHitsThreshold {
		r.bans[id] = r.now()
		delete(r.disconnectHits, id)
		return true
	}
	return false
}

// ConnectAttemptIDs returns the ids currently mid-dial.
func (r *ConnectionRegistry) ConnectAttemptIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.connectAttempts))
	for id := range r.connectAttempts {
		out = append(out, id)
	}
	return out
}

// BannedIDs returns the ids currently banned.
func (r *ConnectionRegistry) BannedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.bans))
	for id := range r.bans {
		out = append(out, id)
	}
	return out
}

// RemoveOutdatedConnections clears any dial attempt older than
// connectionTimeout, freeing the id up for a fresh attempt.
func (r *ConnectionRegistry) RemoveOutdatedConnections() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for id, started := range r.connectAttempts {
		if now.Sub(started) > connectionTimeout {
			delete(r.connectAttempts, id)
		}
	}
}

// ReleaseBans clears any ban older than banTimeout.
func (r *ConnectionRegistry) ReleaseBans() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for id, banned := range r.bans {
		if now.Sub(banned) > banTimeout {
			delete(r.bans, id)
		}
	}
}

// InitiateConnection dials a candidate node under the registry mutex,
// checking pool membership and any outstanding attempt atomically with
// recording the new attempt. It is a no-op if the node is already a pool
// member or already being dialed.
func (r *ConnectionRegistry) InitiateConnection(pool *Pool, transport Transport, n Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pool.Contains(n.PeerID) {
		return nil
	}
	if _, ok := r.connectAttempts[n.PeerID]; ok {
		return nil
	}
	if err := transport.Connect(n); err != nil {
		r.log.Debug("dial attempt failed", "peer", n.PeerID, "err", err)
		return err
	}
	r.connectAttempts[n.PeerID] = r.now()
	return nil
}
