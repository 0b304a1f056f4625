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
	"math/big"

	"github.com/r5-labs/r5-core/client/common"
	"github.com/r5-labs/r5-core/client/event"
	"github.com/r5-labs/r5-core/client/p2p"
)

// PeerState is the per-peer substate a pool member moves through while the
// manager drives it.
type PeerState int

const (
	PeerIdle PeerState = iota
	PeerHashRetrieving
	PeerBlockRetrieving
	PeerDoneHashes
	PeerDoneSync
)

func (s PeerState) String() string {
	switch s {
	case PeerIdle:
		return "idle"
	case PeerHashRetrieving:
		return "hash-retrieving"
	case PeerBlockRetrieving:
		return "block-retrieving"
	case PeerDoneHashes:
		return "done-hashes"
	case PeerDoneSync:
		return "done-sync"
	default:
		return "unknown"
	}
}

// Peer is the manager's view of a connected remote node. Implementations
// live outside this package, alongside the wire protocol and handshake they
// are backed by.
type Peer interface {
	ID() string

	// TotalDifficulty is the peer's most recently reported total difficulty.
	TotalDifficulty() *big.Int
	// BestHash is the peer's most recently reported chain head hash.
	BestHash() common.Hash
	// HandshakeTotalDifficulty is the total difficulty the peer announced at
	// handshake time, used as the floor raised into lowerUsefulDifficulty
	// once a peer has given everything it has.
	HandshakeTotalDifficulty() *big.Int

	HashesLoadedCnt() uint64

	IsIdle() bool
	IsHashRetrieving() bool
	IsHashRetrievingDone() bool
	HasNoMoreBlocks() bool

	ChangeState(PeerState)
	SetMaxHashesAsk(int)
	Disconnect(p2p.DiscReason)
	ProhibitTransactions()
	LogSyncStats()
}

// Node is the minimal discovery-candidate shape the manager needs to decide
// whether a node is worth dialing. It is not a full identity record — the
// discovery protocol that produces these is out of scope.
type Node struct {
	PeerID          string
	TotalDifficulty *big.Int
	HasStatus       bool
	Reputation      int
}

// BlockQueue is the staging area for hashes and blocks awaiting import.
type BlockQueue interface {
	IsHashesEmpty() bool
	HasSolidBlocks() bool
	ClearHashStore()
	AddFirstHash(common.Hash)
	SetBestHash(common.Hash)
}

// Blockchain exposes the local chain's head state.
type Blockchain interface {
	BestBlockNumber() uint64
	TotalDifficulty() *big.Int
	BestBlockHash() common.Hash
}

// Discovery surfaces candidate nodes, both as an ongoing subscription and
// on demand.
type Discovery interface {
	Subscribe(predicate func(Node) bool) (<-chan Node, event.Subscription)
	Nodes(predicate func(Node) bool, less func(a, b Node) bool, limit int) []Node
}

// Transport dials a candidate node. Connect is expected to be non-blocking
// with respect to the handshake; it reports only dial-time failures.
type Transport interface {
	Connect(Node) error
}

// BlockWrapper describes a block observed by the node, either freshly
// gossiped or pulled from a solid backlog, as passed to RecoverGap and
// NotifyNewBlockImported.
type BlockWrapper struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	// Fresh is true for a block that just arrived over the wire, false for
	// one already sitting in the node's solid backlog.
	Fresh bool
}

// byTotalDifficultyDesc orders Nodes by descending total difficulty, the
// comparator askNewPeers uses when the pool still has room and a clear
// difficulty preference.
func byTotalDifficultyDesc(a, b Node) bool {
	return a.TotalDifficulty.Cmp(b.TotalDifficulty) > 0
}

// byReputationDesc orders Nodes by descending reputation, the fallback
// comparator used when no node clears the difficulty bar and the pool is
// otherwise empty.
func byReputationDesc(a, b Node) bool {
	return a.Reputation > b.Reputation
}

// withinBand reports whether value deviates from reference by no more than
// band, expressed as a fraction of reference itself (not of max(value,
// reference)). A zero reference is only "within band" of a zero value.
func withinBand(value, reference *big.Int, band float64) bool {
	if reference.Sign() == 0 {
		return value.Sign() == 0
	}
	diff := new(big.Int).Sub(value, reference)
	diff.Abs(diff)
	df := new(big.Float).SetInt(diff)
	rf := new(big.Float).SetInt(reference)
	ratio := new(big.Float).Quo(df, rf)
	return ratio.Cmp(big.NewFloat(band)) <= 0
}
