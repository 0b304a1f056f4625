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
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/r5-labs/r5-core/client/common"
	"github.com/r5-labs/r5-core/client/event"
	"github.com/r5-labs/r5-core/client/p2p"
)

type fakePeer struct {
	mu sync.Mutex

	id           string
	td           *big.Int
	bestHash     common.Hash
	handshakeTD  *big.Int
	hashesLoaded uint64
	state        PeerState
	noMoreBlocks bool
	maxHashesAsk int

	disconnectCalled bool
	disconnectReason p2p.DiscReason

	prohibited bool
	statsLogs  int
}

func newFakePeer(id string, td int64) *fakePeer {
	return &fakePeer{
		id:          id,
		td:          big.NewInt(td),
		handshakeTD: big.NewInt(td),
		state:       PeerIdle,
	}
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) TotalDifficulty() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.td
}

func (p *fakePeer) setTotalDifficulty(td int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.td = big.NewInt(td)
}

func (p *fakePeer) BestHash() common.Hash { return p.bestHash }

func (p *fakePeer) HandshakeTotalDifficulty() *big.Int { return p.handshakeTD }

func (p *fakePeer) HashesLoadedCnt() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hashesLoaded
}

func (p *fakePeer) setHashesLoadedCnt(n uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hashesLoaded = n
}

func (p *fakePeer) IsIdle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == PeerIdle
}

func (p *fakePeer) IsHashRetrieving() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == PeerHashRetrieving
}

func (p *fakePeer) IsHashRetrievingDone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == PeerDoneHashes
}

func (p *fakePeer) HasNoMoreBlocks() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.noMoreBlocks
}

func (p *fakePeer) setNoMoreBlocks(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.noMoreBlocks = v
}

func (p *fakePeer) ChangeState(s PeerState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

func (p *fakePeer) State() PeerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePeer) SetMaxHashesAsk(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxHashesAsk = n
}

func (p *fakePeer) Disconnect(r p2p.DiscReason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnectCalled = true
	p.disconnectReason = r
}

func (p *fakePeer) ProhibitTransactions() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prohibited = true
}

func (p *fakePeer) LogSyncStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statsLogs++
}

type fakeBlockQueue struct {
	mu sync.Mutex

	hashesEmpty bool
	solidBlocks bool
	bestHash    common.Hash
	clears      int
	firstHashes []common.Hash
}

func (q *fakeBlockQueue) IsHashesEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hashesEmpty
}

func (q *fakeBlockQueue) HasSolidBlocks() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.solidBlocks
}

func (q *fakeBlockQueue) ClearHashStore() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clears++
}

func (q *fakeBlockQueue) AddFirstHash(h common.Hash) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.firstHashes = append(q.firstHashes, h)
}

func (q *fakeBlockQueue) SetBestHash(h common.Hash) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bestHash = h
}

type fakeBlockchain struct {
	number uint64
	td     *big.Int
	hash   common.Hash
}

func (c *fakeBlockchain) BestBlockNumber() uint64    { return c.number }
func (c *fakeBlockchain) TotalDifficulty() *big.Int  { return c.td }
func (c *fakeBlockchain) BestBlockHash() common.Hash { return c.hash }

type fakeDiscovery struct {
	mu    sync.Mutex
	nodes []Node
}

func (d *fakeDiscovery) Subscribe(predicate func(Node) bool) (<-chan Node, event.Subscription) {
	ch := make(chan Node)
	sub := event.NewSubscription(func(unsub <-chan struct{}) error {
		<-unsub
		return nil
	})
	return ch, sub
}

func (d *fakeDiscovery) Nodes(predicate func(Node) bool, less func(a, b Node) bool, limit int) []Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Node
	for _, n := range d.nodes {
		if predicate(n) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type fakeTransport struct {
	mu        sync.Mutex
	connected []string
	fail      map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{fail: make(map[string]bool)}
}

func (t *fakeTransport) Connect(n Node) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail[n.PeerID] {
		return errors.New("dial refused")
	}
	t.connected = append(t.connected, n.PeerID)
	return nil
}

func (t *fakeTransport) connectedIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.connected))
	copy(out, t.connected)
	return out
}
