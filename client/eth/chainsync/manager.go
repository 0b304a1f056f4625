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
	"context"
	"math/big"
	"time"

	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/r5-labs/r5-core/client/common"
	"github.com/r5-labs/r5-core/client/event"
	"github.com/r5-labs/r5-core/client/log"
	"github.com/r5-labs/r5-core/client/metrics"
	"github.com/r5-labs/r5-core/client/p2p"
)

// SyncState is the orchestrator's global state machine.
type SyncState int

const (
	SyncInit SyncState = iota
	SyncHashRetrieving
	SyncGapRecovery
	SyncBlockRetrieving
	SyncDoneGapRecovery
	SyncDoneSync
)

func (s SyncState) String() string {
	switch s {
	case SyncInit:
		return "init"
	case SyncHashRetrieving:
		return "hash-retrieving"
	case SyncGapRecovery:
		return "gap-recovery"
	case SyncBlockRetrieving:
		return "block-retrieving"
	case SyncDoneGapRecovery:
		return "done-gap-recovery"
	case SyncDoneSync:
		return "done-sync"
	default:
		return "unknown"
	}
}

// SyncDoneEvent is sent on the Manager's done feed exactly once, the first
// time the global state transitions into SyncDoneSync.
type SyncDoneEvent struct{}

// masterInfo tracks the currently elected master peer and its hash-chain
// progress. A nil peer means no master is currently elected.
type masterInfo struct {
	peer                Peer
	lastHashesLoadedCnt uint64
	stuckAt             time.Time
	maxHashesAsk        int
	bestHash            common.Hash
}

// Manager drives chain synchronization: peer admission and eviction, master
// election, hash and block retrieval, and gap recovery.
type Manager struct {
	cfg       Config
	pool      *Pool
	registry  *ConnectionRegistry
	discovery Discovery
	transport Transport
	queue     BlockQueue
	chain     Blockchain
	log       log.Logger

	discoverySub *DiscoverySubscriber

	mu                     sync.Mutex
	state                  SyncState
	prevState              SyncState
	lowerUsefulDifficulty  *big.Int
	highestKnownDifficulty *big.Int
	master                 *masterInfo
	onSyncDoneTriggered    bool

	syncDoneFeed event.Feed

	metricPoolSize        metrics.Gauge
	metricBansIssued      metrics.Counter
	metricMasterRotations metrics.Counter

	now func() time.Time

	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool
}

// NewManager constructs a Manager in SyncInit, with an empty pool and
// registry. reg may be nil, in which case metrics.DefaultRegistry is used.
func NewManager(cfg Config, chain Blockchain, queue BlockQueue, discovery Discovery, transport Transport, logger log.Logger, reg *metrics.Registry) *Manager {
	if logger == nil {
		logger = log.Root()
	}
	if reg == nil {
		reg = metrics.DefaultRegistry
	}
	m := &Manager{
		cfg:                    cfg,
		pool:                   NewPool(logger.New("component", "pool")),
		registry:               NewConnectionRegistry(logger.New("component", "registry")),
		discovery:              discovery,
		transport:              transport,
		queue:                  queue,
		chain:                  chain,
		log:                    logger.New("component", "chainsync"),
		state:                  SyncInit,
		prevState:              SyncInit,
		lowerUsefulDifficulty:  new(big.Int),
		highestKnownDifficulty: new(big.Int),
		master:                 &masterInfo{},
		now:                    time.Now,
		metricPoolSize:         reg.GetOrRegisterGauge("chainsync/peers"),
		metricBansIssued:       reg.GetOrRegisterCounter("chainsync/bans"),
		metricMasterRotations:  reg.GetOrRegisterCounter("chainsync/master_rotations"),
	}
	m.discoverySub = NewDiscoverySubscriber(discovery, m.registry, m.InitiateConnection, m.HighestKnownDifficulty, logger.New("component", "discovery"))
	return m
}

// State returns the current global sync state.
func (m *Manager) State() SyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// HighestKnownDifficulty returns the current watermark, safe to call
// concurrently with everything else.
func (m *Manager) HighestKnownDifficulty() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.highestKnownDifficulty)
}

// LowerUsefulDifficulty returns the current watermark.
func (m *Manager) LowerUsefulDifficulty() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.lowerUsefulDifficulty)
}

// SubscribeSyncDone subscribes to the one-shot done-sync notification.
func (m *Manager) SubscribeSyncDone(ch chan<- SyncDoneEvent) event.Subscription {
	return m.syncDoneFeed.Subscribe(ch)
}

// Start launches the maintenance and stats workers. It returns
// errAlreadyStarted without launching anything if the manager is already
// started, and is a permanent no-op (returning nil without launching
// anything) if Config.SyncEnabled is false.
func (m *Manager) Start() error {
	if !m.cfg.SyncEnabled {
		m.log.Info("chain sync disabled by configuration")
		return nil
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errAlreadyStarted
	}
	m.started = true
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	group, gctx := errgroup.WithContext(ctx)
	m.group = group
	group.Go(func() error { m.maintenanceLoop(gctx); return nil })
	group.Go(func() error { m.statsLoop(gctx); return nil })

	if m.discovery != nil {
		m.discoverySub.Start()
	}
	return nil
}

// Stop cancels both workers and waits for them to return.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return errNotStarted
	}
	m.started = false
	cancel := m.cancel
	group := m.group
	m.mu.Unlock()

	cancel()
	if group != nil {
		group.Wait()
	}
	if m.discovery != nil {
		m.discoverySub.Stop()
	}
	return nil
}

func (m *Manager) maintenanceLoop(ctx context.Context) {
	for {
		m.tick()
		select {
		case <-ctx.Done():
			return
		case <-time.After(syncTick):
		}
	}
}

func (m *Manager) statsLoop(ctx context.Context) {
	for {
		m.statsTick()
		select {
		case <-ctx.Done():
			return
		case <-time.After(statsTick):
		}
	}
}

// tick runs the seven maintenance steps, in order, under the manager lock.
func (m *Manager) tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateDifficultyWatermarksLocked()
	m.checkGapRecoveryLocked()
	m.checkMasterLocked()
	m.checkPeersLocked()
	m.registry.RemoveOutdatedConnections()
	m.askNewPeersLocked()
	m.registry.ReleaseBans()
}

func (m *Manager) statsTick() {
	peers := m.pool.Snapshot()
	m.metricPoolSize.Update(int64(len(peers)))
	for _, p := range peers {
		p.LogSyncStats()
	}
}

func (m *Manager) updateDifficultyWatermarksLocked() {
	local := m.chain.TotalDifficulty()
	m.raiseLowerUsefulDifficultyLocked(local)
	m.raiseHighestKnownDifficultyLocked(local)
}

func (m *Manager) raiseLowerUsefulDifficultyLocked(td *big.Int) {
	if td.Cmp(m.lowerUsefulDifficulty) > 0 {
		m.lowerUsefulDifficulty = new(big.Int).Set(td)
	}
}

func (m *Manager) raiseHighestKnownDifficultyLocked(td *big.Int) {
	if td.Cmp(m.highestKnownDifficulty) > 0 {
		m.highestKnownDifficulty = new(big.Int).Set(td)
	}
}

func (m *Manager) masterPeer() (Peer, bool) {
	if m.master == nil || m.master.peer == nil {
		return nil, false
	}
	return m.master.peer, true
}

func (m *Manager) clearMasterLocked() {
	if m.master == nil {
		m.master = &masterInfo{}
		return
	}
	m.master.peer = nil
}

func (m *Manager) setMasterLocked(p Peer) {
	if m.master == nil {
		m.master = &masterInfo{}
	}
	m.master.peer = p
	m.metricMasterRotations.Inc(1)
}

// selectMaster returns the pool member with the greatest total difficulty,
// or nil if the pool is empty.
func (m *Manager) selectMaster() Peer {
	var best Peer
	for _, p := range m.pool.Snapshot() {
		if best == nil || p.TotalDifficulty().Cmp(best.TotalDifficulty()) > 0 {
			best = p
		}
	}
	return best
}

// runHashRetrievingOnMaster resets the master's stall tracking and pushes
// it into hash retrieval. Callers must have already set m.master.maxHashesAsk
// and m.master.bestHash, and must hold the manager lock.
func (m *Manager) runHashRetrievingOnMaster() {
	m.master.lastHashesLoadedCnt = 0
	m.master.stuckAt = time.Time{}
	m.queue.SetBestHash(m.master.bestHash)
	m.master.peer.SetMaxHashesAsk(m.master.maxHashesAsk)
	m.master.peer.ChangeState(PeerHashRetrieving)
}

// changeStateLocked is the single chokepoint for every global state
// transition. Callers must hold the manager lock.
func (m *Manager) changeStateLocked(newState SyncState) {
	switch newState {
	case SyncHashRetrieving:
		master := m.selectMaster()
		if master == nil {
			// Pool was emptied by a concurrent OnDisconnect between the
			// caller's check and here; treat as the invariant-6 no-op.
			m.clearMasterLocked()
			return
		}
		m.setMasterLocked(master)
		m.raiseHighestKnownDifficultyLocked(master.TotalDifficulty())
		m.master.bestHash = master.BestHash()
		m.queue.ClearHashStore()
		m.pool.TransitionAll(PeerIdle)
		m.master.maxHashesAsk = m.cfg.MaxHashesAsk
		m.runHashRetrievingOnMaster()

	case SyncGapRecovery:
		master := m.selectMaster()
		if master == nil {
			m.clearMasterLocked()
			return
		}
		m.setMasterLocked(master)
		m.runHashRetrievingOnMaster()

	case SyncBlockRetrieving:
		m.pool.TransitionAll(PeerBlockRetrieving)

	case SyncDoneGapRecovery:
		m.pool.TransitionAll(PeerBlockRetrieving)

	case SyncDoneSync:
		if m.onSyncDoneTriggered {
			return
		}
		m.onSyncDoneTriggered = true
		m.pool.TransitionAll(PeerDoneSync)
		m.syncDoneFeed.Send(SyncDoneEvent{})
	}

	if newState != m.state {
		m.prevState = m.state
		m.state = newState
	}
}

func (m *Manager) checkGapRecoveryLocked() {
	if m.state != SyncGapRecovery {
		return
	}
	master, ok := m.masterPeer()
	if !ok {
		return
	}
	if !master.IsHashRetrieving() && m.queue.IsHashesEmpty() {
		if m.prevState == SyncBlockRetrieving {
			m.changeStateLocked(SyncBlockRetrieving)
		} else {
			m.changeStateLocked(SyncDoneGapRecovery)
		}
	}
}

func (m *Manager) checkMasterLocked() {
	master, ok := m.masterPeer()
	if !ok {
		return
	}

	if master.IsHashRetrievingDone() {
		switch m.state {
		case SyncHashRetrieving:
			m.changeStateLocked(SyncBlockRetrieving)
		case SyncGapRecovery:
			master.ChangeState(PeerBlockRetrieving)
		}
		return
	}

	if !master.IsHashRetrieving() {
		return
	}

	loaded := master.HashesLoadedCnt()
	if loaded > m.master.lastHashesLoadedCnt {
		m.master.lastHashesLoadedCnt = loaded
		m.master.stuckAt = time.Time{}
		return
	}

	if m.master.stuckAt.IsZero() {
		m.master.stuckAt = m.now()
		return
	}
	if m.now().Sub(m.master.stuckAt) > masterStuckTimeThreshold {
		master.Disconnect(p2p.DiscUselessPeer)
		m.registry.Ban(master.ID())
		m.metricBansIssued.Inc(1)
	}
}

func (m *Manager) checkPeersLocked() {
	for _, p := range m.pool.Snapshot() {
		if p.HasNoMoreBlocks() {
			p.ChangeState(PeerIdle)
			m.raiseLowerUsefulDifficultyLocked(p.HandshakeTotalDifficulty())
		}
	}

	if master, ok := m.masterPeer(); ok {
		if !m.pool.Contains(master.ID()) && (m.state == SyncHashRetrieving || m.state == SyncGapRecovery) {
			lost := m.state
			m.clearMasterLocked()
			m.changeStateLocked(lost)
		}
	}

	if m.state == SyncBlockRetrieving || m.state == SyncDoneSync || m.state == SyncDoneGapRecovery {
		if !m.queue.IsHashesEmpty() {
			m.pool.TransitionWhere(func(p Peer) bool { return p.IsIdle() }, PeerBlockRetrieving)
		}
	}
}

func (m *Manager) askNewPeersLocked() {
	lack := m.cfg.SyncPeerCount - m.pool.Len()
	if lack <= 0 {
		return
	}

	inUse := mapset.NewThreadUnsafeSet[string]()
	for _, id := range m.pool.IDs() {
		inUse.Add(id)
	}
	for _, id := range m.registry.ConnectAttemptIDs() {
		inUse.Add(id)
	}
	for _, id := range m.registry.BannedIDs() {
		inUse.Add(id)
	}

	lower := new(big.Int).Set(m.lowerUsefulDifficulty)
	nodes := m.discovery.Nodes(func(n Node) bool {
		return n.HasStatus && !inUse.Contains(n.PeerID) && n.TotalDifficulty.Cmp(lower) > 0
	}, byTotalDifficultyDesc, lack)

	if len(nodes) == 0 && m.pool.Len() == 0 {
		nodes = m.discovery.Nodes(func(n Node) bool {
			return n.HasStatus && !inUse.Contains(n.PeerID)
		}, byReputationDesc, lack)
	}

	for _, n := range nodes {
		if err := m.registry.InitiateConnection(m.pool, m.transport, n); err != nil {
			m.log.Debug("askNewPeers dial failed", "peer", n.PeerID, "err", err)
		}
	}
}

// InitiateConnection dials a single candidate node, used both by
// askNewPeers and by the DiscoverySubscriber.
func (m *Manager) InitiateConnection(n Node) {
	if err := m.registry.InitiateConnection(m.pool, m.transport, n); err != nil {
		m.log.Debug("initiateConnection dial failed", "peer", n.PeerID, "err", err)
	}
}

// AddPeer admits a newly handshaken peer. It rejects peers whose total
// difficulty is below lowerUsefulDifficulty.
func (m *Manager) AddPeer(p Peer) error {
	id := p.ID()
	m.registry.ClearAttempt(id)

	m.mu.Lock()
	lower := new(big.Int).Set(m.lowerUsefulDifficulty)
	m.mu.Unlock()

	if p.TotalDifficulty().Cmp(lower) < 0 {
		return errPeerUnderqualified
	}

	m.pool.Add(p)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.onSyncDoneTriggered {
		p.ProhibitTransactions()
	}

	switch m.state {
	case SyncInit:
		if m.queue.HasSolidBlocks() {
			m.changeStateLocked(SyncBlockRetrieving)
		} else if p.TotalDifficulty().Cmp(m.highestKnownDifficulty) > 0 {
			m.changeStateLocked(SyncHashRetrieving)
		}
	case SyncHashRetrieving:
		if !withinBand(p.TotalDifficulty(), m.highestKnownDifficulty, similarityBand) {
			m.changeStateLocked(SyncHashRetrieving)
		}
	}

	// highestKnownDifficulty tracks every peer ever observed, not only the
	// master, so that a later-exhausted peer's handshake difficulty (raised
	// into lowerUsefulDifficulty by checkPeers) can never exceed it. Applied
	// after the state-transition checks above, which compare against the
	// watermark as it stood before this peer arrived.
	m.raiseHighestKnownDifficultyLocked(p.TotalDifficulty())
	return nil
}

// OnDisconnect evicts a peer id from the pool and accrues its disconnect
// hit count, banning it outright once the threshold is exceeded.
func (m *Manager) OnDisconnect(id string) {
	m.pool.Remove(id)
	m.registry.ClearAttempt(id)
	if m.registry.RecordDisconnectHit(id) {
		m.metricBansIssued.Inc(1)
		m.log.Warn("peer banned after repeated disconnects", "id", id)
	}
}

// RecoverGap reacts to a block observed out of sequence with the local
// chain head, either backfilling a single hash or entering gap recovery
// for a large gap.
func (m *Manager) RecoverGap(w BlockWrapper) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == SyncGapRecovery {
		return nil
	}
	if !w.Fresh {
		if m.state == SyncInit || m.state == SyncHashRetrieving {
			return nil
		}
	} else {
		if !((m.state == SyncBlockRetrieving && m.queue.IsHashesEmpty()) ||
			m.state == SyncDoneSync || m.state == SyncDoneGapRecovery) {
			return nil
		}
	}

	localBest := int64(m.chain.BestBlockNumber())
	gap := int64(w.Number) - localBest

	if gap > largeGapThreshold {
		ask := gap
		if int64(m.cfg.MaxHashesAsk) < ask {
			ask = int64(m.cfg.MaxHashesAsk)
		}
		if m.master == nil {
			m.master = &masterInfo{}
		}
		m.master.maxHashesAsk = int(ask)
		m.master.bestHash = w.Hash
		m.changeStateLocked(SyncGapRecovery)
	} else {
		m.queue.AddFirstHash(w.ParentHash)
	}
	return nil
}

// NotifyNewBlockImported reacts to a block the node itself just imported.
func (m *Manager) NotifyNewBlockImported(w BlockWrapper) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == SyncDoneSync || m.state == SyncGapRecovery || m.state == SyncDoneGapRecovery {
		return
	}
	if w.Fresh {
		m.changeStateLocked(SyncDoneSync)
	} else {
		m.log.Debug("imported block outside freshness window, continuing sync", "number", w.Number)
	}
}
