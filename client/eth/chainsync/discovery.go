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

	"github.com/r5-labs/r5-core/client/event"
	"github.com/r5-labs/r5-core/client/log"
)

// DiscoverySubscriber listens to Discovery for nodes that qualify on arrival
// (status known, total difficulty outside the similarity band of the
// current highestKnownDifficulty) and dials them immediately rather than
// waiting for the next maintenance tick's askNewPeers pass.
type DiscoverySubscriber struct {
	discovery    Discovery
	registry     *ConnectionRegistry
	connect      func(Node)
	highestKnown func() *big.Int
	log          log.Logger

	ch     <-chan Node
	sub    event.Subscription
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewDiscoverySubscriber constructs a DiscoverySubscriber. connect is called
// for every qualifying, unbanned, not-already-dialing node; in production
// this is Manager.InitiateConnection.
func NewDiscoverySubscriber(d Discovery, r *ConnectionRegistry, connect func(Node), highestKnown func() *big.Int, logger log.Logger) *DiscoverySubscriber {
	if logger == nil {
		logger = log.Root()
	}
	return &DiscoverySubscriber{
		discovery:    d,
		registry:     r,
		connect:      connect,
		highestKnown: highestKnown,
		log:          logger,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start subscribes to discovery and begins dispatching qualifying nodes.
func (s *DiscoverySubscriber) Start() {
	predicate := func(n Node) bool {
		return n.HasStatus && !withinBand(n.TotalDifficulty, s.highestKnown(), similarityBand)
	}
	s.ch, s.sub = s.discovery.Subscribe(predicate)
	go s.loop()
}

// Stop unsubscribes and waits for the dispatch loop to exit.
func (s *DiscoverySubscriber) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *DiscoverySubscriber) loop() {
	defer close(s.doneCh)
	for {
		select {
		case n, ok := <-s.ch:
			if !ok {
				return
			}
			if s.registry.IsBanned(n.PeerID) {
				continue
			}
			if s.registry.IsConnecting(n.PeerID) {
				continue
			}
			s.connect(n)
		case <-s.sub.Err():
			return
		case <-s.stopCh:
			s.sub.Unsubscribe()
			return
		}
	}
}
