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

import "time"

// Config holds the tunable, user-facing knobs of a Manager. Everything else
// (timeouts, thresholds, ticks) is a package constant below, the same split
// the teacher draws between ethconfig.Config and its protocol-level consts.
type Config struct {
	SyncEnabled            bool
	SyncPeerCount          int
	MaxHashesAsk           int
	PeerChannelReadTimeout time.Duration
	DatabaseDir            string
}

// Defaults is the Config a Manager is constructed with absent explicit
// overrides, mirroring ethconfig.Defaults.
var Defaults = Config{
	SyncEnabled:            true,
	SyncPeerCount:          25,
	MaxHashesAsk:           192,
	PeerChannelReadTimeout: 30 * time.Second,
	DatabaseDir:            "",
}

const (
	// connectionTimeout bounds how long a dial attempt may sit in
	// connectAttempts before the registry reclaims it.
	connectionTimeout = 60 * time.Second

	// banTimeout is how long a banned peer id remains unreachable.
	banTimeout = 30 * time.Minute

	// disconnectHitsThreshold is the number of disconnects a peer id may
	// accrue before being banned outright; hits do not expire. The ban
	// fires on the hit that pushes the count past this value.
	disconnectHitsThreshold = 5

	// masterStuckTimeThreshold is how long the master peer may report no
	// hash-loading progress before it is considered stuck.
	masterStuckTimeThreshold = 60 * time.Second

	// largeGapThreshold is the largest gap, in blocks, between a reported
	// block and the local chain head that is handled by a simple single-hash
	// backfill; any larger gap triggers gap recovery instead.
	largeGapThreshold = 5

	// syncTick is the maintenance worker's fixed delay between runs.
	syncTick = 3 * time.Second

	// statsTick is the stats worker's fixed delay between runs.
	statsTick = 30 * time.Second

	// similarityBand is the maximum fractional deviation, relative to the
	// reference difficulty, for a peer's total difficulty to be considered
	// "similar" rather than cause for re-electing the master.
	similarityBand = 0.20
)
