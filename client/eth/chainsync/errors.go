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

import "errors"

var (
	// errPeerUnderqualified is returned by AddPeer when the candidate's total
	// difficulty is below lowerUsefulDifficulty.
	errPeerUnderqualified = errors.New("chainsync: peer total difficulty below lower useful difficulty")

	// errAlreadyStarted is returned by Start when the manager is already running.
	errAlreadyStarted = errors.New("chainsync: manager already started")

	// errNotStarted is returned by Stop when the manager is not running,
	// whether it was never started or has already been stopped.
	errNotStarted = errors.New("chainsync: manager not started")
)
