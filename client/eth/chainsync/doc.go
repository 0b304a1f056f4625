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

// Package chainsync brings a node's local chain into agreement with the
// network's best known chain. It coordinates a pool of peer connections,
// drives each through hash enumeration and block download, and recovers
// from gaps discovered when blocks arrive out of order.
//
// The package owns none of the wire protocol, the cryptographic handshake,
// block validation, persistence, the transaction pool or the discovery
// protocol itself — those are collaborators reached through the Peer,
// BlockQueue, Blockchain, Discovery and Transport interfaces.
package chainsync
