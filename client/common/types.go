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

package common

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// HashLength is the expected length of the hash.
const HashLength = 32

// Hash represents the 32 byte digest identifying a block, transaction or peer
// public key.
type Hash [HashLength]byte

// BytesToHash sets b to hash. If b is larger than len(h), b will be cropped from the
// left.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash sets byte representation of s to hash. If s is larger than len(h), s will
// be cropped from the left.
func HexToHash(s string) Hash {
	return BytesToHash(FromHex(s))
}

// SetBytes sets the hash to the value of b. If b is larger than len(h), b will be
// cropped from the left.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns a hex string representation of the hash, prefixed with 0x.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements the stringer interface and is used also by the logger.
func (h Hash) String() string { return h.Hex() }

// TerminalString implements a log-friendly, truncated formatting for console output.
func (h Hash) TerminalString() string {
	return fmt.Sprintf("%x…%x", h[:3], h[29:])
}

// IsZero reports whether the hash is the zero-value sentinel.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Big converts the hash into a big integer value, treating it as big-endian.
func (h Hash) Big() *big.Int {
	return new(big.Int).SetBytes(h[:])
}
