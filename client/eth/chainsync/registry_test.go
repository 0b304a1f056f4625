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
	"testing"
	"time"
)

func TestRegistryInitiateConnectionRecordsAttempt(t *testing.T) {
	r := NewConnectionRegistry(nil)
	pool := NewPool(nil)
	transport := newFakeTransport()

	if err := r.InitiateConnection(pool, transport, Node{PeerID: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.IsConnecting("a") {
		t.Fatal("expected a to be recorded as connecting")
	}
	if got := transport.connectedIDs(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected transport to have dialed a, got %v", got)
	}
}

func TestRegistryInitiateConnectionSkipsExistingPoolMember(t *testing.T) {
	r := NewConnectionRegistry(nil)
	pool := NewPool(nil)
	pool.Add(newFakePeer("a", 1))
	transport := newFakeTransport()

	if err := r.InitiateConnection(pool, transport, Node{PeerID: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transport.connectedIDs()) != 0 {
		t.Fatal("should not dial a node already in the pool")
	}
}

func TestRegistryInitiateConnectionSkipsInFlightAttempt(t *testing.T) {
	r := NewConnectionRegistry(nil)
	pool := NewPool(nil)
	transport := newFakeTransport()

	r.InitiateConnection(pool, transport, Node{PeerID: "a"})
	r.InitiateConnection(pool, transport, Node{PeerID: "a"})

	if got := len(transport.connectedIDs()); got != 1 {
		t.Fatalf("expected exactly one dial attempt, got %d", got)
	}
}

func TestRegistryRecordDisconnectHitBansOnSixthHit(t *testing.T) {
	r := NewConnectionRegistry(nil)
	var banned bool
	for i := 0; i < 6; i++ {
		banned = r.RecordDisconnectHit("a")
	}
	if !banned {
		t.Fatal("the sixth disconnect hit should ban the peer")
	}
	if !r.IsBanned("a") {
		t.Fatal("expected a to be banned")
	}
}

func TestRegistryRecordDisconnectHitDoesNotBanBeforeThreshold(t *testing.T) {
	r := NewConnectionRegistry(nil)
	for i := 0; i < 5; i++ {
		if banned := r.RecordDisconnectHit("a"); banned {
			t.Fatalf("unexpected ban at hit %d", i+1)
		}
	}
	if r.IsBanned("a") {
		t.Fatal("a should not be banned yet")
	}
}

func TestRegistryRemoveOutdatedConnections(t *testing.T) {
	r := NewConnectionRegistry(nil)
	fake := time.Unix(0, 0)
	r.now = func() time.Time { return fake }

	pool := NewPool(nil)
	r.InitiateConnection(pool, newFakeTransport(), Node{PeerID: "a"})

	fake = fake.Add(connectionTimeout + time.Second)
	r.RemoveOutdatedConnections()

	if r.IsConnecting("a") {
		t.Fatal("expected stale connect attempt to be cleared")
	}
}

func TestRegistryReleaseBans(t *testing.T) {
	r := NewConnectionRegistry(nil)
	fake := time.Unix(0, 0)
	r.now = func() time.Time { return fake }

	r.Ban("a")
	fake = fake.Add(banTimeout + time.Second)
	r.ReleaseBans()

	if r.IsBanned("a") {
		t.Fatal("expected ban to have been released")
	}
}

func TestRegistryClearAttempt(t *testing.T) {
	r := NewConnectionRegistry(nil)
	pool := NewPool(nil)
	r.InitiateConnection(pool, newFakeTransport(), Node{PeerID: "a"})
	r.ClearAttempt("a")
	if r.IsConnecting("a") {
		t.Fatal("ClearAttempt should remove the in-flight attempt")
	}
}
