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

import "testing"

func TestPoolAddRemoveContains(t *testing.T) {
	pool := NewPool(nil)
	p := newFakePeer("a", 10)

	if pool.Contains("a") {
		t.Fatal("empty pool should not contain a")
	}
	pool.Add(p)
	if !pool.Contains("a") {
		t.Fatal("pool should contain a after Add")
	}
	if pool.Len() != 1 {
		t.Fatalf("expected len 1, got %d", pool.Len())
	}

	removed, ok := pool.Remove("a")
	if !ok || removed.ID() != "a" {
		t.Fatal("Remove should return the removed peer")
	}
	if pool.Contains("a") {
		t.Fatal("pool should not contain a after Remove")
	}
}

func TestPoolSnapshotIsolatesFromMutation(t *testing.T) {
	pool := NewPool(nil)
	pool.Add(newFakePeer("a", 1))
	pool.Add(newFakePeer("b", 2))

	snap := pool.Snapshot()
	pool.Remove("a")

	if len(snap) != 2 {
		t.Fatalf("snapshot taken before Remove should still have 2 entries, got %d", len(snap))
	}
	if pool.Len() != 1 {
		t.Fatalf("pool itself should now have 1 entry, got %d", pool.Len())
	}
}

func TestPoolTransitionAll(t *testing.T) {
	pool := NewPool(nil)
	a := newFakePeer("a", 1)
	b := newFakePeer("b", 2)
	pool.Add(a)
	pool.Add(b)

	pool.TransitionAll(PeerHashRetrieving)

	if a.State() != PeerHashRetrieving || b.State() != PeerHashRetrieving {
		t.Fatal("TransitionAll should move every peer to the given state")
	}
}

func TestPoolTransitionWhere(t *testing.T) {
	pool := NewPool(nil)
	a := newFakePeer("a", 1)
	b := newFakePeer("b", 2)
	b.ChangeState(PeerHashRetrieving)
	pool.Add(a)
	pool.Add(b)

	pool.TransitionWhere(func(p Peer) bool { return p.(*fakePeer).IsIdle() }, PeerBlockRetrieving)

	if a.State() != PeerBlockRetrieving {
		t.Fatal("idle peer a should have transitioned")
	}
	if b.State() != PeerHashRetrieving {
		t.Fatal("non-idle peer b should not have transitioned")
	}
}

func TestPoolIDsEmptyPool(t *testing.T) {
	pool := NewPool(nil)
	if ids := pool.IDs(); len(ids) != 0 {
		t.Fatalf("expected no ids, got %v", ids)
	}
	if len(pool.Snapshot()) != 0 {
		t.Fatal("expected empty snapshot")
	}
}
