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

func TestStartStopLifecycle(t *testing.T) {
	m, _, _, _, _ := newTestManager()

	if err := m.Start(); err != nil {
		t.Fatalf("unexpected error starting: %v", err)
	}
	if err := m.Start(); err != errAlreadyStarted {
		t.Fatalf("expected errAlreadyStarted on double start, got %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("unexpected error stopping: %v", err)
	}
	if err := m.Stop(); err != errNotStarted {
		t.Fatalf("expected errNotStarted on double stop, got %v", err)
	}
}

func TestStartNoOpWhenSyncDisabled(t *testing.T) {
	m, _, _, _, _ := newTestManager()
	m.cfg.SyncEnabled = false

	if err := m.Start(); err != nil {
		t.Fatalf("unexpected error starting with sync disabled: %v", err)
	}
	if m.started {
		t.Fatal("manager should not be marked started when sync is disabled")
	}
}
