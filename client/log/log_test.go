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

package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestTerminalHandlerWritesKeyValuePairs(t *testing.T) {
	out := new(bytes.Buffer)
	logger := NewLogger(NewTerminalHandlerWithLevel(out, LevelTrace, false))
	logger.Info("peer connected", "id", "abcd", "td", 100)

	line := out.String()
	if !strings.Contains(line, "peer connected") {
		t.Fatalf("expected message in output, got %q", line)
	}
	if !strings.Contains(line, "id=abcd") || !strings.Contains(line, "td=100") {
		t.Fatalf("expected key/value pairs in output, got %q", line)
	}
}

func TestGlogHandlerRespectsVerbosity(t *testing.T) {
	out := new(bytes.Buffer)
	glog := NewGlogHandler(NewTerminalHandlerWithLevel(out, LevelTrace, false))
	glog.Verbosity(LevelCrit)

	logger := NewLogger(glog)
	logger.Warn("should be suppressed")
	if out.Len() != 0 {
		t.Fatalf("expected no output below configured verbosity, got %q", out.String())
	}
}

func TestWithAddsPersistentContext(t *testing.T) {
	out := new(bytes.Buffer)
	logger := NewLogger(NewTerminalHandlerWithLevel(out, LevelTrace, false)).With("component", "sync")
	logger.Info("tick")
	if !strings.Contains(out.String(), "component=sync") {
		t.Fatalf("expected persistent context in output, got %q", out.String())
	}
}
