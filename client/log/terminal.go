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
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// TerminalHandler formats records for a human reader: a fixed-width level and
// timestamp column, the message, then "key=value" pairs sorted by key.
type TerminalHandler struct {
	mu    sync.Mutex
	wr    io.Writer
	level slog.Leveler
	attrs []slog.Attr
	color bool
}

// NewTerminalHandler returns a handler at LevelInfo and above.
func NewTerminalHandler(wr io.Writer, useColor bool) slog.Handler {
	return NewTerminalHandlerWithLevel(wr, LevelInfo, useColor)
}

// NewTerminalHandlerWithLevel returns a handler with an explicit minimum level.
func NewTerminalHandlerWithLevel(wr io.Writer, level slog.Leveler, useColor bool) slog.Handler {
	return &TerminalHandler{wr: wr, level: level, color: useColor}
}

func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Fprintf(h.wr, "%-5s[%s] %-40s", LevelString(r.Level), ts.Format("01-02|15:04:05.000"), r.Message)

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
	for _, a := range attrs {
		fmt.Fprintf(h.wr, " %s=%v", a.Key, a.Value.Any())
	}
	fmt.Fprintln(h.wr)
	return nil
}

func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &TerminalHandler{wr: h.wr, level: h.level, attrs: merged, color: h.color}
}

func (h *TerminalHandler) WithGroup(string) slog.Handler { return h }
