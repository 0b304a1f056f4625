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
	"log/slog"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
)

// GlogHandler wraps another handler, allowing the global verbosity to be raised
// or lowered at runtime, and for specific source files to be given a different
// verbosity via Vmodule, matching the behaviour of glog's --vmodule flag.
type GlogHandler struct {
	origin slog.Handler

	mu          sync.RWMutex
	verbosity   slog.Level
	patterns    []*pattern
	siteCache   map[string]slog.Level
}

type pattern struct {
	matcher *regexp.Regexp
	level   slog.Level
}

// NewGlogHandler returns a handler wrapping h whose verbosity can be changed
// dynamically at runtime.
func NewGlogHandler(h slog.Handler) *GlogHandler {
	return &GlogHandler{origin: h, verbosity: LevelCrit, siteCache: make(map[string]slog.Level)}
}

// Verbosity sets the global logging verbosity.
func (g *GlogHandler) Verbosity(level slog.Level) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verbosity = level
}

// Vmodule sets the glog-style vmodule pattern, for example "gopher.go=3" or
// "foo_file*.go=2,bar_file*.go=4".
func (g *GlogHandler) Vmodule(ruleset string) error {
	var patterns []*pattern
	for _, rule := range strings.Split(ruleset, ",") {
		if rule == "" {
			continue
		}
		parts := strings.Split(rule, "=")
		if len(parts) != 2 {
			continue
		}
		expr := "^" + strings.ReplaceAll(strings.ReplaceAll(parts[0], ".", `\.`), "*", ".*") + "$"
		matcher, err := regexp.Compile(expr)
		if err != nil {
			return err
		}
		var lvl int
		for _, c := range parts[1] {
			if c < '0' || c > '9' {
				continue
			}
			lvl = lvl*10 + int(c-'0')
		}
		patterns = append(patterns, &pattern{matcher: matcher, level: slog.Level(-lvl)})
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.patterns = patterns
	g.siteCache = make(map[string]slog.Level)
	return nil
}

func (g *GlogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return level >= g.verbosity || len(g.patterns) > 0
}

func (g *GlogHandler) Handle(ctx context.Context, r slog.Record) error {
	g.mu.RLock()
	verbosity := g.verbosity
	patterns := g.patterns
	g.mu.RUnlock()

	if r.Level >= verbosity {
		return g.origin.Handle(ctx, r)
	}
	if len(patterns) == 0 {
		return nil
	}

	file := filepath.Base(callerFile(r))
	for _, p := range patterns {
		if p.matcher.MatchString(file) && r.Level >= p.level {
			return g.origin.Handle(ctx, r)
		}
	}
	return nil
}

// callerFile resolves the source file that produced the record, used for
// per-file vmodule overrides.
func callerFile(r slog.Record) string {
	if r.PC == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{r.PC})
	frame, _ := frames.Next()
	return frame.File
}

func (g *GlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &GlogHandler{origin: g.origin.WithAttrs(attrs), verbosity: g.verbosity, patterns: g.patterns, siteCache: g.siteCache}
}

func (g *GlogHandler) WithGroup(name string) slog.Handler {
	return &GlogHandler{origin: g.origin.WithGroup(name), verbosity: g.verbosity, patterns: g.patterns, siteCache: g.siteCache}
}
