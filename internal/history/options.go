package history

import (
	"log/slog"

	"github.com/roach88/snapstore/internal/registry"
)

// Option configures a History.
type Option func(*History)

// WithRegistry makes the History use reg instead of a fresh registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(h *History) {
		if reg != nil {
			h.reg = reg
		}
	}
}

// WithMaxMutations bounds the log length. Values <= 0 mean unbounded.
//
// Default: 0 (unbounded)
// Use WithMaxMutations(100) to keep only the last 100 steps of history.
func WithMaxMutations(n int) Option {
	return func(h *History) {
		h.maxMutations = n
	}
}

// WithDeleteOutOfScopeVersions makes compaction delete a chain, and the
// entity it tracks, once its last snapshot is deleted.
func WithDeleteOutOfScopeVersions(enabled bool) Option {
	return func(h *History) {
		h.deleteOutOfScope = enabled
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *History) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithClock sets the logical clock used to stamp entries.
func WithClock(c *Clock) Option {
	return func(h *History) {
		if c != nil {
			h.clock = c
		}
	}
}
