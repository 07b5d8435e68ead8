package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates deterministic event ids "<prefix>-000001",
// "<prefix>-000002", ...
//
// This enables golden snapshot comparison: the same scenario produces
// byte-identical event logs.
//
// Thread-safety: all methods are safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. If prefix is empty, "ev" is used.
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "ev"
	}
	return &SequentialIDs{prefix: prefix}
}

// NewID returns the next id. Implements eventlog.IDGenerator.
func (g *SequentialIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}
