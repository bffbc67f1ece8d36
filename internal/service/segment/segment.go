// Package segment provides segment ID generation and lifecycle management for flushed
// transcript segments.
package segment

import (
	"fmt"
	"sync/atomic"
)

// Generator hands out segment IDs of the form "<sessionId>-seg-N". The counter is shared
// across sessions so IDs stay unique for the life of the process.
type Generator struct {
	counter uint64
}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) Next(sessionId string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-seg-%d", sessionId, n)
}
