package segment

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a transcript segment.
type State int

const (
	// StateBuffering - fragments are still being appended.
	StateBuffering State = iota
	// StateFlushed - text is frozen and queued for analysis.
	StateFlushed
	// StateAnalyzed - feedback was produced and delivered. Terminal.
	StateAnalyzed
	// StateDropped - analysis failed or the session was torn down. Terminal.
	// No feedback is emitted for a dropped segment.
	StateDropped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateBuffering:
		return "BUFFERING"
	case StateFlushed:
		return "FLUSHED"
	case StateAnalyzed:
		return "ANALYZED"
	case StateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (ANALYZED or DROPPED).
func (s State) IsTerminal() bool {
	return s == StateAnalyzed || s == StateDropped
}

// Errors for invalid state transitions.
var (
	ErrSegmentClosed       = errors.New("segment is closed")
	ErrAlreadyFlushed      = errors.New("segment already flushed")
	ErrAppendAfterFlush    = errors.New("cannot append to a flushed segment")
	ErrCompleteBeforeFlush = errors.New("cannot complete a segment that was not flushed")
)

// Lifecycle manages the state machine for a single segment.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	BUFFERING → FLUSHED → ANALYZED
//	    │          │
//	    └──────────┴──→ DROPPED
//
// Rules:
//   - BUFFERING: Append any number of times, Flush once
//   - FLUSHED: Complete once (feedback delivered) or Drop
//   - ANALYZED, DROPPED: terminal
type Lifecycle struct {
	mu        sync.RWMutex
	segmentId string
	state     State
}

// NewLifecycle creates a new segment lifecycle in BUFFERING state.
func NewLifecycle(segmentId string) *Lifecycle {
	return &Lifecycle{
		segmentId: segmentId,
		state:     StateBuffering,
	}
}

// SegmentId returns the segment ID.
func (l *Lifecycle) SegmentId() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.segmentId
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsClosed returns true if the segment is in a terminal state.
func (l *Lifecycle) IsClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsTerminal()
}

// IsDropped returns true if the segment was dropped.
func (l *Lifecycle) IsDropped() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateDropped
}

// Append validates that another fragment may join the segment.
func (l *Lifecycle) Append() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateBuffering:
		return nil
	case StateFlushed:
		return ErrAppendAfterFlush
	case StateAnalyzed, StateDropped:
		return ErrSegmentClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Flush freezes the segment. Allowed once, from BUFFERING.
func (l *Lifecycle) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateBuffering:
		l.state = StateFlushed
		return nil
	case StateFlushed:
		return ErrAlreadyFlushed
	case StateAnalyzed, StateDropped:
		return ErrSegmentClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Complete marks feedback for the segment as delivered.
func (l *Lifecycle) Complete() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateFlushed:
		l.state = StateAnalyzed
		return nil
	case StateBuffering:
		return ErrCompleteBeforeFlush
	case StateAnalyzed, StateDropped:
		return ErrSegmentClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Drop abandons the segment without feedback.
// Returns true if the segment was dropped, false if already in a terminal state.
func (l *Lifecycle) Drop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateDropped
	return true
}
