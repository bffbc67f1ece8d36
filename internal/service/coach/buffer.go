package coach

import (
	"strings"
	"time"

	"speech-coach-service/internal/service/segment"
)

// Buffer accumulates final transcript fragments between flushes. The word count always
// equals the sum of the fragments' whitespace-delimited token counts.
type Buffer struct {
	fragments []string
	words     int
}

// Append adds a fragment and returns its word count.
func (b *Buffer) Append(text string) int {
	n := len(strings.Fields(text))
	b.fragments = append(b.fragments, text)
	b.words += n
	return n
}

// Words returns the running word count.
func (b *Buffer) Words() int { return b.words }

// Len returns the number of buffered fragments.
func (b *Buffer) Len() int { return len(b.fragments) }

// Last returns the most recently appended fragment.
func (b *Buffer) Last() string {
	if len(b.fragments) == 0 {
		return ""
	}
	return b.fragments[len(b.fragments)-1]
}

// Text joins the fragments with single spaces.
func (b *Buffer) Text() string {
	return strings.Join(b.fragments, " ")
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.fragments = nil
	b.words = 0
}

// Segment is a flushed unit of text handed to the analyzer.
type Segment struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Text      string    `json:"text"`
	WordCount int       `json:"wordCount"`
	Reason    Reason    `json:"reason"`
	FlushedAt time.Time `json:"flushedAt"`

	lifecycle *segment.Lifecycle
}

// State returns the segment's lifecycle state.
func (s Segment) State() segment.State {
	if s.lifecycle == nil {
		return segment.StateFlushed
	}
	return s.lifecycle.State()
}
