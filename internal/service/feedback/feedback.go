// Package feedback turns flushed transcript segments into coaching feedback events.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Type is the tone of a feedback event.
type Type string

const (
	TypeSuccess    Type = "success"
	TypeSuggestion Type = "suggestion"
	TypeWarning    Type = "warning"
	TypeInfo       Type = "info"
)

// Valid reports whether t is a known feedback type.
func (t Type) Valid() bool {
	switch t {
	case TypeSuccess, TypeSuggestion, TypeWarning, TypeInfo:
		return true
	}
	return false
}

// Category classifies what a feedback event is about.
type Category string

const (
	CategoryFiller  Category = "filler"
	CategoryPace    Category = "pace"
	CategoryClarity Category = "clarity"
	CategoryGeneral Category = "general"
)

// Valid reports whether c is a known feedback category.
func (c Category) Valid() bool {
	switch c {
	case CategoryFiller, CategoryPace, CategoryClarity, CategoryGeneral:
		return true
	}
	return false
}

// Pace is the qualitative speaking-rate verdict carried by pace feedback.
type Pace string

const (
	PaceUnknown Pace = ""
	PaceFast    Pace = "Fast"
	PaceSlow    Pace = "Slow"
	PaceGood    Pace = "Good"
)

// Signals are the structured measurements behind a feedback message, so consumers
// never have to parse the human-readable content.
type Signals struct {
	WordCount int      `json:"wordCount"`
	Rate      float64  `json:"rate"`
	Fillers   []string `json:"fillers,omitempty"`
	Pace      Pace     `json:"pace,omitempty"`
}

// Event is the result of analyzing one segment. Treat it as immutable.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	SegmentID string    `json:"segmentId"`
	Content   string    `json:"content"`
	Type      Type      `json:"type"`
	Category  Category  `json:"category"`
	Signals   Signals   `json:"signals"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the enumerated fields and that there is something to show.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Content) == "" {
		return fmt.Errorf("feedback content is empty")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("invalid feedback type %q", e.Type)
	}
	if !e.Category.Valid() {
		return fmt.Errorf("invalid feedback category %q", e.Category)
	}
	return nil
}

// Analyzer produces exactly one feedback event for a segment of transcript text.
// Implementations must be safe to call from a single worker goroutine; they are not
// required to be safe for concurrent use.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Event, error)
}

// Name returns a short label for metrics and logs.
func Name(a Analyzer) string {
	if n, ok := a.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", a)
}

// WordCount counts whitespace-delimited tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
