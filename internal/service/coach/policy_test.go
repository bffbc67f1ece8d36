package coach

import (
	"strings"
	"testing"
	"time"
)

func TestPolicy_Decide(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name     string
		words    int
		last     string
		since    time.Duration
		expected Reason
	}{
		{"below min words never flushes", 9, "done.", time.Minute, ReasonNone},
		{"sentence end at half max", 15, "that is all.", 0, ReasonSentence},
		{"question mark counts", 20, "any questions?", 0, ReasonSentence},
		{"exclamation with trailing space", 15, "wow!  ", 0, ReasonSentence},
		{"sentence end below half max", 14, "that is all.", 0, ReasonNone},
		{"max words", 30, "and then", 0, ReasonMaxWords},
		{"sentence wins over max words", 30, "end.", time.Minute, ReasonSentence},
		{"max words wins over timeout", 31, "and", time.Minute, ReasonMaxWords},
		{"timeout", 11, "and then", 5*time.Second + time.Millisecond, ReasonTimeout},
		{"timeout is strict", 11, "and then", 5 * time.Second, ReasonNone},
		{"keep buffering", 12, "and then", time.Second, ReasonNone},
		{"comma is not a sentence end", 16, "first,", 0, ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Decide(tt.words, tt.last, tt.since); got != tt.expected {
				t.Errorf("Decide(%d, %q, %v) = %q, want %q", tt.words, tt.last, tt.since, got, tt.expected)
			}
		})
	}
}

func TestPolicy_CustomThresholds(t *testing.T) {
	p := Policy{MinWords: 2, MaxWords: 4, Timeout: time.Second}

	if got := p.Decide(2, "hi there.", 0); got != ReasonSentence {
		t.Errorf("expected sentence flush at MaxWords/2, got %q", got)
	}
	if got := p.Decide(4, "hi there", 0); got != ReasonMaxWords {
		t.Errorf("expected max words flush, got %q", got)
	}
}

func TestPolicy_OddMaxWordsHalfIsNotRoundedDown(t *testing.T) {
	p := Policy{MinWords: 2, MaxWords: 7, Timeout: time.Second}

	tests := []struct {
		words    int
		expected Reason
	}{
		{3, ReasonNone},
		{4, ReasonSentence},
	}

	for _, tt := range tests {
		if got := p.Decide(tt.words, "that is all.", 0); got != tt.expected {
			t.Errorf("Decide(%d) with MaxWords 7: expected %q, got %q", tt.words, tt.expected, got)
		}
	}
}

func TestBuffer_WordCountInvariant(t *testing.T) {
	var b Buffer
	fragments := []string{"Good morning everyone", "  Today I want\tto talk  ", "about, um, digital transformation"}

	total := 0
	for _, f := range fragments {
		n := b.Append(f)
		if n != len(strings.Fields(f)) {
			t.Errorf("Append(%q) = %d, want %d", f, n, len(strings.Fields(f)))
		}
		total += n
		if b.Words() != total {
			t.Errorf("expected running count %d, got %d", total, b.Words())
		}
	}

	if b.Len() != 3 {
		t.Errorf("expected 3 fragments, got %d", b.Len())
	}
	if b.Last() != fragments[2] {
		t.Errorf("expected last fragment %q, got %q", fragments[2], b.Last())
	}
	if !strings.HasPrefix(b.Text(), "Good morning everyone   Today") {
		t.Errorf("expected fragments joined by single spaces, got %q", b.Text())
	}

	b.Reset()
	if b.Words() != 0 || b.Len() != 0 || b.Text() != "" || b.Last() != "" {
		t.Errorf("expected empty buffer after reset, got words=%d len=%d", b.Words(), b.Len())
	}
}
