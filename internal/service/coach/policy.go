package coach

import (
	"strings"
	"time"
)

// Reason names why a buffer was flushed.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonSentence       Reason = "sentence"
	ReasonMaxWords       Reason = "max_words"
	ReasonTimeout        Reason = "timeout"
	ReasonStop           Reason = "stop"
	ReasonCaptureLost    Reason = "capture_lost"
	ReasonRecognizerLost Reason = "recognizer_lost"
)

// Policy decides when buffered speech is flushed for analysis.
type Policy struct {
	MinWords int
	MaxWords int
	Timeout  time.Duration
}

// DefaultPolicy flushes between 10 and 30 words, or after 5s of buffering.
func DefaultPolicy() Policy {
	return Policy{
		MinWords: 10,
		MaxWords: 30,
		Timeout:  5 * time.Second,
	}
}

// Decide evaluates the triggers in order and returns the first that fires.
//
//  1. fewer than MinWords: never flush
//  2. last fragment ends a sentence and at least MaxWords/2 are buffered
//  3. MaxWords reached
//  4. more than Timeout since the last flush
func (p Policy) Decide(words int, lastText string, sinceFlush time.Duration) Reason {
	if words < p.MinWords {
		return ReasonNone
	}
	if endsSentence(lastText) && 2*words >= p.MaxWords {
		return ReasonSentence
	}
	if words >= p.MaxWords {
		return ReasonMaxWords
	}
	if sinceFlush > p.Timeout {
		return ReasonTimeout
	}
	return ReasonNone
}

func endsSentence(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	switch text[len(text)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
