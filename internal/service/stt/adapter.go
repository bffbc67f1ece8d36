// Package stt defines the interface for speech recognizers feeding the coaching engine.
package stt

import (
	"context"
	"time"
)

// Fragment is one piece of recognized speech. Interim fragments may be revised by the
// recognizer; final fragments are stable.
type Fragment struct {
	Text       string    `json:"text"`
	Final      bool      `json:"final"`
	Confidence float64   `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Callback receives recognition results from the recognizer.
type Callback interface {
	// OnPartial is called when an interim transcript is received.
	OnPartial(text string)

	// OnFinal is called when a final transcript is received.
	OnFinal(text string, confidence float64)

	// OnError is called when recognition fails. No further callbacks follow.
	OnError(err error)
}

// Adapter is a streaming speech recognizer (simulated or Google Cloud Speech).
type Adapter interface {
	// Start begins a recognition session. Results are delivered to cb until ctx is
	// cancelled or Close is called.
	Start(ctx context.Context, cb Callback) error

	// SendAudio forwards captured PCM audio to the recognizer.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session and releases resources. Idempotent.
	Close() error
}

// Factory creates a fresh recognizer for each session. Adapters are single-use.
type Factory func(ctx context.Context) (Adapter, error)
