// Package capture opens microphone streams for the coaching engine.
package capture

import (
	"context"
	"errors"
	"time"
)

// Constraints describe the audio the engine asks for.
type Constraints struct {
	// SampleRate in Hz. 16000 is what the recognizers expect.
	SampleRate uint32
	// Channels, 1 = mono.
	Channels uint32
	// BufferFrames per callback. Smaller = lower latency, more CPU.
	BufferFrames uint32
	// DeviceName selects a capture device by case-insensitive substring match.
	// Empty uses the system default.
	DeviceName string

	EchoCancellation bool
	NoiseSuppression bool
}

// DefaultConstraints returns 16 kHz mono with echo cancellation and noise suppression.
func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:       16000,
		Channels:         1,
		BufferFrames:     480, // 30ms at 16kHz
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

// Sample is a chunk of 16-bit signed little-endian PCM.
type Sample struct {
	Data      []byte
	Timestamp time.Time
	Frames    uint32
}

// Stream is an open capture stream.
type Stream interface {
	// Samples delivers captured audio. Closed when the stream ends.
	Samples() <-chan Sample
	// Errors delivers at most one fatal error when the device is lost mid-stream.
	Errors() <-chan error
	// Close stops capture and releases the device. Idempotent.
	Close() error
}

// Device opens capture streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

var (
	// ErrNoDevice is returned when no capture device matches.
	ErrNoDevice = errors.New("no capture device available")
	// ErrDeviceLost is delivered on Stream.Errors when capture stops unexpectedly.
	ErrDeviceLost = errors.New("capture device stopped unexpectedly")
)
