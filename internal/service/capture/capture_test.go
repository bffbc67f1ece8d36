package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestDefaultConstraints(t *testing.T) {
	c := DefaultConstraints()

	if c.SampleRate != 16000 {
		t.Errorf("expected 16000 Hz, got %d", c.SampleRate)
	}
	if c.Channels != 1 {
		t.Errorf("expected mono, got %d channels", c.Channels)
	}
	if !c.EchoCancellation || !c.NoiseSuppression {
		t.Error("expected echo cancellation and noise suppression requested")
	}
}

func TestMatchDevice(t *testing.T) {
	names := []string{"Built-in Microphone", "USB Audio Device", "Monitor of Speakers"}

	tests := []struct {
		want     string
		expected int
	}{
		{"usb", 1},
		{"  Built-In ", 0},
		{"monitor", 2},
		{"bluetooth", -1},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := matchDevice(names, tt.want); got != tt.expected {
				t.Errorf("matchDevice(%q) = %d, want %d", tt.want, got, tt.expected)
			}
		})
	}
}

func TestNullDevice_EmitsSilenceAtFrameCadence(t *testing.T) {
	mc := clock.NewMock()
	d := NewNullDevice(mc)

	s, err := d.Open(context.Background(), DefaultConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	mc.Add(30 * time.Millisecond)

	select {
	case sample := <-s.Samples():
		if len(sample.Data) != 960 {
			t.Errorf("expected 960 bytes (480 frames * 2 bytes), got %d", len(sample.Data))
		}
		if sample.Frames != 480 {
			t.Errorf("expected 480 frames, got %d", sample.Frames)
		}
		for _, b := range sample.Data {
			if b != 0 {
				t.Fatal("expected silence")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("expected a sample after one period")
	}
}

func TestNullDevice_CloseClosesChannels(t *testing.T) {
	d := NewNullDevice(clock.NewMock())
	s, err := d.Open(context.Background(), Constraints{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if _, ok := <-s.Samples(); ok {
		t.Error("expected samples channel closed")
	}
	if _, ok := <-s.Errors(); ok {
		t.Error("expected errors channel closed")
	}
	// Idempotent
	if err := s.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestNullDevice_OpenError(t *testing.T) {
	denied := errors.New("permission denied")
	d := NewNullDevice(nil)
	d.OpenErr = denied

	if _, err := d.Open(context.Background(), DefaultConstraints()); !errors.Is(err, denied) {
		t.Errorf("expected permission error, got %v", err)
	}
}
