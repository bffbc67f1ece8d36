package capture

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// NullDevice produces silence at the requested cadence. It backs the simulated
// recognizer on hosts without a microphone.
type NullDevice struct {
	clock clock.Clock
	// OpenErr, when set, is returned by Open. Used to exercise permission failures.
	OpenErr error
}

// NewNullDevice creates a silent device driven by clk (real clock when nil).
func NewNullDevice(clk clock.Clock) *NullDevice {
	if clk == nil {
		clk = clock.New()
	}
	return &NullDevice{clock: clk}
}

// Open starts emitting silent frames.
func (d *NullDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.BufferFrames == 0 {
		c.BufferFrames = 480
	}

	s := &nullStream{
		samples: make(chan Sample, 8),
		errors:  make(chan error, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	period := time.Duration(c.BufferFrames) * time.Second / time.Duration(c.SampleRate)
	frameBytes := int(c.BufferFrames * c.Channels * 2)
	ticker := d.clock.Ticker(period)

	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case ts := <-ticker.C:
				select {
				case s.samples <- Sample{Data: make([]byte, frameBytes), Timestamp: ts, Frames: c.BufferFrames}:
				default:
				}
			}
		}
	}()
	return s, nil
}

type nullStream struct {
	samples chan Sample
	errors  chan error
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (s *nullStream) Samples() <-chan Sample { return s.samples }

func (s *nullStream) Errors() <-chan error { return s.errors }

func (s *nullStream) Close() error {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
		close(s.samples)
		close(s.errors)
	})
	return nil
}
