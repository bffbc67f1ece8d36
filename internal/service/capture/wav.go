package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Standard PCM WAV header size.
const wavHeaderSize = 44

// ErrUnsupportedWAV is returned for files that are not 16-bit PCM WAV.
var ErrUnsupportedWAV = errors.New("unsupported WAV file")

// WAVFormat is the format block of a PCM WAV header.
type WAVFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// ParseWAVHeader reads and validates a 44-byte PCM WAV header.
func ParseWAVHeader(r io.Reader) (WAVFormat, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return WAVFormat{}, fmt.Errorf("failed to read WAV header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return WAVFormat{}, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedWAV)
	}
	f := WAVFormat{
		AudioFormat:   binary.LittleEndian.Uint16(header[20:22]),
		Channels:      binary.LittleEndian.Uint16(header[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(header[24:28]),
		BitsPerSample: binary.LittleEndian.Uint16(header[34:36]),
	}
	if f.AudioFormat != 1 {
		return f, fmt.Errorf("%w: format %d, only PCM is supported", ErrUnsupportedWAV, f.AudioFormat)
	}
	if f.BitsPerSample != 16 {
		return f, fmt.Errorf("%w: %d bits per sample, need 16", ErrUnsupportedWAV, f.BitsPerSample)
	}
	return f, nil
}

// WAVDevice plays a recorded talk as if it came from a microphone, paced in real time.
// Once the recording ends the stream stays open and silent.
type WAVDevice struct {
	path  string
	clock clock.Clock
}

// NewWAVDevice creates a device that replays the file at path.
func NewWAVDevice(path string, clk clock.Clock) *WAVDevice {
	if clk == nil {
		clk = clock.New()
	}
	return &WAVDevice{path: path, clock: clk}
}

// Open validates the recording against c and starts replaying it.
func (d *WAVDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoDevice, err)
	}
	r := bytes.NewReader(data)
	format, err := ParseWAVHeader(r)
	if err != nil {
		return nil, err
	}
	if c.SampleRate != 0 && format.SampleRate != c.SampleRate {
		return nil, fmt.Errorf("%w: sample rate %d Hz, need %d Hz", ErrUnsupportedWAV, format.SampleRate, c.SampleRate)
	}
	if c.Channels != 0 && uint32(format.Channels) != c.Channels {
		return nil, fmt.Errorf("%w: %d channels, need %d", ErrUnsupportedWAV, format.Channels, c.Channels)
	}

	frames := c.BufferFrames
	if frames == 0 {
		frames = 480
	}
	chunk := int(frames) * int(format.Channels) * 2
	period := time.Duration(frames) * time.Second / time.Duration(format.SampleRate)

	s := &wavStream{
		samples: make(chan Sample, 8),
		errors:  make(chan error, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
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
				buf := make([]byte, chunk)
				n, err := io.ReadFull(r, buf)
				if n > 0 {
					select {
					case s.samples <- Sample{Data: buf[:n], Timestamp: ts, Frames: uint32(n / (int(format.Channels) * 2))}:
					case <-s.stop:
						return
					case <-ctx.Done():
						return
					}
				}
				if err != nil {
					return
				}
			}
		}
	}()
	return s, nil
}

type wavStream struct {
	samples chan Sample
	errors  chan error
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (s *wavStream) Samples() <-chan Sample { return s.samples }

func (s *wavStream) Errors() <-chan error { return s.errors }

func (s *wavStream) Close() error {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
		close(s.samples)
		close(s.errors)
	})
	return nil
}
