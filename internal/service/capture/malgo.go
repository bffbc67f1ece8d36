package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/observability/metrics"
)

// MalgoDevice captures from a local microphone through miniaudio.
type MalgoDevice struct {
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewMalgoDevice creates a microphone device.
func NewMalgoDevice(m *metrics.Metrics) *MalgoDevice {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &MalgoDevice{metrics: m, logger: logging.WithComponent("capture-malgo")}
}

// Open initializes miniaudio, picks the device and starts capturing.
func (d *MalgoDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	s := &malgoStream{
		malgoContext: malgoCtx,
		samples:      make(chan Sample, 50),
		errors:       make(chan error, 1),
		stopChan:     make(chan struct{}),
		metrics:      d.metrics,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = c.Channels
	deviceConfig.SampleRate = c.SampleRate
	deviceConfig.PeriodSizeInFrames = c.BufferFrames

	if c.DeviceName != "" {
		infos, err := malgoCtx.Devices(malgo.Capture)
		if err != nil {
			s.releaseContext()
			return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
		}
		idx := matchDevice(deviceNames(infos), c.DeviceName)
		if idx < 0 {
			s.releaseContext()
			return nil, fmt.Errorf("%w: no device matching %q", ErrNoDevice, c.DeviceName)
		}
		deviceConfig.Capture.DeviceID = infos[idx].ID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	}
	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		s.releaseContext()
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		s.releaseContext()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}
	s.running = true

	// miniaudio exposes no portable echo cancellation or noise suppression.
	d.logger.Info().
		Uint32("sampleRate", c.SampleRate).
		Uint32("channels", c.Channels).
		Str("device", c.DeviceName).
		Bool("echoCancellation", c.EchoCancellation).
		Bool("noiseSuppression", c.NoiseSuppression).
		Msg("Capture started")

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.stopChan:
		}
	}()

	return s, nil
}

type malgoStream struct {
	device       *malgo.Device
	malgoContext *malgo.AllocatedContext
	samples      chan Sample
	errors       chan error
	stopChan     chan struct{}
	metrics      *metrics.Metrics

	mu       sync.Mutex
	running  bool
	stopping bool
}

func (s *malgoStream) onData(_, input []byte, frames uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	data := make([]byte, len(input))
	copy(data, input)

	select {
	case s.samples <- Sample{Data: data, Timestamp: time.Now(), Frames: frames}:
	default:
		s.metrics.RecordCaptureError("overflow")
	}
}

// onStop fires when the device stops, including on our own Close.
func (s *malgoStream) onStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping || !s.running {
		return
	}
	s.metrics.RecordCaptureError("device_lost")
	select {
	case s.errors <- ErrDeviceLost:
	default:
	}
}

func (s *malgoStream) Samples() <-chan Sample { return s.samples }

func (s *malgoStream) Errors() <-chan error { return s.errors }

func (s *malgoStream) Close() error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	s.mu.Unlock()

	close(s.stopChan)

	var stopErr error
	if s.device != nil {
		if err := s.device.Stop(); err != nil {
			stopErr = fmt.Errorf("failed to stop capture device: %w", err)
		}
		s.device.Uninit()
	}
	s.releaseContext()

	s.mu.Lock()
	s.running = false
	close(s.samples)
	close(s.errors)
	s.mu.Unlock()
	return stopErr
}

func (s *malgoStream) releaseContext() {
	if s.malgoContext != nil {
		s.malgoContext.Uninit()
		s.malgoContext.Free()
		s.malgoContext = nil
	}
}

func deviceNames(infos []malgo.DeviceInfo) []string {
	names := make([]string, len(infos))
	for i := range infos {
		names[i] = infos[i].Name()
	}
	return names
}

// matchDevice returns the index of the first name containing want, case-insensitively.
func matchDevice(names []string, want string) int {
	want = strings.ToLower(strings.TrimSpace(want))
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), want) {
			return i
		}
	}
	return -1
}
