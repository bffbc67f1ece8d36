// Package audio provides the handler that pumps captured audio into the recognizer and
// turns recognizer callbacks into transcript fragments for the coaching engine.
package audio

import (
	"context"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/observability/metrics"
	"speech-coach-service/internal/service/capture"
	"speech-coach-service/internal/service/stt"
)

// Sink receives what the handler produces. Implementations must not block for long:
// calls arrive on recognizer and capture goroutines.
type Sink interface {
	// Fragment delivers one recognized fragment, interim or final.
	Fragment(f stt.Fragment)
	// RecognizerFailed reports that the recognizer stopped with an error.
	RecognizerFailed(err error)
	// CaptureLost reports that the capture stream failed mid-session.
	CaptureLost(err error)
}

// Stats are running totals for one session.
type Stats struct {
	AudioBytes int64
	Partials   int
	Finals     int
	Blank      int
}

// Handler manages the audio and recognition side of one coaching session.
// It implements stt.Callback.
type Handler struct {
	adapter   stt.Adapter
	sink      Sink
	sessionId string
	clock     clock.Clock
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu     sync.Mutex
	stats  Stats
	failed bool
}

// NewHandler creates a handler for one session.
func NewHandler(adapter stt.Adapter, sink Sink, sessionId string, clk clock.Clock, m *metrics.Metrics) *Handler {
	if clk == nil {
		clk = clock.New()
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Handler{
		adapter:   adapter,
		sink:      sink,
		sessionId: sessionId,
		clock:     clk,
		metrics:   m,
		logger:    logging.WithSession("audio", sessionId),
	}
}

// Start begins the recognition session with this handler as the callback receiver.
func (h *Handler) Start(ctx context.Context) error {
	return h.adapter.Start(ctx, h)
}

// Pump forwards captured samples to the recognizer until the stream ends, ctx is
// cancelled or the stream reports a fatal error. It blocks.
func (h *Handler) Pump(ctx context.Context, stream capture.Stream) {
	samples, errs := stream.Samples(), stream.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			h.logger.Error().Err(err).Msg("Capture stream lost")
			h.sink.CaptureLost(err)
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			if err := h.adapter.SendAudio(ctx, sample.Data); err != nil {
				// The recognizer reports its own failure through OnError.
				h.logger.Warn().Err(err).Msg("Recognizer rejected audio, pump stopped")
				return
			}
			h.mu.Lock()
			h.stats.AudioBytes += int64(len(sample.Data))
			h.mu.Unlock()
			h.metrics.RecordAudioPumped(len(sample.Data))
		}
	}
}

// Close ends the recognition session.
func (h *Handler) Close() error {
	return h.adapter.Close()
}

// Stats returns a copy of the running totals.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// --- stt.Callback implementation ---

// OnPartial is called when an interim transcript is received.
func (h *Handler) OnPartial(text string) {
	if strings.TrimSpace(text) == "" {
		h.countBlank()
		return
	}
	h.mu.Lock()
	h.stats.Partials++
	h.mu.Unlock()
	h.metrics.RecordFragment(false, len(strings.Fields(text)))
	h.sink.Fragment(stt.Fragment{Text: text, Timestamp: h.clock.Now()})
}

// OnFinal is called when a final transcript is received.
func (h *Handler) OnFinal(text string, confidence float64) {
	if strings.TrimSpace(text) == "" {
		h.countBlank()
		return
	}
	h.mu.Lock()
	h.stats.Finals++
	h.mu.Unlock()
	h.metrics.RecordFragment(true, len(strings.Fields(text)))
	h.sink.Fragment(stt.Fragment{Text: text, Final: true, Confidence: confidence, Timestamp: h.clock.Now()})
}

// OnError is called when the recognizer fails. Reported once.
func (h *Handler) OnError(err error) {
	h.mu.Lock()
	if h.failed {
		h.mu.Unlock()
		return
	}
	h.failed = true
	h.mu.Unlock()

	h.logger.Error().Err(err).Msg("Recognizer failed")
	h.sink.RecognizerFailed(err)
}

func (h *Handler) countBlank() {
	h.mu.Lock()
	h.stats.Blank++
	h.mu.Unlock()
}
