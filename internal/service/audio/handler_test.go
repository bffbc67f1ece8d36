package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"speech-coach-service/internal/observability/metrics"
	"speech-coach-service/internal/service/capture"
	"speech-coach-service/internal/service/stt"
)

// testAdapter implements stt.Adapter for testing
type testAdapter struct {
	mu      sync.Mutex
	started bool
	closed  bool
	audio   [][]byte
	sendErr error
	cb      stt.Callback
}

func (m *testAdapter) Start(ctx context.Context, cb stt.Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	m.cb = cb
	return nil
}

func (m *testAdapter) SendAudio(ctx context.Context, audio []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.audio = append(m.audio, audio)
	return nil
}

func (m *testAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type testSink struct {
	mu         sync.Mutex
	fragments  []stt.Fragment
	recErrs    []error
	captureErr []error
}

func (s *testSink) Fragment(f stt.Fragment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fragments = append(s.fragments, f)
}

func (s *testSink) RecognizerFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recErrs = append(s.recErrs, err)
}

func (s *testSink) CaptureLost(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureErr = append(s.captureErr, err)
}

type testStream struct {
	samples chan capture.Sample
	errors  chan error
}

func newTestStream() *testStream {
	return &testStream{samples: make(chan capture.Sample, 8), errors: make(chan error, 1)}
}

func (s *testStream) Samples() <-chan capture.Sample { return s.samples }
func (s *testStream) Errors() <-chan error           { return s.errors }
func (s *testStream) Close() error                   { return nil }

func newTestHandler(adapter stt.Adapter, sink Sink) *Handler {
	return NewHandler(adapter, sink, "sess-1", clock.NewMock(), metrics.NewMetrics(prometheus.NewRegistry()))
}

func TestHandler_StartRegistersCallback(t *testing.T) {
	adapter := &testAdapter{}
	h := newTestHandler(adapter, &testSink{})

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !adapter.started || adapter.cb != h {
		t.Error("expected adapter started with the handler as callback")
	}
	h.Close()
	if !adapter.closed {
		t.Error("expected adapter closed")
	}
}

func TestHandler_FragmentsReachSink(t *testing.T) {
	sink := &testSink{}
	h := newTestHandler(&testAdapter{}, sink)

	h.OnPartial("good mor")
	h.OnFinal("good morning everyone", 0.9)
	h.OnFinal("   ", 0.5)
	h.OnPartial("")

	if len(sink.fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(sink.fragments))
	}
	if sink.fragments[0].Final || sink.fragments[0].Text != "good mor" {
		t.Errorf("expected interim 'good mor', got %+v", sink.fragments[0])
	}
	if !sink.fragments[1].Final || sink.fragments[1].Confidence != 0.9 {
		t.Errorf("expected final with confidence 0.9, got %+v", sink.fragments[1])
	}

	stats := h.Stats()
	if stats.Partials != 1 || stats.Finals != 1 || stats.Blank != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHandler_OnErrorReportedOnce(t *testing.T) {
	sink := &testSink{}
	h := newTestHandler(&testAdapter{}, sink)

	h.OnError(errors.New("stream reset"))
	h.OnError(errors.New("stream reset again"))

	if len(sink.recErrs) != 1 {
		t.Errorf("expected 1 recognizer error, got %d", len(sink.recErrs))
	}
}

func TestHandler_PumpForwardsAudio(t *testing.T) {
	adapter := &testAdapter{}
	h := newTestHandler(adapter, &testSink{})
	stream := newTestStream()

	stream.samples <- capture.Sample{Data: make([]byte, 960)}
	stream.samples <- capture.Sample{Data: make([]byte, 480)}
	close(stream.samples)

	h.Pump(context.Background(), stream)

	if len(adapter.audio) != 2 {
		t.Fatalf("expected 2 audio chunks, got %d", len(adapter.audio))
	}
	if h.Stats().AudioBytes != 1440 {
		t.Errorf("expected 1440 bytes, got %d", h.Stats().AudioBytes)
	}
}

func TestHandler_PumpReportsCaptureLoss(t *testing.T) {
	sink := &testSink{}
	h := newTestHandler(&testAdapter{}, sink)
	stream := newTestStream()

	lost := errors.New("device unplugged")
	stream.errors <- lost

	done := make(chan struct{})
	go func() {
		h.Pump(context.Background(), stream)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected pump to stop on capture loss")
	}
	if len(sink.captureErr) != 1 || !errors.Is(sink.captureErr[0], lost) {
		t.Errorf("expected capture loss reported, got %v", sink.captureErr)
	}
}

func TestHandler_PumpStopsOnSendError(t *testing.T) {
	adapter := &testAdapter{sendErr: errors.New("stream closed")}
	h := newTestHandler(adapter, &testSink{})
	stream := newTestStream()
	stream.samples <- capture.Sample{Data: make([]byte, 10)}

	done := make(chan struct{})
	go func() {
		h.Pump(context.Background(), stream)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected pump to stop when the recognizer rejects audio")
	}
	if h.Stats().AudioBytes != 0 {
		t.Errorf("expected no bytes counted, got %d", h.Stats().AudioBytes)
	}
}

func TestHandler_PumpStopsOnContextCancel(t *testing.T) {
	h := newTestHandler(&testAdapter{}, &testSink{})
	stream := newTestStream()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Pump(ctx, stream)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected pump to stop on cancel")
	}
}
