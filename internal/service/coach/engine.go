// Package coach implements the buffering engine: it captures speech, buffers final
// transcript fragments, decides when to flush them and delivers one feedback event per
// flushed segment to its listeners.
package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/observability/metrics"
	"speech-coach-service/internal/service/audio"
	"speech-coach-service/internal/service/capture"
	"speech-coach-service/internal/service/feedback"
	"speech-coach-service/internal/service/segment"
	"speech-coach-service/internal/service/stt"
)

const (
	defaultTickInterval    = 250 * time.Millisecond
	defaultAnalysisTimeout = 10 * time.Second
)

// ErrCaptureUnavailable wraps failures to open the microphone.
var ErrCaptureUnavailable = errors.New("failed to access microphone")

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy overrides the flush policy.
func WithPolicy(p Policy) Option { return func(e *Engine) { e.policy = p } }

// WithClock sets the clock used for timeouts and timestamps.
func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithConstraints overrides the capture constraints.
func WithConstraints(c capture.Constraints) Option { return func(e *Engine) { e.constraints = c } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithAnalysisTimeout bounds each analyzer call.
func WithAnalysisTimeout(d time.Duration) Option { return func(e *Engine) { e.analysisTimeout = d } }

// WithTickInterval sets how often the timeout trigger is re-evaluated.
func WithTickInterval(d time.Duration) Option { return func(e *Engine) { e.tickInterval = d } }

// WithSegmentGenerator shares a segment ID generator across engines.
func WithSegmentGenerator(g *segment.Generator) Option { return func(e *Engine) { e.segments = g } }

// Engine runs at most one coaching session at a time.
type Engine struct {
	device      capture.Device
	recognizers stt.Factory
	analyzer    feedback.Analyzer

	policy          Policy
	clock           clock.Clock
	constraints     capture.Constraints
	metrics         *metrics.Metrics
	analysisTimeout time.Duration
	tickInterval    time.Duration
	segments        *segment.Generator
	logger          zerolog.Logger

	// ctl serializes StartListening and StopListening.
	ctl     sync.Mutex
	mu      sync.Mutex
	session *session
	last    *session

	lmu          sync.Mutex
	listeners    []registration
	nextListener int
}

// New creates an engine. Nothing is opened until StartListening.
func New(device capture.Device, recognizers stt.Factory, analyzer feedback.Analyzer, opts ...Option) *Engine {
	e := &Engine{
		device:          device,
		recognizers:     recognizers,
		analyzer:        analyzer,
		policy:          DefaultPolicy(),
		clock:           clock.New(),
		constraints:     capture.DefaultConstraints(),
		analysisTimeout: defaultAnalysisTimeout,
		tickInterval:    defaultTickInterval,
		logger:          logging.WithComponent("coach"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.DefaultMetrics
	}
	if e.segments == nil {
		e.segments = segment.New()
	}
	return e
}

// Policy returns the flush policy in use.
func (e *Engine) Policy() Policy { return e.policy }

// IsListening reports whether a session is active.
func (e *Engine) IsListening() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// SessionID returns the active session's ID, or "" when inactive.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return ""
	}
	return e.session.id
}

// StartListening opens the microphone and recognizer and starts a new session. If a
// session is already active it is stopped first. On failure the error listeners are
// notified, the error is returned and the engine stays inactive.
func (e *Engine) StartListening(ctx context.Context) error {
	e.ctl.Lock()
	defer e.ctl.Unlock()

	if e.stop() {
		e.logger.Info().Msg("Restarting active session")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	id := uuid.NewString()
	logger := logging.WithSession("coach", id)
	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	stream, err := e.device.Open(sessCtx, e.constraints)
	if err != nil {
		cancel()
		err = fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
		logger.Error().Err(err).Msg("Failed to open capture device")
		e.metrics.RecordSessionFailed("capture")
		e.emitError(err)
		return err
	}

	recognizer, err := e.recognizers(sessCtx)
	if err != nil {
		stream.Close()
		cancel()
		err = fmt.Errorf("failed to create recognizer: %w", err)
		logger.Error().Err(err).Msg("Failed to create recognizer")
		e.metrics.RecordSessionFailed("recognizer")
		e.emitError(err)
		return err
	}

	s := &session{
		id:        id,
		ctx:       sessCtx,
		cancel:    cancel,
		stream:    stream,
		fragments: make(chan Fragment, 64),
		failures:  make(chan failure, 2),
		stop:      make(chan struct{}),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		pumpDone:  make(chan struct{}),
		startedAt: e.clock.Now(),
		logger:    logger,
	}
	s.handler = audio.NewHandler(recognizer, s, id, e.clock, e.metrics)

	if err := s.handler.Start(sessCtx); err != nil {
		recognizer.Close()
		stream.Close()
		cancel()
		err = fmt.Errorf("failed to start recognizer: %w", err)
		logger.Error().Err(err).Msg("Failed to start recognizer")
		e.metrics.RecordSessionFailed("recognizer")
		e.emitError(err)
		return err
	}

	// Armed before the loop starts so a mocked clock cannot advance past it.
	s.ticker = e.clock.Ticker(e.tickInterval)
	s.lastFlush = s.startedAt

	e.mu.Lock()
	e.session = s
	e.last = s
	e.mu.Unlock()

	go func() {
		defer close(s.pumpDone)
		s.handler.Pump(sessCtx, stream)
	}()
	go e.run(s)

	e.metrics.RecordSessionStart()
	logger.Info().
		Int("minWords", e.policy.MinWords).
		Int("maxWords", e.policy.MaxWords).
		Dur("timeout", e.policy.Timeout).
		Str("analyzer", feedback.Name(e.analyzer)).
		Msg("Listening started")
	return nil
}

// StopListening ends the active session. Buffered text is flushed and every queued
// segment's feedback is delivered before it returns. Safe to call when inactive.
func (e *Engine) StopListening() {
	e.ctl.Lock()
	defer e.ctl.Unlock()
	e.stop()
}

// stop ends the active session and reports whether there was one.
func (e *Engine) stop() bool {
	e.mu.Lock()
	s := e.session
	e.session = nil
	last := e.last
	e.mu.Unlock()

	if s == nil {
		// A session that ended on its own may still be tearing down.
		if last != nil {
			<-last.done
		}
		return false
	}
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return true
}

// detach marks s inactive if it is still the current session.
func (e *Engine) detach(s *session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == s {
		e.session = nil
	}
}

type failureKind int

const (
	failureCapture failureKind = iota
	failureRecognizer
)

type failure struct {
	kind failureKind
	err  error
}

type result struct {
	seg     Segment
	ev      feedback.Event
	err     error
	latency time.Duration
}

// session is one StartListening..StopListening span. Its loop goroutine owns the buffer.
type session struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	stream    capture.Stream
	handler   *audio.Handler
	ticker    *clock.Ticker
	fragments chan Fragment
	failures  chan failure
	stop      chan struct{}
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
	pumpDone  chan struct{}
	startedAt time.Time
	lastFlush time.Time
	logger    zerolog.Logger

	buffer  Buffer
	current *segment.Lifecycle
	pending []Segment
}

// Fragment implements audio.Sink.
func (s *session) Fragment(f stt.Fragment) {
	select {
	case s.fragments <- f:
	case <-s.quit:
	}
}

// RecognizerFailed implements audio.Sink.
func (s *session) RecognizerFailed(err error) {
	select {
	case s.failures <- failure{kind: failureRecognizer, err: err}:
	case <-s.quit:
	}
}

// CaptureLost implements audio.Sink.
func (s *session) CaptureLost(err error) {
	select {
	case s.failures <- failure{kind: failureCapture, err: err}:
	case <-s.quit:
	}
}

func (e *Engine) run(s *session) {
	defer close(s.done)

	queue := make(chan Segment)
	results := make(chan result)
	go e.analyze(s.ctx, queue, results)

	ending := false
	for !ending {
		var send chan Segment
		var next Segment
		if len(s.pending) > 0 {
			send, next = queue, s.pending[0]
		}

		select {
		case f := <-s.fragments:
			e.handleFragment(s, f)

		case <-s.ticker.C:
			e.evaluate(s)

		case send <- next:
			s.pending = s.pending[1:]

		case r := <-results:
			e.deliver(s, r)

		case f := <-s.failures:
			e.detach(s)
			if f.kind == failureCapture {
				e.metrics.RecordCaptureError("lost")
				e.emitError(fmt.Errorf("microphone capture lost: %w", f.err))
				e.flush(s, ReasonCaptureLost)
			} else {
				e.emitError(fmt.Errorf("speech recognition failed: %w", f.err))
				e.flush(s, ReasonRecognizerLost)
			}
			ending = true

		case <-s.stop:
			e.flush(s, ReasonStop)
			ending = true
		}
	}

	// Late callbacks are discarded from here on.
	close(s.quit)
	s.ticker.Stop()

	for len(s.pending) > 0 {
		select {
		case queue <- s.pending[0]:
			s.pending = s.pending[1:]
		case r := <-results:
			e.deliver(s, r)
		}
	}
	close(queue)
	for r := range results {
		e.deliver(s, r)
	}

	if err := s.stream.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to close capture stream")
	}
	if err := s.handler.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to close recognizer")
	}
	s.cancel()
	<-s.pumpDone

	e.detach(s)
	dur := e.clock.Since(s.startedAt)
	e.metrics.RecordSessionEnd(dur.Seconds())
	stats := s.handler.Stats()
	s.logger.Info().
		Dur("duration", dur).
		Int("finals", stats.Finals).
		Int("partials", stats.Partials).
		Int64("audioBytes", stats.AudioBytes).
		Msg("Listening stopped")
}

func (e *Engine) handleFragment(s *session, f Fragment) {
	e.emitTranscript(f)
	if !f.Final || strings.TrimSpace(f.Text) == "" {
		return
	}

	if s.current == nil {
		s.current = segment.NewLifecycle(e.segments.Next(s.id))
	}
	if err := s.current.Append(); err != nil {
		s.logger.Warn().Err(err).Str("segmentId", s.current.SegmentId()).Msg("Fragment rejected by segment")
		return
	}
	s.buffer.Append(f.Text)
	e.evaluate(s)
}

func (e *Engine) evaluate(s *session) {
	since := e.clock.Now().Sub(s.lastFlush)
	if r := e.policy.Decide(s.buffer.Words(), s.buffer.Last(), since); r != ReasonNone {
		e.flush(s, r)
	}
}

// flush freezes the buffer into a segment and queues it for analysis. Empty buffers are
// not flushed.
func (e *Engine) flush(s *session, reason Reason) {
	if s.buffer.Len() == 0 {
		return
	}
	now := e.clock.Now()
	lc := s.current
	if lc == nil {
		lc = segment.NewLifecycle(e.segments.Next(s.id))
	}
	logger := logging.WithSegment("coach", s.id, lc.SegmentId())
	if err := lc.Flush(); err != nil {
		logger.Warn().Err(err).Msg("Segment already left buffering")
	}

	seg := Segment{
		ID:        lc.SegmentId(),
		SessionID: s.id,
		Text:      s.buffer.Text(),
		WordCount: s.buffer.Words(),
		Reason:    reason,
		FlushedAt: now,
		lifecycle: lc,
	}
	s.buffer.Reset()
	s.current = nil
	s.lastFlush = now
	s.pending = append(s.pending, seg)

	e.metrics.RecordFlush(string(reason), seg.WordCount)
	logger.Debug().
		Str("reason", string(reason)).
		Int("words", seg.WordCount).
		Msg("Segment flushed")
}

// analyze is the single analysis worker. Segments are analyzed in flush order.
func (e *Engine) analyze(ctx context.Context, queue <-chan Segment, results chan<- result) {
	defer close(results)
	for seg := range queue {
		actx, cancel := context.WithTimeout(ctx, e.analysisTimeout)
		start := e.clock.Now()
		ev, err := e.analyzer.Analyze(actx, seg.Text)
		cancel()
		results <- result{seg: seg, ev: ev, err: err, latency: e.clock.Since(start)}
	}
}

func (e *Engine) deliver(s *session, r result) {
	name := feedback.Name(e.analyzer)
	e.metrics.RecordAnalysis(name, r.err, r.latency.Seconds())
	logger := logging.WithSegment("coach", s.id, r.seg.ID)

	if r.err == nil {
		r.err = r.ev.Validate()
	}
	if r.err != nil {
		r.seg.lifecycle.Drop()
		e.metrics.RecordSegmentDropped("analysis_failed")
		logger.Warn().Err(r.err).Str("analyzer", name).Msg("Analysis failed, segment dropped")
		return
	}
	if err := r.seg.lifecycle.Complete(); err != nil {
		logger.Warn().Err(err).Msg("Feedback for closed segment ignored")
		return
	}

	ev := r.ev
	ev.ID = uuid.NewString()
	ev.SessionID = s.id
	ev.SegmentID = r.seg.ID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = e.clock.Now()
	}

	e.metrics.RecordFeedback(string(ev.Category), string(ev.Type))
	logger.Info().
		Str("category", string(ev.Category)).
		Str("type", string(ev.Type)).
		Dur("latency", r.latency).
		Msg("Feedback delivered")
	e.emitFeedback(ev)
}
