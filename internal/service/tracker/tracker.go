// Package tracker aggregates a coaching session into the state a presenter view needs:
// the running transcript, the last few feedback items and simple speech metrics.
package tracker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"speech-coach-service/internal/service/coach"
	"speech-coach-service/internal/service/feedback"
)

// WindowSize is how many feedback items are kept, newest last.
const WindowSize = 5

// Engine is what the tracker drives. *coach.Engine implements it.
type Engine interface {
	StartListening(ctx context.Context) error
	StopListening()
	IsListening() bool
	Subscribe(l coach.Listener) (unsubscribe func())
}

// Clarity is the coarse clarity verdict.
type Clarity string

const (
	ClarityGood      Clarity = "Good"
	ClarityExcellent Clarity = "Excellent"
)

// Pace is the displayed average pace.
type Pace string

const (
	PaceNormal Pace = "Normal"
	PaceFast   Pace = "Fast"
	PaceSlow   Pace = "Slow"
	PaceGood   Pace = "Good"
)

// SpeechMetrics are the running counters for a session.
type SpeechMetrics struct {
	TotalWords          int     `json:"totalWords"`
	FillerWordsDetected int     `json:"fillerWordsDetected"`
	AveragePace         Pace    `json:"averagePace"`
	ClarityScore        Clarity `json:"clarityScore"`
}

func initialMetrics() SpeechMetrics {
	return SpeechMetrics{AveragePace: PaceNormal, ClarityScore: ClarityGood}
}

// Item is a feedback event as shown in the window.
type Item struct {
	ID         string         `json:"id"`
	Feedback   feedback.Event `json:"feedback"`
	ReceivedAt time.Time      `json:"receivedAt"`
}

// State is a point-in-time copy of the tracker.
type State struct {
	Listening  bool          `json:"listening"`
	Transcript string        `json:"transcript"`
	Recent     []Item        `json:"recent"`
	Metrics    SpeechMetrics `json:"metrics"`
	StartedAt  time.Time     `json:"startedAt,omitempty"`
	StoppedAt  time.Time     `json:"stoppedAt,omitempty"`

	// Tallies count every feedback event of the session, including evicted ones.
	Tallies map[feedback.Category]int `json:"tallies"`
	Total   int                       `json:"totalFeedback"`
	LastErr string                    `json:"lastError,omitempty"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock for item timestamps.
func WithClock(c clock.Clock) Option { return func(t *Tracker) { t.clock = c } }

// Tracker subscribes to an engine and folds its events into State.
type Tracker struct {
	engine      Engine
	clock       clock.Clock
	unsubscribe func()

	mu         sync.RWMutex
	listening  bool
	transcript strings.Builder
	recent     []Item
	metrics    SpeechMetrics
	tallies    map[feedback.Category]int
	total      int
	startedAt  time.Time
	stoppedAt  time.Time
	lastErr    string

	subMu       sync.Mutex
	subscribers map[int]chan State
	nextSub     int
	closed      bool
}

// New creates a tracker bound to engine.
func New(engine Engine, opts ...Option) *Tracker {
	t := &Tracker{
		engine:      engine,
		clock:       clock.New(),
		metrics:     initialMetrics(),
		tallies:     map[feedback.Category]int{},
		subscribers: map[int]chan State{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.unsubscribe = engine.Subscribe(t)
	return t
}

// Close detaches the tracker from the engine and closes every watch channel. Later
// Watch calls get a closed channel.
func (t *Tracker) Close() {
	t.unsubscribe()

	t.subMu.Lock()
	defer t.subMu.Unlock()
	t.closed = true
	for id, ch := range t.subscribers {
		delete(t.subscribers, id)
		close(ch)
	}
}

// StartListening starts the engine. On success the session state is reset; on failure it
// is left untouched and the error is returned.
func (t *Tracker) StartListening(ctx context.Context) error {
	if err := t.engine.StartListening(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	t.listening = true
	t.transcript.Reset()
	t.recent = nil
	t.metrics = initialMetrics()
	t.tallies = map[feedback.Category]int{}
	t.total = 0
	t.startedAt = t.clock.Now()
	t.stoppedAt = time.Time{}
	t.lastErr = ""
	t.mu.Unlock()
	t.publish()
	return nil
}

// StopListening stops the engine and keeps what was accumulated.
func (t *Tracker) StopListening() {
	t.engine.StopListening()

	t.mu.Lock()
	if t.listening {
		t.stoppedAt = t.clock.Now()
	}
	t.listening = false
	t.mu.Unlock()
	t.publish()
}

// IsListening reports the tracker's view of the session.
func (t *Tracker) IsListening() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.listening
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() State {
	recent := make([]Item, len(t.recent))
	copy(recent, t.recent)
	tallies := make(map[feedback.Category]int, len(t.tallies))
	for k, v := range t.tallies {
		tallies[k] = v
	}
	return State{
		Listening:  t.listening,
		Transcript: t.transcript.String(),
		Recent:     recent,
		Metrics:    t.metrics,
		StartedAt:  t.startedAt,
		StoppedAt:  t.stoppedAt,
		Tallies:    tallies,
		Total:      t.total,
		LastErr:    t.lastErr,
	}
}

// Watch returns a channel of state updates. Slow readers miss intermediate states; the
// channel always receives the latest one. Call cancel to stop.
func (t *Tracker) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)
	t.subMu.Lock()
	if t.closed {
		t.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	t.nextSub++
	id := t.nextSub
	ch <- t.Snapshot()
	t.subscribers[id] = ch
	t.subMu.Unlock()

	return ch, func() {
		t.subMu.Lock()
		defer t.subMu.Unlock()
		if c, ok := t.subscribers[id]; ok {
			delete(t.subscribers, id)
			close(c)
		}
	}
}

func (t *Tracker) publish() {
	s := t.Snapshot()
	t.subMu.Lock()
	defer t.subMu.Unlock()
	for _, ch := range t.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// --- coach.Listener implementation ---

// OnTranscript appends final fragment text and counts its words. Interim fragments are
// superseded by their final and are not counted.
func (t *Tracker) OnTranscript(f coach.Fragment) {
	if !f.Final {
		return
	}
	t.mu.Lock()
	if t.transcript.Len() > 0 {
		t.transcript.WriteByte(' ')
	}
	t.transcript.WriteString(f.Text)
	t.metrics.TotalWords += feedback.WordCount(f.Text)
	t.mu.Unlock()
	t.publish()
}

// OnFeedback adds the event to the window and updates metrics.
func (t *Tracker) OnFeedback(ev feedback.Event) {
	t.mu.Lock()
	id := ev.ID
	if id == "" {
		id = uuid.NewString()
	}
	t.recent = append(t.recent, Item{ID: id, Feedback: ev, ReceivedAt: t.clock.Now()})
	if len(t.recent) > WindowSize {
		t.recent = t.recent[len(t.recent)-WindowSize:]
	}
	t.tallies[ev.Category]++
	t.total++

	switch ev.Category {
	case feedback.CategoryFiller:
		t.metrics.FillerWordsDetected++
	case feedback.CategoryPace:
		switch ev.Signals.Pace {
		case feedback.PaceFast:
			t.metrics.AveragePace = PaceFast
		case feedback.PaceSlow:
			t.metrics.AveragePace = PaceSlow
		default:
			t.metrics.AveragePace = PaceGood
		}
	case feedback.CategoryClarity:
		if ev.Type == feedback.TypeSuccess {
			t.metrics.ClarityScore = ClarityExcellent
		} else {
			t.metrics.ClarityScore = ClarityGood
		}
	}
	t.mu.Unlock()
	t.publish()
}

// OnError marks the session as no longer listening. Nothing is retried.
func (t *Tracker) OnError(err error) {
	t.mu.Lock()
	t.listening = false
	t.lastErr = err.Error()
	if t.stoppedAt.IsZero() && !t.startedAt.IsZero() {
		t.stoppedAt = t.clock.Now()
	}
	t.mu.Unlock()
	t.publish()
}
