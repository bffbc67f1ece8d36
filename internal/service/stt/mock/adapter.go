// Package mock provides a simulated recognizer that speaks a scripted presentation.
// It needs no audio and no cloud credentials: phrases are emitted as final transcripts
// on a randomized schedule that mimics natural pauses between sentences.
package mock

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"speech-coach-service/internal/service/stt"
)

// DefaultPhrases is the scripted talk. Several lines carry filler words on purpose.
var DefaultPhrases = []string{
	"Good morning everyone",
	"Today I want to talk about, um, digital transformation",
	"So, like, the main point is that technology is changing rapidly",
	"You know, we need to adapt our business processes accordingly",
	"The data shows significant improvements in efficiency",
	"Uh, let me explain the methodology we used",
	"As you can see from this chart",
	"Moving forward, we should focus on implementation",
	"Thank you for your attention",
}

const (
	defaultInitialDelay = 1 * time.Second
	defaultMinGap       = 2 * time.Second
	defaultMaxGap       = 5 * time.Second
	defaultConfidence   = 0.95
)

// ErrAlreadyStarted is returned by Start on a running adapter.
var ErrAlreadyStarted = errors.New("simulated recognizer already started")

// Option configures the simulator.
type Option func(*Adapter)

// WithClock sets the clock driving the schedule.
func WithClock(c clock.Clock) Option {
	return func(a *Adapter) { a.clock = c }
}

// WithRand sets the source for inter-phrase gaps.
func WithRand(rng *rand.Rand) Option {
	return func(a *Adapter) { a.rng = rng }
}

// WithPhrases replaces the scripted talk.
func WithPhrases(phrases []string) Option {
	return func(a *Adapter) { a.phrases = phrases }
}

// WithSchedule sets the delay before the first phrase and the range of gaps after it.
func WithSchedule(initial, minGap, maxGap time.Duration) Option {
	return func(a *Adapter) {
		a.initialDelay = initial
		a.minGap = minGap
		a.maxGap = maxGap
	}
}

// Adapter implements stt.Adapter by replaying phrases as final transcripts.
// The script plays once; the adapter then stays idle until closed.
type Adapter struct {
	clock        clock.Clock
	rng          *rand.Rand
	phrases      []string
	initialDelay time.Duration
	minGap       time.Duration
	maxGap       time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	closed  bool

	audioBytes atomic.Int64
	emitted    atomic.Int32
}

// New creates a simulated recognizer.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		clock:        clock.New(),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		phrases:      DefaultPhrases,
		initialDelay: defaultInitialDelay,
		minGap:       defaultMinGap,
		maxGap:       defaultMaxGap,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start begins replaying the script.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return ErrAlreadyStarted
	}
	a.started = true

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.run(runCtx, cb)
	return nil
}

func (a *Adapter) run(ctx context.Context, cb stt.Callback) {
	defer close(a.done)

	delay := a.initialDelay
	for _, phrase := range a.phrases {
		timer := a.clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		cb.OnFinal(phrase, defaultConfidence)
		a.emitted.Add(1)
		delay = a.nextGap()
	}
}

func (a *Adapter) nextGap() time.Duration {
	span := a.maxGap - a.minGap
	if span <= 0 {
		return a.minGap
	}
	return a.minGap + time.Duration(a.rng.Int63n(int64(span)))
}

// SendAudio accepts and discards audio. The script does not depend on it.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.audioBytes.Add(int64(len(audio)))
	return nil
}

// Close stops the script. Phrases not yet emitted are discarded.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed || !a.started {
		a.closed = true
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	cancel, done := a.cancel, a.done
	a.mu.Unlock()

	cancel()
	<-done
	return nil
}

// AudioBytes returns how much audio has been forwarded to the simulator.
func (a *Adapter) AudioBytes() int64 {
	return a.audioBytes.Load()
}

// Emitted returns how many phrases have been delivered.
func (a *Adapter) Emitted() int {
	return int(a.emitted.Load())
}
