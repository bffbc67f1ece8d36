package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"speech-coach-service/internal/models"
	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/service/feedback"
	"speech-coach-service/internal/service/stt"
)

// EventPublisher is the publishing side of a Relay. *Publisher implements it.
type EventPublisher interface {
	PublishTranscript(ctx context.Context, key string, event models.TranscriptFragment) error
	PublishFeedback(ctx context.Context, key string, event models.Feedback) error
}

// EventValidator checks payloads before they are published. *schema.Validator implements it.
type EventValidator interface {
	Validate(event any) error
}

// Relay is an engine listener that forwards fragments and feedback to a publisher. Events
// are queued so a slow broker never stalls the engine; when the queue is full new events
// are dropped with a warning.
type Relay struct {
	pub       EventPublisher
	validator EventValidator
	principal string
	sessionID func() string
	logger    zerolog.Logger

	queue chan any

	mu          sync.Mutex
	lastSession string
	dropped     int

	closeOnce sync.Once
	closed    chan struct{}
}

// NewRelay creates a relay. sessionID reports the active session for fragments, which do
// not carry one.
func NewRelay(pub EventPublisher, validator EventValidator, principal string, sessionID func() string, queueSize int) *Relay {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Relay{
		pub:       pub,
		validator: validator,
		principal: principal,
		sessionID: sessionID,
		logger:    logging.WithComponent("event-relay"),
		queue:     make(chan any, queueSize),
		closed:    make(chan struct{}),
	}
}

// Run publishes queued events until ctx is cancelled or Close is called, then drains what
// is left.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case ev := <-r.queue:
			r.publish(ctx, ev)
		case <-ctx.Done():
			r.drain(context.WithoutCancel(ctx))
			return
		case <-r.closed:
			r.drain(ctx)
			return
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	for {
		select {
		case ev := <-r.queue:
			r.publish(ctx, ev)
		default:
			return
		}
	}
}

// Close stops Run after the queue is drained.
func (r *Relay) Close() {
	r.closeOnce.Do(func() { close(r.closed) })
}

// Dropped returns how many events were discarded because the queue was full.
func (r *Relay) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Relay) publish(ctx context.Context, ev any) {
	if err := r.validator.Validate(ev); err != nil {
		r.logger.Warn().Err(err).Msg("Dropping invalid event")
		return
	}

	var err error
	switch e := ev.(type) {
	case models.TranscriptFragment:
		err = r.pub.PublishTranscript(ctx, e.SessionID, e)
	case models.Feedback:
		err = r.pub.PublishFeedback(ctx, e.SessionID, e)
	}
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to publish event")
	}
}

func (r *Relay) enqueue(ev any) {
	select {
	case r.queue <- ev:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		r.logger.Warn().Msg("Event queue full, dropping event")
	}
}

func (r *Relay) session() string {
	id := r.sessionID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if id != "" {
		r.lastSession = id
	}
	return r.lastSession
}

// OnTranscript implements coach.Listener.
func (r *Relay) OnTranscript(f stt.Fragment) {
	r.enqueue(models.NewTranscriptFragment(r.session(), r.principal, f))
}

// OnFeedback implements coach.Listener.
func (r *Relay) OnFeedback(ev feedback.Event) {
	r.enqueue(models.NewFeedback(r.principal, ev))
}

// OnError implements coach.Listener. Errors are not published.
func (r *Relay) OnError(err error) {
	r.logger.Debug().Err(err).Msg("Engine error")
}
