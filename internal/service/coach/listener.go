package coach

import (
	"speech-coach-service/internal/service/feedback"
	"speech-coach-service/internal/service/stt"
)

// Fragment is a recognized piece of speech as seen by listeners.
type Fragment = stt.Fragment

// Listener observes a coaching session. Callbacks run on the session goroutine, in
// order; they must return promptly and must not call StopListening or StartListening.
type Listener interface {
	OnTranscript(f Fragment)
	OnFeedback(ev feedback.Event)
	OnError(err error)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Transcript func(Fragment)
	Feedback   func(feedback.Event)
	Error      func(error)
}

func (l ListenerFuncs) OnTranscript(f Fragment) {
	if l.Transcript != nil {
		l.Transcript(f)
	}
}

func (l ListenerFuncs) OnFeedback(ev feedback.Event) {
	if l.Feedback != nil {
		l.Feedback(ev)
	}
}

func (l ListenerFuncs) OnError(err error) {
	if l.Error != nil {
		l.Error(err)
	}
}

type registration struct {
	id int
	l  Listener
}

// Subscribe registers l for all events and returns a func that removes it.
func (e *Engine) Subscribe(l Listener) (unsubscribe func()) {
	e.lmu.Lock()
	e.nextListener++
	id := e.nextListener
	e.listeners = append(e.listeners, registration{id: id, l: l})
	e.lmu.Unlock()

	return func() {
		e.lmu.Lock()
		defer e.lmu.Unlock()
		for i, r := range e.listeners {
			if r.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// OnTranscript registers a transcript callback.
func (e *Engine) OnTranscript(fn func(Fragment)) (unsubscribe func()) {
	return e.Subscribe(ListenerFuncs{Transcript: fn})
}

// OnFeedback registers a feedback callback.
func (e *Engine) OnFeedback(fn func(feedback.Event)) (unsubscribe func()) {
	return e.Subscribe(ListenerFuncs{Feedback: fn})
}

// OnError registers an error callback.
func (e *Engine) OnError(fn func(error)) (unsubscribe func()) {
	return e.Subscribe(ListenerFuncs{Error: fn})
}

func (e *Engine) snapshotListeners() []Listener {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	out := make([]Listener, len(e.listeners))
	for i, r := range e.listeners {
		out[i] = r.l
	}
	return out
}

func (e *Engine) emitTranscript(f Fragment) {
	for _, l := range e.snapshotListeners() {
		l.OnTranscript(f)
	}
}

func (e *Engine) emitFeedback(ev feedback.Event) {
	for _, l := range e.snapshotListeners() {
		l.OnFeedback(ev)
	}
}

func (e *Engine) emitError(err error) {
	for _, l := range e.snapshotListeners() {
		l.OnError(err)
	}
}
