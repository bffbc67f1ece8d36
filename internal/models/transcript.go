// Package models defines the data structures published for coaching events.
package models

import (
	"time"

	"speech-coach-service/internal/service/feedback"
	"speech-coach-service/internal/service/stt"
)

// Event type names, also used as Kafka topic defaults.
const (
	EventTypeFragment = "coach.transcript.fragment"
	EventTypeFeedback = "coach.feedback"
)

// TranscriptFragment represents a recognized fragment, interim or final.
type TranscriptFragment struct {
	EventType  string  `json:"eventType"`
	SessionID  string  `json:"sessionId"`
	Principal  string  `json:"principal"`
	Timestamp  int64   `json:"timestamp"`
	Text       string  `json:"text"`
	Final      bool    `json:"final"`
	Confidence float64 `json:"confidence"`
	WordCount  int     `json:"wordCount"`
}

// Feedback represents one coaching feedback event for an analyzed segment.
type Feedback struct {
	EventType  string   `json:"eventType"`
	SessionID  string   `json:"sessionId"`
	Principal  string   `json:"principal"`
	Timestamp  int64    `json:"timestamp"`
	FeedbackID string   `json:"feedbackId"`
	SegmentID  string   `json:"segmentId"`
	Content    string   `json:"content"`
	Type       string   `json:"type"`
	Category   string   `json:"category"`
	WordCount  int      `json:"wordCount"`
	Rate       float64  `json:"rate"`
	Fillers    []string `json:"fillers"`
	Pace       string   `json:"pace,omitempty"`
}

// NewTranscriptFragment builds the payload for f.
func NewTranscriptFragment(sessionId, principal string, f stt.Fragment) TranscriptFragment {
	return TranscriptFragment{
		EventType:  EventTypeFragment,
		SessionID:  sessionId,
		Principal:  principal,
		Timestamp:  unixMilli(f.Timestamp),
		Text:       f.Text,
		Final:      f.Final,
		Confidence: f.Confidence,
		WordCount:  feedback.WordCount(f.Text),
	}
}

// NewFeedback builds the payload for ev.
func NewFeedback(principal string, ev feedback.Event) Feedback {
	fillers := ev.Signals.Fillers
	if fillers == nil {
		fillers = []string{}
	}
	return Feedback{
		EventType:  EventTypeFeedback,
		SessionID:  ev.SessionID,
		Principal:  principal,
		Timestamp:  unixMilli(ev.CreatedAt),
		FeedbackID: ev.ID,
		SegmentID:  ev.SegmentID,
		Content:    ev.Content,
		Type:       string(ev.Type),
		Category:   string(ev.Category),
		WordCount:  ev.Signals.WordCount,
		Rate:       ev.Signals.Rate,
		Fillers:    fillers,
		Pace:       string(ev.Signals.Pace),
	}
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
