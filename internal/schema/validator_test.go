package schema

import (
	"errors"
	"testing"
	"time"

	"speech-coach-service/internal/models"
	"speech-coach-service/internal/service/feedback"
	"speech-coach-service/internal/service/stt"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v
}

func validFeedback() feedback.Event {
	return feedback.Event{
		ID:        "fb-1",
		SessionID: "sess-1",
		SegmentID: "sess-1-seg-1",
		Content:   "Great pacing!",
		Type:      feedback.TypeSuccess,
		Category:  feedback.CategoryPace,
		Signals:   feedback.Signals{WordCount: 12, Rate: 2.4, Pace: feedback.PaceGood},
		CreatedAt: time.Now(),
	}
}

func TestValidator_Fragment(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name    string
		event   models.TranscriptFragment
		wantErr bool
	}{
		{"valid", models.NewTranscriptFragment("sess-1", "svc", stt.Fragment{Text: "hello there", Final: true, Confidence: 0.95, Timestamp: time.Now()}), false},
		{"empty text", models.NewTranscriptFragment("sess-1", "svc", stt.Fragment{Text: "", Final: true, Confidence: 0.9}), true},
		{"missing session", models.NewTranscriptFragment("", "svc", stt.Fragment{Text: "hi", Confidence: 0.9}), true},
		{"confidence out of range", models.NewTranscriptFragment("sess-1", "svc", stt.Fragment{Text: "hi", Confidence: 1.5}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.event)
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidator_Feedback(t *testing.T) {
	v := newValidator(t)

	valid := validFeedback()
	badType := validFeedback()
	badType.Type = "praise"
	noSegment := validFeedback()
	noSegment.SegmentID = ""
	badPace := validFeedback()
	badPace.Signals.Pace = "Medium"

	tests := []struct {
		name    string
		event   feedback.Event
		wantErr bool
	}{
		{"valid", valid, false},
		{"unknown type", badType, true},
		{"missing segment", noSegment, true},
		{"unknown pace", badPace, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(models.NewFeedback("svc", tt.event))
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidator_UnknownEventType(t *testing.T) {
	v := newValidator(t)

	err := v.Validate(map[string]string{"eventType": "interaction.transcript.partial"})
	if !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestValidator_Unmarshalable(t *testing.T) {
	v := newValidator(t)

	if err := v.Validate(make(chan int)); err == nil {
		t.Error("expected error for unmarshalable event")
	}
	if err := v.Validate([]string{"not", "an", "object"}); err == nil {
		t.Error("expected error for non-object event")
	}
}
