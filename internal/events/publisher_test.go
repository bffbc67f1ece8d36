package events

import (
	"context"
	"testing"

	"speech-coach-service/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerTranscript != nil {
				t.Error("expected nil transcript writer when disabled")
			}
			if p.writerFeedback != nil {
				t.Error("expected nil feedback writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:         false,
		Brokers:         []string{"localhost:9092"},
		TopicTranscript: "test.transcript",
		TopicFeedback:   "test.feedback",
		Principal:       "test-principal",
	}

	p := New(cfg)

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicTranscript != "test.transcript" {
		t.Errorf("expected transcript topic 'test.transcript', got %s", p.topicTranscript)
	}
	if p.topicFeedback != "test.feedback" {
		t.Errorf("expected feedback topic 'test.feedback', got %s", p.topicFeedback)
	}
}

func TestNew_DefaultTopics(t *testing.T) {
	p := New(&Config{})

	if p.topicTranscript != models.EventTypeFragment {
		t.Errorf("expected default transcript topic, got %s", p.topicTranscript)
	}
	if p.topicFeedback != models.EventTypeFeedback {
		t.Errorf("expected default feedback topic, got %s", p.topicFeedback)
	}
}

func TestNew_EnabledCreatesWriters(t *testing.T) {
	p := New(&Config{Enabled: true, Brokers: []string{"localhost:9092"}, TopicTranscript: "t", TopicFeedback: "f"})
	defer p.Close()

	if !p.enabled {
		t.Fatal("expected publisher to be enabled")
	}
	if p.writerTranscript == nil || p.writerTranscript.Topic != "t" {
		t.Error("expected transcript writer on topic t")
	}
	if p.writerFeedback == nil || p.writerFeedback.Topic != "f" {
		t.Error("expected feedback writer on topic f")
	}
}

func TestPublisher_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, Principal: "test-svc"})

	err := p.PublishTranscript(context.Background(), "sess-1", models.TranscriptFragment{
		EventType: models.EventTypeFragment,
		SessionID: "sess-1",
		Text:      "hello world",
		Final:     true,
	})
	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}

	err = p.PublishFeedback(context.Background(), "sess-1", models.Feedback{
		EventType: models.EventTypeFeedback,
		SessionID: "sess-1",
		Content:   "Great pacing!",
	})
	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	// Channels cannot be marshalled
	err := p.publish(context.Background(), nil, "test", "test", "key", make(chan int))
	if err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}

	bare := &Publisher{}
	if err := bare.Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}
