// Package events publishes coaching events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"speech-coach-service/internal/models"
	"speech-coach-service/internal/observability/metrics"
)

// Publisher publishes transcript fragments and feedback to separate Kafka topics. With Kafka
// disabled it only logs.
type Publisher struct {
	writerTranscript *kafka.Writer
	writerFeedback   *kafka.Writer
	principal        string
	topicTranscript  string
	topicFeedback    string
	enabled          bool
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicTranscript string
	TopicFeedback   string
	Principal       string
	Enabled         bool
}

// New creates a publisher. A nil or disabled config, or one without brokers, yields a
// log-only publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			topicTranscript: models.EventTypeFragment,
			topicFeedback:   models.EventTypeFeedback,
			metrics:         m,
		}
	}

	p := &Publisher{
		principal:       cfg.Principal,
		topicTranscript: cfg.TopicTranscript,
		topicFeedback:   cfg.TopicFeedback,
		metrics:         m,
	}
	if p.topicTranscript == "" {
		p.topicTranscript = models.EventTypeFragment
	}
	if p.topicFeedback == "" {
		p.topicFeedback = models.EventTypeFeedback
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	p.writerTranscript = newWriter(cfg.Brokers, p.topicTranscript, transport)
	p.writerFeedback = newWriter(cfg.Brokers, p.topicFeedback, transport)
	p.enabled = true

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscript", p.topicTranscript).
		Str("topicFeedback", p.topicFeedback).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// PublishTranscript publishes a transcript fragment keyed by session.
func (p *Publisher) PublishTranscript(ctx context.Context, key string, event models.TranscriptFragment) error {
	return p.publish(ctx, p.writerTranscript, p.topicTranscript, event.EventType, key, event)
}

// PublishFeedback publishes a feedback event keyed by session.
func (p *Publisher) PublishFeedback(ctx context.Context, key string, event models.Feedback) error {
	return p.publish(ctx, p.writerFeedback, p.topicFeedback, event.EventType, key, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	// Keyed by session so a session's events stay ordered within one partition.
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var errs []error
	if p.writerTranscript != nil {
		if err := p.writerTranscript.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing transcript writer")
			errs = append(errs, err)
		}
	}
	if p.writerFeedback != nil {
		if err := p.writerFeedback.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing feedback writer")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
