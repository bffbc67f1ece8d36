// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "speech_coach"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal    prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionsFailed   *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	CaptureErrors    *prometheus.CounterVec
	AudioBytesPumped prometheus.Counter

	// Transcript metrics
	FragmentsTotal *prometheus.CounterVec
	WordsTotal     prometheus.Counter

	// Segment metrics
	SegmentsFlushed  *prometheus.CounterVec
	SegmentsDropped  *prometheus.CounterVec
	SegmentWordCount prometheus.Histogram

	// Feedback metrics
	FeedbackTotal    *prometheus.CounterVec
	AnalysisLatency  *prometheus.HistogramVec
	AnalysisFailures *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// gRPC stream metrics
	StreamsActive  prometheus.Gauge
	StreamDuration prometheus.Histogram
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all Prometheus metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of listening sessions started",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active listening sessions",
		}),
		SessionsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions that failed to start or lost capture",
		}, []string{"stage"}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of listening sessions in seconds",
			Buckets:   []float64{5, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
		CaptureErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Total number of audio capture errors",
		}, []string{"kind"}),
		AudioBytesPumped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_pumped_total",
			Help:      "Total captured audio bytes forwarded to the recognizer",
		}),

		FragmentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_total",
			Help:      "Total number of transcript fragments received",
		}, []string{"kind"}),
		WordsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_total",
			Help:      "Total number of words in final transcript fragments",
		}),

		SegmentsFlushed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_flushed_total",
			Help:      "Total number of transcript buffer flushes",
		}, []string{"reason"}),
		SegmentsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_dropped_total",
			Help:      "Total number of segments dropped without feedback",
		}, []string{"reason"}),
		SegmentWordCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segment_words",
			Help:      "Number of words per flushed segment",
			Buckets:   []float64{5, 10, 15, 20, 25, 30, 40, 60},
		}),

		FeedbackTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_total",
			Help:      "Total number of feedback events emitted",
		}, []string{"category", "type"}),
		AnalysisLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_latency_seconds",
			Help:      "Segment analysis latency in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"analyzer"}),
		AnalysisFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_failures_total",
			Help:      "Total number of failed segment analyses",
		}, []string{"analyzer"}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		StreamsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grpc_streams_active",
			Help:      "Number of currently active gRPC streams",
		}),
		StreamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_stream_duration_seconds",
			Help:      "Duration of gRPC streams in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
	}
}

// RecordSessionStart records a session entering the active state.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session leaving the active state.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionFailed records a session failure at the given stage.
func (m *Metrics) RecordSessionFailed(stage string) {
	m.SessionsFailed.WithLabelValues(stage).Inc()
}

// RecordCaptureError records an audio capture error.
func (m *Metrics) RecordCaptureError(kind string) {
	m.CaptureErrors.WithLabelValues(kind).Inc()
}

// RecordAudioPumped records audio bytes forwarded to the recognizer.
func (m *Metrics) RecordAudioPumped(bytes int) {
	m.AudioBytesPumped.Add(float64(bytes))
}

// RecordFragment records a transcript fragment and its word count.
func (m *Metrics) RecordFragment(final bool, words int) {
	if !final {
		m.FragmentsTotal.WithLabelValues("interim").Inc()
		return
	}
	m.FragmentsTotal.WithLabelValues("final").Inc()
	m.WordsTotal.Add(float64(words))
}

// RecordFlush records a buffer flush.
func (m *Metrics) RecordFlush(reason string, words int) {
	m.SegmentsFlushed.WithLabelValues(reason).Inc()
	m.SegmentWordCount.Observe(float64(words))
}

// RecordSegmentDropped records a segment dropped without feedback.
func (m *Metrics) RecordSegmentDropped(reason string) {
	m.SegmentsDropped.WithLabelValues(reason).Inc()
}

// RecordFeedback records an emitted feedback event.
func (m *Metrics) RecordFeedback(category, feedbackType string) {
	m.FeedbackTotal.WithLabelValues(category, feedbackType).Inc()
}

// RecordAnalysis records a segment analysis attempt.
func (m *Metrics) RecordAnalysis(analyzer string, err error, latencySeconds float64) {
	m.AnalysisLatency.WithLabelValues(analyzer).Observe(latencySeconds)
	if err != nil {
		m.AnalysisFailures.WithLabelValues(analyzer).Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordStreamStart records a gRPC stream starting.
func (m *Metrics) RecordStreamStart() {
	m.StreamsActive.Inc()
}

// RecordStreamEnd records a gRPC stream ending.
func (m *Metrics) RecordStreamEnd(durationSeconds float64) {
	m.StreamsActive.Dec()
	m.StreamDuration.Observe(durationSeconds)
}
