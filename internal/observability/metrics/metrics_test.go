package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_SessionLifecycle(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSessionStart()
	m.RecordSessionStart()
	m.RecordSessionEnd(12)

	if got := testutil.ToFloat64(m.SessionsTotal); got != 2 {
		t.Errorf("expected 2 sessions, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsActive); got != 1 {
		t.Errorf("expected 1 active session, got %v", got)
	}

	m.RecordSessionFailed("capture")
	if got := testutil.ToFloat64(m.SessionsFailed.WithLabelValues("capture")); got != 1 {
		t.Errorf("expected 1 capture failure, got %v", got)
	}
}

func TestMetrics_Fragments(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordFragment(false, 3)
	m.RecordFragment(true, 5)
	m.RecordFragment(true, 7)

	if got := testutil.ToFloat64(m.FragmentsTotal.WithLabelValues("interim")); got != 1 {
		t.Errorf("expected 1 interim, got %v", got)
	}
	if got := testutil.ToFloat64(m.FragmentsTotal.WithLabelValues("final")); got != 2 {
		t.Errorf("expected 2 finals, got %v", got)
	}
	if got := testutil.ToFloat64(m.WordsTotal); got != 12 {
		t.Errorf("expected interim words not counted, got %v", got)
	}
}

func TestMetrics_AnalysisAndKafka(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAnalysis("rules", nil, 0.001)
	m.RecordAnalysis("gemini", errors.New("timeout"), 10)
	m.RecordKafkaPublish("coach.feedback", "coach.feedback", nil, 0.01)
	m.RecordKafkaPublish("coach.feedback", "coach.feedback", errors.New("broker down"), 0.5)

	if got := testutil.ToFloat64(m.AnalysisFailures.WithLabelValues("gemini")); got != 1 {
		t.Errorf("expected 1 gemini failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.AnalysisFailures.WithLabelValues("rules")); got != 0 {
		t.Errorf("expected no rules failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.KafkaPublishTotal.WithLabelValues("coach.feedback", "coach.feedback")); got != 2 {
		t.Errorf("expected 2 publishes, got %v", got)
	}
	if got := testutil.ToFloat64(m.KafkaPublishErrors.WithLabelValues("coach.feedback", "coach.feedback")); got != 1 {
		t.Errorf("expected 1 publish error, got %v", got)
	}
}
