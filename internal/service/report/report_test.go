package report

import (
	"strings"
	"testing"
	"time"

	"speech-coach-service/internal/service/feedback"
	"speech-coach-service/internal/service/tracker"
)

var start = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func session(words, fillers int, d time.Duration, clarity tracker.Clarity) tracker.State {
	return tracker.State{
		StartedAt: start,
		StoppedAt: start.Add(d),
		Metrics: tracker.SpeechMetrics{
			TotalWords:          words,
			FillerWordsDetected: fillers,
			AveragePace:         tracker.PaceNormal,
			ClarityScore:        clarity,
		},
		Tallies: map[feedback.Category]int{feedback.CategoryFiller: fillers},
		Total:   fillers,
	}
}

func contains(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestBuild_Scores(t *testing.T) {
	tests := []struct {
		name        string
		state       tracker.State
		wpm         float64
		paceScore   int
		fillerScore int
		overall     int
	}{
		{"ideal delivery", session(1400, 0, 10*time.Minute, tracker.ClarityExcellent), 140, 100, 100, 98},
		{"fast with fillers", session(2000, 60, 10*time.Minute, tracker.ClarityGood), 200, 60, 70, 67},
		{"slow", session(500, 0, 5*time.Minute, tracker.ClarityGood), 100, 80, 100, 87},
		{"very fast floors at zero", session(3000, 0, 10*time.Minute, tracker.ClarityGood), 300, 0, 100, 55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Build(tt.state, start.Add(time.Hour))
			if r.WordsPerMinute != tt.wpm {
				t.Errorf("expected wpm %.1f, got %.1f", tt.wpm, r.WordsPerMinute)
			}
			if r.PaceScore != tt.paceScore {
				t.Errorf("expected pace score %d, got %d", tt.paceScore, r.PaceScore)
			}
			if r.FillerScore != tt.fillerScore {
				t.Errorf("expected filler score %d, got %d", tt.fillerScore, r.FillerScore)
			}
			if r.OverallScore != tt.overall {
				t.Errorf("expected overall %d, got %d", tt.overall, r.OverallScore)
			}
		})
	}
}

func TestBuild_Recommendations(t *testing.T) {
	r := Build(session(2000, 60, 10*time.Minute, tracker.ClarityGood), start)

	if !contains(r.Improvements, "Reduce filler words (flagged in 60 segments)") {
		t.Errorf("expected filler improvement, got %v", r.Improvements)
	}
	if r.FillerFeedback != 60 || r.FillerFeedbackRate != 3 {
		t.Errorf("expected 60 filler events at 3 per 100 words, got %d at %v", r.FillerFeedback, r.FillerFeedbackRate)
	}
	if !contains(r.Improvements, "Slow down") {
		t.Errorf("expected pace improvement, got %v", r.Improvements)
	}
	if !contains(r.SuggestedGoals, "50%") {
		t.Errorf("expected filler goal, got %v", r.SuggestedGoals)
	}

	good := Build(session(1400, 0, 10*time.Minute, tracker.ClarityExcellent), start)
	if len(good.Improvements) != 0 {
		t.Errorf("expected no improvements, got %v", good.Improvements)
	}
	if len(good.Strengths) != 3 {
		t.Errorf("expected 3 strengths, got %v", good.Strengths)
	}
	if len(good.SuggestedGoals) != 1 {
		t.Errorf("expected a default goal, got %v", good.SuggestedGoals)
	}
}

func TestBuild_EmptySession(t *testing.T) {
	r := Build(tracker.State{}, start)

	if r.OverallScore != 0 || r.WordsPerMinute != 0 || r.FillerFeedbackRate != 0 {
		t.Errorf("expected zero scores, got %+v", r)
	}
	if r.DurationLabel != "0:00" {
		t.Errorf("expected 0:00, got %s", r.DurationLabel)
	}
	if len(r.Improvements) != 1 || r.Feedback == nil {
		t.Errorf("expected a single improvement and non-nil tallies, got %+v", r)
	}
}

func TestBuild_RunningSessionUsesNow(t *testing.T) {
	s := session(150, 0, 0, tracker.ClarityGood)
	s.StoppedAt = time.Time{}
	s.Listening = true

	r := Build(s, start.Add(90*time.Second))
	if r.Duration != 90*time.Second {
		t.Errorf("expected 90s, got %v", r.Duration)
	}
	if r.WordsPerMinute != 100 {
		t.Errorf("expected 100 wpm, got %.1f", r.WordsPerMinute)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in       time.Duration
		expected string
	}{
		{0, "0:00"},
		{65 * time.Second, "1:05"},
		{18*time.Minute + 45*time.Second, "18:45"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.expected {
			t.Errorf("formatDuration(%v): expected %s, got %s", tt.in, tt.expected, got)
		}
	}
}
