// Package report turns a finished tracker session into a post-session summary.
package report

import (
	"fmt"
	"math"
	"time"

	"speech-coach-service/internal/service/feedback"
	"speech-coach-service/internal/service/tracker"
)

// Comfortable speaking range in words per minute.
const (
	IdealMinWPM = 120.0
	IdealMaxWPM = 160.0
)

// Report is the post-session analysis.
type Report struct {
	Duration        time.Duration `json:"-"`
	DurationSeconds float64       `json:"durationSeconds"`
	DurationLabel   string        `json:"duration"`
	TotalWords      int           `json:"totalWords"`
	WordsPerMinute  float64       `json:"wordsPerMinute"`

	// Filler feedback events, one per segment in which fillers were flagged.
	FillerFeedback     int                       `json:"fillerFeedback"`
	FillerFeedbackRate float64                   `json:"fillerFeedbackPer100Words"`
	AveragePace        tracker.Pace              `json:"averagePace"`
	Clarity            tracker.Clarity           `json:"clarity"`
	Feedback           map[feedback.Category]int `json:"feedbackByCategory"`
	TotalFeedback      int                       `json:"totalFeedback"`

	PaceScore    int `json:"paceScore"`
	FillerScore  int `json:"fillerScore"`
	ClarityScore int `json:"clarityScore"`
	OverallScore int `json:"overallScore"`

	Strengths      []string `json:"strengths"`
	Improvements   []string `json:"improvements"`
	SuggestedGoals []string `json:"suggestedGoals"`
}

// Build computes a report from s. A session that is still running is measured up to now.
func Build(s tracker.State, now time.Time) Report {
	end := s.StoppedAt
	if end.IsZero() {
		end = now
	}
	var d time.Duration
	if !s.StartedAt.IsZero() && end.After(s.StartedAt) {
		d = end.Sub(s.StartedAt)
	}

	r := Report{
		Duration:        d,
		DurationSeconds: d.Seconds(),
		DurationLabel:   formatDuration(d),
		TotalWords:      s.Metrics.TotalWords,
		FillerFeedback:  s.Metrics.FillerWordsDetected,
		AveragePace:     s.Metrics.AveragePace,
		Clarity:         s.Metrics.ClarityScore,
		Feedback:        s.Tallies,
		TotalFeedback:   s.Total,
		Strengths:       []string{},
		Improvements:    []string{},
		SuggestedGoals:  []string{},
	}
	if r.Feedback == nil {
		r.Feedback = map[feedback.Category]int{}
	}
	if d > 0 {
		r.WordsPerMinute = round1(float64(r.TotalWords) / d.Minutes())
	}
	if r.TotalWords > 0 {
		r.FillerFeedbackRate = round1(float64(r.FillerFeedback) * 100 / float64(r.TotalWords))
	}

	if r.TotalWords == 0 {
		r.Improvements = append(r.Improvements, "No speech was captured during this session")
		r.SuggestedGoals = append(r.SuggestedGoals, "Complete a full run-through of your presentation")
		return r
	}

	r.PaceScore = paceScore(r.WordsPerMinute)
	r.FillerScore = clamp(100 - int(math.Round(r.FillerFeedbackRate*10)))
	r.ClarityScore = 75
	if r.Clarity == tracker.ClarityExcellent {
		r.ClarityScore = 90
	}
	r.OverallScore = clamp(int(math.Round(0.4*float64(r.PaceScore) + 0.4*float64(r.FillerScore) + 0.2*float64(r.ClarityScore))))

	switch {
	case r.WordsPerMinute > IdealMaxWPM:
		r.Improvements = append(r.Improvements, fmt.Sprintf("Slow down: %.0f words per minute is above the comfortable range", r.WordsPerMinute))
		r.SuggestedGoals = append(r.SuggestedGoals, fmt.Sprintf("Keep your pace between %.0f and %.0f words per minute", IdealMinWPM, IdealMaxWPM))
	case r.WordsPerMinute < IdealMinWPM:
		r.Improvements = append(r.Improvements, fmt.Sprintf("Pick up the pace: %.0f words per minute leaves long gaps", r.WordsPerMinute))
		r.SuggestedGoals = append(r.SuggestedGoals, fmt.Sprintf("Keep your pace between %.0f and %.0f words per minute", IdealMinWPM, IdealMaxWPM))
	default:
		r.Strengths = append(r.Strengths, fmt.Sprintf("Comfortable speaking pace (%.0f words per minute)", r.WordsPerMinute))
	}

	if r.FillerFeedbackRate >= 2 {
		r.Improvements = append(r.Improvements, fmt.Sprintf("Reduce filler words (flagged in %d segments)", r.FillerFeedback))
		r.SuggestedGoals = append(r.SuggestedGoals, "Reduce filler words by 50%")
	} else {
		r.Strengths = append(r.Strengths, "Minimal use of filler words")
	}

	if r.Clarity == tracker.ClarityExcellent {
		r.Strengths = append(r.Strengths, "Clear and well-structured delivery")
	}

	if len(r.SuggestedGoals) == 0 {
		r.SuggestedGoals = append(r.SuggestedGoals, "Increase overall engagement score")
	}
	return r
}

// paceScore is 100 inside the ideal range and loses a point per word per minute outside it.
func paceScore(wpm float64) int {
	switch {
	case wpm < IdealMinWPM:
		return clamp(100 - int(math.Round(IdealMinWPM-wpm)))
	case wpm > IdealMaxWPM:
		return clamp(100 - int(math.Round(wpm-IdealMaxWPM)))
	default:
		return 100
	}
}

func clamp(n int) int {
	return max(0, min(100, n))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// formatDuration renders d as m:ss, or h:mm:ss past an hour.
func formatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
