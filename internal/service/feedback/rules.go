package feedback

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// FillerWords is the fixed filler vocabulary, in reporting order.
var FillerWords = []string{"um", "uh", "like", "so", "you know", "actually", "basically"}

const (
	// rateWindow divides the segment word count into a nominal per-slice rate. It is a
	// heuristic: no elapsed time is measured for the segment.
	rateWindow = 5.0
	fastRate   = 4.0
	slowRate   = 1.5
)

const (
	contentTooFast = "You're speaking quite quickly. Consider slowing down slightly to ensure your audience can follow along."
	contentTooSlow = "Your pace is quite slow. You can speak a bit faster to maintain audience engagement."
)

type positive struct {
	content  string
	typ      Type
	category Category
	pace     Pace
}

var positives = []positive{
	{"Great clarity in your explanation! Your message is coming across clearly.", TypeSuccess, CategoryClarity, PaceUnknown},
	{"Excellent pacing. You're giving your audience time to process your ideas.", TypeSuccess, CategoryPace, PaceGood},
	{"Strong delivery! Your confidence is evident in your speech patterns.", TypeSuccess, CategoryGeneral, PaceUnknown},
	{"Good use of pauses. This helps emphasize your key points effectively.", TypeInfo, CategoryGeneral, PaceUnknown},
}

// RuleAnalyzer is the deterministic rule-based analyzer. Rules are applied in priority
// order and the first match wins: filler words, then pace, then a random positive note.
type RuleAnalyzer struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// RuleOption configures a RuleAnalyzer.
type RuleOption func(*RuleAnalyzer)

// WithRand sets the source used to pick positive feedback.
func WithRand(rng *rand.Rand) RuleOption {
	return func(r *RuleAnalyzer) { r.rng = rng }
}

// WithNow sets the timestamp source for produced events.
func WithNow(now func() time.Time) RuleOption {
	return func(r *RuleAnalyzer) { r.now = now }
}

// NewRuleAnalyzer creates a rule-based analyzer.
func NewRuleAnalyzer(opts ...RuleOption) *RuleAnalyzer {
	r := &RuleAnalyzer{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements the analyzer label used in metrics.
func (r *RuleAnalyzer) Name() string { return "rules" }

// Analyze implements Analyzer. It never fails.
func (r *RuleAnalyzer) Analyze(_ context.Context, text string) (Event, error) {
	words := WordCount(text)
	rate := float64(words) / rateWindow
	ev := Event{
		CreatedAt: r.now(),
		Signals:   Signals{WordCount: words, Rate: rate},
	}

	if fillers := DetectFillers(text); len(fillers) > 0 {
		ev.Category = CategoryFiller
		ev.Type = TypeSuggestion
		ev.Signals.Fillers = fillers
		ev.Content = fmt.Sprintf("Detected filler words: \"%s\". Try pausing briefly instead of using filler words to maintain authority.",
			strings.Join(fillers, ", "))
		return ev, nil
	}

	switch {
	case rate > fastRate:
		ev.Category = CategoryPace
		ev.Type = TypeSuggestion
		ev.Signals.Pace = PaceFast
		ev.Content = contentTooFast
		return ev, nil
	case rate < slowRate:
		ev.Category = CategoryPace
		ev.Type = TypeSuggestion
		ev.Signals.Pace = PaceSlow
		ev.Content = contentTooSlow
		return ev, nil
	}

	r.mu.Lock()
	p := positives[r.rng.Intn(len(positives))]
	r.mu.Unlock()
	ev.Content = p.content
	ev.Type = p.typ
	ev.Category = p.category
	ev.Signals.Pace = p.pace
	return ev, nil
}

// DetectFillers returns the filler words present in text, case-insensitively, in
// FillerWords order. Matching is by substring, so "so" also matches inside "also".
func DetectFillers(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, f := range FillerWords {
		if strings.Contains(lower, f) {
			found = append(found, f)
		}
	}
	return found
}
