// Package gemini provides a feedback analyzer backed by Google's Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/service/feedback"
)

const systemInstruction = `You are a presentation coach listening to a speaker in real time.
You receive a short excerpt of their speech transcript. Reply with ONE piece of feedback as a
JSON object with these fields:
  "content": one or two sentences addressed to the speaker,
  "type": one of "success", "suggestion", "warning", "info",
  "category": one of "filler", "pace", "clarity", "general",
  "fillers": filler words you noticed (array, may be empty),
  "pace": one of "Fast", "Slow", "Good" or "" when pace is not the topic.
Prioritise filler words, then pace, then praise what works.`

// generator is the subset of *genai.Models the analyzer calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config holds Gemini analyzer settings.
type Config struct {
	APIKey string
	Model  string
}

// Analyzer implements feedback.Analyzer using Gemini structured output.
type Analyzer struct {
	models generator
	model  string
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a Gemini analyzer.
func New(ctx context.Context, cfg Config) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newAnalyzer(client.Models, cfg.Model), nil
}

func newAnalyzer(models generator, model string) *Analyzer {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Analyzer{
		models: models,
		model:  model,
		now:    time.Now,
		logger: logging.WithComponent("gemini-analyzer"),
	}
}

// Name implements the analyzer label used in metrics.
func (a *Analyzer) Name() string { return "gemini" }

type verdict struct {
	Content  string   `json:"content"`
	Type     string   `json:"type"`
	Category string   `json:"category"`
	Fillers  []string `json:"fillers"`
	Pace     string   `json:"pace"`
}

// Analyze implements feedback.Analyzer.
func (a *Analyzer) Analyze(ctx context.Context, text string) (feedback.Event, error) {
	resp, err := a.models.GenerateContent(ctx, a.model, genai.Text(text), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.3),
	})
	if err != nil {
		return feedback.Event{}, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil {
		return feedback.Event{}, fmt.Errorf("gemini returned no response")
	}

	raw := strings.TrimSpace(resp.Text())
	a.logger.Debug().Str("model", a.model).Int("bytes", len(raw)).Msg("Gemini verdict received")

	ev, err := parseVerdict(raw)
	if err != nil {
		return feedback.Event{}, err
	}
	words := feedback.WordCount(text)
	ev.Signals.WordCount = words
	ev.Signals.Rate = float64(words) / 5
	ev.CreatedAt = a.now()
	return ev, nil
}

func parseVerdict(raw string) (feedback.Event, error) {
	if raw == "" {
		return feedback.Event{}, fmt.Errorf("gemini returned an empty verdict")
	}
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "```json"), "```")

	var v verdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return feedback.Event{}, fmt.Errorf("failed to decode gemini verdict: %w", err)
	}

	ev := feedback.Event{
		Content:  strings.TrimSpace(v.Content),
		Type:     feedback.Type(strings.ToLower(v.Type)),
		Category: feedback.Category(strings.ToLower(v.Category)),
		Signals: feedback.Signals{
			Fillers: v.Fillers,
			Pace:    normalizePace(v.Pace),
		},
	}
	if err := ev.Validate(); err != nil {
		return feedback.Event{}, fmt.Errorf("invalid gemini verdict: %w", err)
	}
	return ev, nil
}

func normalizePace(p string) feedback.Pace {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "fast":
		return feedback.PaceFast
	case "slow":
		return feedback.PaceSlow
	case "good", "normal":
		return feedback.PaceGood
	}
	return feedback.PaceUnknown
}
