package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"speech-coach-service/internal/config"
	"speech-coach-service/internal/events"
	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/observability/metrics"
	"speech-coach-service/internal/schema"
	"speech-coach-service/internal/service/capture"
	"speech-coach-service/internal/service/coach"
	"speech-coach-service/internal/service/feedback"
	"speech-coach-service/internal/service/feedback/gemini"
	"speech-coach-service/internal/service/stt"
	"speech-coach-service/internal/service/stt/google"
	"speech-coach-service/internal/service/stt/mock"
	"speech-coach-service/internal/service/tracker"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Engine    *coach.Engine
	Tracker   *tracker.Tracker
	Publisher *events.Publisher
	Relay     *events.Relay

	ready     atomic.Bool
	relayDone chan struct{}
	stopOnce  sync.Once
}

// New wires the coaching pipeline described by cfg. Nothing is opened until a session
// starts.
func New(ctx context.Context, cfg *config.Configuration) (*Application, error) {
	a := &Application{
		Cfg:       cfg,
		Logger:    logging.WithComponent("application"),
		relayDone: make(chan struct{}),
	}

	device, err := newCaptureDevice(cfg.Capture)
	if err != nil {
		return nil, err
	}
	recognizers, err := newRecognizerFactory(cfg.STT)
	if err != nil {
		return nil, err
	}
	analyzer, err := newAnalyzer(ctx, cfg.Analyzer)
	if err != nil {
		return nil, err
	}

	a.Engine = coach.New(device, recognizers, analyzer,
		coach.WithPolicy(coach.Policy{
			MinWords: cfg.Trigger.MinWords,
			MaxWords: cfg.Trigger.MaxWords,
			Timeout:  cfg.Trigger.Timeout,
		}),
		coach.WithConstraints(capture.Constraints{
			SampleRate:       uint32(cfg.Capture.SampleRate),
			Channels:         uint32(cfg.Capture.Channels),
			BufferFrames:     uint32(cfg.Capture.BufferFrames),
			DeviceName:       cfg.Capture.DeviceName,
			EchoCancellation: cfg.Capture.EchoCancellation,
			NoiseSuppression: cfg.Capture.NoiseSuppression,
		}),
		coach.WithAnalysisTimeout(cfg.Analyzer.Timeout),
	)
	a.Tracker = tracker.New(a.Engine)

	validator, err := schema.New()
	if err != nil {
		return nil, err
	}
	a.Publisher = events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		TopicFeedback:   cfg.Kafka.TopicFeedback,
		Principal:       cfg.Kafka.Principal,
	})
	a.Relay = events.NewRelay(a.Publisher, validator, cfg.Kafka.Principal, a.Engine.SessionID, 256)
	a.Engine.Subscribe(a.Relay)

	a.Logger.Info().
		Str("capture", cfg.Capture.Provider).
		Str("stt", cfg.STT.Provider).
		Str("analyzer", feedback.Name(analyzer)).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("Speech coach application created")
	return a, nil
}

func newCaptureDevice(cfg config.CaptureConfig) (capture.Device, error) {
	switch cfg.Provider {
	case "malgo":
		return capture.NewMalgoDevice(metrics.DefaultMetrics), nil
	case "null":
		return capture.NewNullDevice(nil), nil
	case "wav":
		return capture.NewWAVDevice(cfg.WAVFile, nil), nil
	default:
		return nil, fmt.Errorf("unknown capture provider %q", cfg.Provider)
	}
}

func newRecognizerFactory(cfg config.STTConfig) (stt.Factory, error) {
	switch cfg.Provider {
	case "mock":
		return func(context.Context) (stt.Adapter, error) {
			return mock.New(), nil
		}, nil
	case "google":
		gcfg := google.Config{
			LanguageCode:   cfg.LanguageCode,
			SampleRateHz:   int32(cfg.SampleRateHz),
			InterimResults: cfg.InterimResults,
			AudioEncoding:  cfg.AudioEncoding,
		}
		return func(ctx context.Context) (stt.Adapter, error) {
			a, err := google.New(ctx, gcfg)
			if err != nil {
				return nil, err
			}
			return a, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown stt provider %q", cfg.Provider)
	}
}

func newAnalyzer(ctx context.Context, cfg config.AnalyzerConfig) (feedback.Analyzer, error) {
	switch cfg.Provider {
	case "rules":
		return feedback.NewRuleAnalyzer(), nil
	case "gemini":
		a, err := gemini.New(ctx, gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown analyzer provider %q", cfg.Provider)
	}
}

// Ready reports whether the service can accept new sessions.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Start begins publishing events and marks the service ready.
func (a *Application) Start(ctx context.Context) error {
	a.StartupTime = time.Now().UTC()
	go func() {
		defer close(a.relayDone)
		a.Relay.Run(ctx)
	}()
	a.ready.Store(true)

	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Speech coach service starting")
	return nil
}

// Shutdown ends any active session, flushes pending events and releases resources. Safe to
// call more than once.
func (a *Application) Shutdown() {
	a.stopOnce.Do(func() {
		a.ready.Store(false)
		a.Logger.Info().Msg("Speech coach service shutting down")

		a.Tracker.StopListening()
		a.Tracker.Close()

		a.Relay.Close()
		if !a.StartupTime.IsZero() {
			<-a.relayDone
		}
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close publisher")
		}
	})
}
