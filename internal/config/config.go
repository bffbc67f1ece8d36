package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration is the full service configuration. Values come from defaults, then an
// optional YAML file, then environment variables.
type Configuration struct {
	Service       ServiceConfig       `yaml:"service"`
	STT           STTConfig           `yaml:"stt"`
	Capture       CaptureConfig       `yaml:"capture"`
	Trigger       TriggerConfig       `yaml:"trigger"`
	Analyzer      AnalyzerConfig      `yaml:"analyzer"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServiceConfig struct {
	Principal   string `yaml:"principal"`
	GRPCPort    string `yaml:"grpc_port"`
	HTTPPort    string `yaml:"http_port"`
	MetricsAddr string `yaml:"metrics_addr"`
}

type STTConfig struct {
	Provider       string `yaml:"provider"` // mock, google
	LanguageCode   string `yaml:"language_code"`
	SampleRateHz   int    `yaml:"sample_rate_hz"`
	InterimResults bool   `yaml:"interim_results"`
	AudioEncoding  string `yaml:"audio_encoding"`
}

type CaptureConfig struct {
	Provider         string `yaml:"provider"` // malgo, null, wav
	DeviceName       string `yaml:"device_name"`
	WAVFile          string `yaml:"wav_file"`
	SampleRate       int    `yaml:"sample_rate"`
	Channels         int    `yaml:"channels"`
	BufferFrames     int    `yaml:"buffer_frames"`
	EchoCancellation bool   `yaml:"echo_cancellation"`
	NoiseSuppression bool   `yaml:"noise_suppression"`
}

// TriggerConfig tunes when buffered transcript text is flushed for analysis.
type TriggerConfig struct {
	MinWords int           `yaml:"min_words"`
	MaxWords int           `yaml:"max_words"`
	Timeout  time.Duration `yaml:"timeout"`
}

type AnalyzerConfig struct {
	Provider string        `yaml:"provider"` // rules, gemini
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"-"`
	Timeout  time.Duration `yaml:"timeout"`
}

type KafkaConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Brokers         []string `yaml:"brokers"`
	TopicTranscript string   `yaml:"topic_transcript"`
	TopicFeedback   string   `yaml:"topic_feedback"`
	Principal       string   `yaml:"principal"`
}

type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Defaults returns the built-in configuration.
func Defaults() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal:   "svc-speech-coach",
			GRPCPort:    "50051",
			HTTPPort:    "8080",
			MetricsAddr: ":9090",
		},
		STT: STTConfig{
			Provider:       "mock",
			LanguageCode:   "en-US",
			SampleRateHz:   16000,
			InterimResults: true,
			AudioEncoding:  "LINEAR16",
		},
		Capture: CaptureConfig{
			Provider:         "null",
			SampleRate:       16000,
			Channels:         1,
			BufferFrames:     480,
			EchoCancellation: true,
			NoiseSuppression: true,
		},
		Trigger: TriggerConfig{
			MinWords: 10,
			MaxWords: 30,
			Timeout:  5 * time.Second,
		},
		Analyzer: AnalyzerConfig{
			Provider: "rules",
			Model:    "gemini-2.0-flash",
			Timeout:  10 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:         false,
			Brokers:         []string{"localhost:9092"},
			TopicTranscript: "coach.transcript.fragment",
			TopicFeedback:   "coach.feedback",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load builds the configuration from defaults and environment variables.
func Load() *Configuration {
	cfg := Defaults()
	applyEnv(cfg)
	return cfg
}

// LoadFile overlays the YAML file at path (if non-empty) on the defaults, then applies
// environment variables on top.
func LoadFile(path string) (*Configuration, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Configuration) {
	cfg.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", cfg.Service.Principal)
	cfg.Service.GRPCPort = envOrDefault("GRPC_PORT", cfg.Service.GRPCPort)
	cfg.Service.HTTPPort = envOrDefault("HTTP_PORT", cfg.Service.HTTPPort)
	cfg.Service.MetricsAddr = envOrDefault("METRICS_ADDR", cfg.Service.MetricsAddr)

	cfg.STT.Provider = envOrDefault("STT_PROVIDER", cfg.STT.Provider)
	cfg.STT.LanguageCode = envOrDefault("STT_LANGUAGE_CODE", cfg.STT.LanguageCode)
	cfg.STT.SampleRateHz = envOrDefaultInt("STT_SAMPLE_RATE_HZ", cfg.STT.SampleRateHz)
	cfg.STT.InterimResults = envOrDefaultBool("STT_INTERIM_RESULTS", cfg.STT.InterimResults)
	cfg.STT.AudioEncoding = envOrDefault("STT_AUDIO_ENCODING", cfg.STT.AudioEncoding)

	cfg.Capture.Provider = envOrDefault("CAPTURE_PROVIDER", cfg.Capture.Provider)
	cfg.Capture.DeviceName = envOrDefault("CAPTURE_DEVICE", cfg.Capture.DeviceName)
	cfg.Capture.WAVFile = envOrDefault("CAPTURE_WAV_FILE", cfg.Capture.WAVFile)
	cfg.Capture.SampleRate = envOrDefaultInt("CAPTURE_SAMPLE_RATE", cfg.Capture.SampleRate)
	cfg.Capture.Channels = envOrDefaultInt("CAPTURE_CHANNELS", cfg.Capture.Channels)
	cfg.Capture.BufferFrames = envOrDefaultInt("CAPTURE_BUFFER_FRAMES", cfg.Capture.BufferFrames)
	cfg.Capture.EchoCancellation = envOrDefaultBool("CAPTURE_ECHO_CANCELLATION", cfg.Capture.EchoCancellation)
	cfg.Capture.NoiseSuppression = envOrDefaultBool("CAPTURE_NOISE_SUPPRESSION", cfg.Capture.NoiseSuppression)

	cfg.Trigger.MinWords = envOrDefaultInt("TRIGGER_MIN_WORDS", cfg.Trigger.MinWords)
	cfg.Trigger.MaxWords = envOrDefaultInt("TRIGGER_MAX_WORDS", cfg.Trigger.MaxWords)
	cfg.Trigger.Timeout = envOrDefaultDuration("TRIGGER_TIMEOUT", cfg.Trigger.Timeout)

	cfg.Analyzer.Provider = envOrDefault("ANALYZER_PROVIDER", cfg.Analyzer.Provider)
	cfg.Analyzer.Model = envOrDefault("ANALYZER_MODEL", cfg.Analyzer.Model)
	cfg.Analyzer.APIKey = envOrDefault("GEMINI_API_KEY", cfg.Analyzer.APIKey)
	cfg.Analyzer.Timeout = envOrDefaultDuration("ANALYZER_TIMEOUT", cfg.Analyzer.Timeout)

	cfg.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", cfg.Kafka.Enabled)
	cfg.Kafka.Brokers = envOrDefaultList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.TopicTranscript = envOrDefault("KAFKA_TOPIC_TRANSCRIPT", cfg.Kafka.TopicTranscript)
	cfg.Kafka.TopicFeedback = envOrDefault("KAFKA_TOPIC_FEEDBACK", cfg.Kafka.TopicFeedback)
	cfg.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", cfg.Kafka.Principal)
	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}

	cfg.Observability.LogLevel = envOrDefault("LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = envOrDefault("LOG_FORMAT", cfg.Observability.LogFormat)
}

// Validate reports configuration values the service cannot run with.
func (c *Configuration) Validate() error {
	var errs []error
	if c.Trigger.MinWords <= 0 {
		errs = append(errs, fmt.Errorf("trigger.min_words must be positive, got %d", c.Trigger.MinWords))
	}
	if c.Trigger.MaxWords < c.Trigger.MinWords {
		errs = append(errs, fmt.Errorf("trigger.max_words (%d) must be >= min_words (%d)", c.Trigger.MaxWords, c.Trigger.MinWords))
	}
	if c.Trigger.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("trigger.timeout must be positive, got %v", c.Trigger.Timeout))
	}
	switch c.STT.Provider {
	case "mock", "google":
	default:
		errs = append(errs, fmt.Errorf("unknown stt.provider %q (valid: mock, google)", c.STT.Provider))
	}
	switch c.Capture.Provider {
	case "malgo", "null":
	case "wav":
		if c.Capture.WAVFile == "" {
			errs = append(errs, errors.New("capture.provider wav requires capture.wav_file"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown capture.provider %q (valid: malgo, null, wav)", c.Capture.Provider))
	}
	switch c.Analyzer.Provider {
	case "rules":
	case "gemini":
		if c.Analyzer.APIKey == "" {
			errs = append(errs, errors.New("analyzer.provider gemini requires GEMINI_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown analyzer.provider %q (valid: rules, gemini)", c.Analyzer.Provider))
	}
	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
