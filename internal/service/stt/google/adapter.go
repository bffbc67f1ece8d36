// Package google provides a Google Cloud Speech-to-Text streaming recognizer.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/service/stt"
)

// Config holds recognition settings sent as the first streaming message.
type Config struct {
	LanguageCode   string
	SampleRateHz   int32
	InterimResults bool
	AudioEncoding  string
}

// DefaultConfig matches the capture defaults: 16 kHz 16-bit mono PCM.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   16000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
	}
}

func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	switch s {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

// recognizeStream is the bidirectional stream returned by StreamingRecognize.
type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	cfg    Config
	open   func(ctx context.Context) (recognizeStream, error)
	closer io.Closer
	logger zerolog.Logger

	mu     sync.Mutex
	stream recognizeStream
	closed bool
	done   chan struct{}
}

// New creates a Google recognizer.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	a := newAdapter(cfg, func(ctx context.Context) (recognizeStream, error) {
		return c.StreamingRecognize(ctx)
	})
	a.closer = c
	return a, nil
}

func newAdapter(cfg Config, open func(ctx context.Context) (recognizeStream, error)) *Adapter {
	return &Adapter{
		cfg:    cfg,
		open:   open,
		logger: logging.WithComponent("stt-google"),
	}
}

// Start opens a streaming recognition session, sends the recognition config and begins
// delivering results to cb.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stream != nil {
		return errors.New("recognition session already started")
	}

	stream, err := a.open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open recognition stream: %w", err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   parseAudioEncoding(a.cfg.AudioEncoding),
					SampleRateHertz:            a.cfg.SampleRateHz,
					LanguageCode:               a.cfg.LanguageCode,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: a.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		stream.CloseSend()
		return fmt.Errorf("failed to send recognition config: %w", err)
	}

	a.stream = stream
	a.done = make(chan struct{})
	go a.listen(stream, cb)

	a.logger.Info().
		Str("language", a.cfg.LanguageCode).
		Int32("sampleRateHz", a.cfg.SampleRateHz).
		Bool("interim", a.cfg.InterimResults).
		Msg("Recognition stream started")
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream, closed := a.stream, a.closed
	a.mu.Unlock()
	if stream == nil || closed {
		return errors.New("recognition stream is not open")
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close half-closes the stream, waits for the receive loop to drain and releases the
// client.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	stream, done := a.stream, a.done
	a.mu.Unlock()

	var errs []error
	if stream != nil {
		if err := stream.CloseSend(); err != nil {
			errs = append(errs, err)
		}
		<-done
	}
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// listen receives transcript responses from Google and invokes callbacks.
func (a *Adapter) listen(stream recognizeStream, cb stt.Callback) {
	defer close(a.done)
	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled || a.isClosed() {
				return
			}
			cb.OnError(fmt.Errorf("recognition stream failed: %w", err))
			return
		}
		if e := resp.GetError(); e != nil && e.GetCode() != 0 {
			cb.OnError(fmt.Errorf("recognition error %d: %s", e.GetCode(), e.GetMessage()))
			return
		}

		for _, r := range resp.GetResults() {
			if len(r.GetAlternatives()) == 0 {
				continue
			}
			alt := r.GetAlternatives()[0]
			if r.GetIsFinal() {
				cb.OnFinal(alt.GetTranscript(), float64(alt.GetConfidence()))
			} else {
				cb.OnPartial(alt.GetTranscript())
			}
		}
	}
}
