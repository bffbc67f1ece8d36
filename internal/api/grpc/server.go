// Package grpcapi exposes the coaching session over gRPC.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/service/coach"
	"speech-coach-service/internal/service/report"
	"speech-coach-service/internal/service/tracker"
)

// Coach is the session surface the API drives. *tracker.Tracker implements it.
type Coach interface {
	StartListening(ctx context.Context) error
	StopListening()
	Snapshot() tracker.State
	Watch() (<-chan tracker.State, func())
}

type Server struct {
	coach  Coach
	now    func() time.Time
	logger zerolog.Logger
}

// Register creates a Server for c and registers it on g.
func Register(g grpc.ServiceRegistrar, c Coach) *Server {
	s := &Server{
		coach:  c,
		now:    time.Now,
		logger: logging.WithComponent("grpc-api"),
	}
	RegisterCoachServer(g, s)
	return s
}

func (s *Server) StartSession(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.coach.StartListening(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("StartSession failed")
		if errors.Is(err, coach.ErrCaptureUnavailable) {
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, status.FromContextError(err).Err()
		}
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return toStruct(s.coach.Snapshot())
}

func (s *Server) StopSession(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.coach.StopListening()
	return toStruct(s.coach.Snapshot())
}

func (s *Server) GetSession(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.coach.Snapshot())
}

func (s *Server) GetReport(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(report.Build(s.coach.Snapshot(), s.now()))
}

// WatchEvents sends the current state, then every update, until the client goes away.
func (s *Server) WatchEvents(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	updates, cancel := s.coach.Watch()
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			msg, err := toStruct(st)
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}
