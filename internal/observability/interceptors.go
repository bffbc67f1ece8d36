// Package observability provides gRPC interceptors and the metrics/health HTTP server.
package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"speech-coach-service/internal/observability/metrics"
)

// UnaryServerInterceptor returns a gRPC unary interceptor that logs each call.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		st, _ := status.FromError(err)
		callEvent(st.Code()).
			Str("method", info.FullMethod).
			Str("code", st.Code().String()).
			Dur("duration", time.Since(start)).
			Msg("gRPC unary call")

		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor for metrics and logging.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		m.RecordStreamStart()

		err := handler(srv, ss)

		duration := time.Since(start)
		m.RecordStreamEnd(duration.Seconds())

		st, _ := status.FromError(err)
		callEvent(st.Code()).
			Str("method", info.FullMethod).
			Str("code", st.Code().String()).
			Dur("duration", duration).
			Msg("gRPC stream completed")

		return err
	}
}

// callEvent picks the log level for a finished call. Client cancellation is routine
// for long-lived watch streams.
func callEvent(code codes.Code) *zerolog.Event {
	switch code {
	case codes.OK, codes.Canceled:
		return log.Info()
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return log.Error()
	default:
		return log.Warn()
	}
}
