package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcapi "speech-coach-service/internal/api/grpc"
	"speech-coach-service/internal/app"
	"speech-coach-service/internal/config"
	httpapi "speech-coach-service/internal/http"
	"speech-coach-service/internal/observability"
	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/observability/metrics"
)

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.LoadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Service.GRPCPort).Msg("Failed to listen")
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics)),
	)

	// gRPC health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	grpcapi.Register(server, application.Tracker)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(server)

	hub := httpapi.NewHub()
	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(application, hub),
		ReadHeaderTimeout: 5 * time.Second,
	}
	obsServer := observability.NewServer(cfg.Service.MetricsAddr, application.Ready)

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.Service.GRPCPort).Msg("Speech coach gRPC server started")
		return server.Serve(lis)
	})
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("Speech coach HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(obsServer.ListenAndServe)
	g.Go(func() error {
		updates, cancel := application.Tracker.Watch()
		defer cancel()
		hub.Run(gctx, updates)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		application.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown error")
		}
		if err := obsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Observability server shutdown error")
		}
		// Shutdown closed the tracker, which ends open watch streams. Bounded for clients that stop reading.
		stopped := make(chan struct{})
		go func() {
			server.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			server.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}
