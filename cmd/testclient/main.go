package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"

	grpcapi "speech-coach-service/internal/api/grpc"
	"speech-coach-service/internal/observability/logging"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "coach gRPC address")
	duration := flag.Duration("duration", 30*time.Second, "how long to listen before stopping")
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console"})

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.Close()

	client := grpcapi.NewCoachClient(conn)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if _, err := client.StartSession(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start session")
	}
	log.Info().Dur("duration", *duration).Msg("Session started")

	watchCtx, stopWatch := context.WithTimeout(ctx, *duration)
	defer stopWatch()

	stream, err := client.WatchEvents(watchCtx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to watch events")
	}
	for {
		st, err := stream.Recv()
		if err != nil {
			break
		}
		metrics := st.Fields["metrics"].GetStructValue()
		log.Info().
			Bool("listening", st.Fields["listening"].GetBoolValue()).
			Str("transcript", st.Fields["transcript"].GetStringValue()).
			Float64("words", metrics.GetFields()["totalWords"].GetNumberValue()).
			Float64("fillers", metrics.GetFields()["fillerWordsDetected"].GetNumberValue()).
			Msg("Session update")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if _, err := client.StopSession(stopCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop session")
		os.Exit(1)
	}

	rep, err := client.GetReport(stopCtx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch report")
		os.Exit(1)
	}
	out, _ := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(rep)
	os.Stdout.Write(append(out, '\n'))
}
