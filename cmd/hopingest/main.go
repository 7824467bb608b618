package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hermes-mma/hermes-backend/internal/db"
	"github.com/hermes-mma/hermes-backend/internal/ingest"
	"github.com/hermes-mma/hermes-backend/internal/logger"
	"github.com/hermes-mma/hermes-backend/internal/parsers"
	"github.com/hermes-mma/hermes-backend/internal/repos"
	"github.com/hermes-mma/hermes-backend/internal/stream"
)

type topicList []string

func (t *topicList) String() string { return strings.Join(*t, ",") }

func (t *topicList) Set(value string) error {
	*t = append(*t, value)
	return nil
}

func main() {
	var topics topicList
	flag.Var(&topics, "topic", "Repeatable. Topic to ingest. Defaults to sys.heartbeat")
	earliest := flag.Bool("earliest", false, "Read from the start of the Kafka stream")
	username := flag.String("username", "", "Username for the Hopskotch stream (default HOP_USERNAME)")
	password := flag.String("password", "", "Password for the Hopskotch stream (default HOP_PASSWORD)")
	test := flag.Bool("test", false, "Log three sys.heartbeat messages and exit")
	flag.Parse()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	user := *username
	if user == "" {
		user = os.Getenv("HOP_USERNAME")
	}
	pass := *password
	if pass == "" {
		pass = os.Getenv("HOP_PASSWORD")
	}
	if user == "" || pass == "" {
		log.Error("Supply Hop credentials on command line or set HOP_USERNAME and HOP_PASSWORD environment variables.")
		os.Exit(1)
	}

	streams, err := stream.New(log, stream.Config{
		Username: user,
		Password: pass,
		GroupID:  os.Getenv("HOPSKOTCH_GROUP_ID"),
		Earliest: *earliest,
	})
	if err != nil {
		log.Error("Could not open Hopskotch stream", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *test {
		if err := testSysHeartbeat(ctx, log, streams); err != nil {
			log.Error("Heartbeat test failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if len(topics) == 0 {
		topics = topicList{"sys.heartbeat"}
	}

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	messageRepo := repos.NewMessageRepo(thePG, log)
	targetRepo := repos.NewTargetRepo(thePG, log)
	eventRepo := repos.NewNonLocalizedEventRepo(thePG, log)
	sequenceRepo := repos.NewNonLocalizedEventSequenceRepo(thePG, log)

	linker := parsers.NewLinker(log, messageRepo, targetRepo, eventRepo, sequenceRepo)
	handlers := ingest.NewHandlers(log, messageRepo, linker)
	runner := ingest.NewRunner(log, streams, handlers)

	log.Info("Ingesting topics", "topics", []string(topics))
	if err := runner.Run(ctx, topics); err != nil {
		log.Error("Ingest stopped", "error", err)
		os.Exit(1)
	}
}

// testSysHeartbeat reads three heartbeats off sys.heartbeat to verify
// connectivity and credentials, then returns.
func testSysHeartbeat(ctx context.Context, log *logger.Logger, streams *stream.Client) error {
	reader := streams.Reader("sys.heartbeat")
	defer reader.Close()

	for i := 3; i > 0; i-- {
		raw, err := reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		log.Info("heartbeat", "remaining", i, "timestamp", raw.Time, "payload", string(raw.Value))
		if err := reader.CommitMessages(ctx, raw); err != nil {
			return err
		}
	}
	return nil
}
