package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/hermes-mma/hermes-backend/internal/db"
	"github.com/hermes-mma/hermes-backend/internal/ingest"
	"github.com/hermes-mma/hermes-backend/internal/logger"
	"github.com/hermes-mma/hermes-backend/internal/parsers"
	"github.com/hermes-mma/hermes-backend/internal/repos"
	"github.com/hermes-mma/hermes-backend/internal/stream"
	"github.com/hermes-mma/hermes-backend/internal/utils"
)

// streamsConfig is the optional YAML file naming the topics each consumer
// subscribes to. Missing sections fall back to the defaults below.
type streamsConfig struct {
	Hopskotch struct {
		Topics []string `yaml:"topics"`
	} `yaml:"hopskotch"`
	GCNClassic struct {
		Topics []string `yaml:"topics"`
	} `yaml:"gcn_classic"`
}

var defaultHopskotchTopics = []string{
	"hermes.test",
	"tomtoolkit.test",
	"gcn.circular",
	"igwn.gwalert",
	"sys.heartbeat",
}

var defaultGCNClassicTopics = []string{
	"gcn.classic.text.LVC_PRELIMINARY",
	"gcn.classic.text.LVC_INITIAL",
	"gcn.classic.text.LVC_UPDATE",
	"gcn.classic.text.LVC_RETRACTION",
	"gcn.classic.text.LVC_COUNTERPART",
	"gcn.classic.text.ICECUBE_ASTROTRACK_GOLD",
	"gcn.classic.text.ICECUBE_ASTROTRACK_BRONZE",
	"gcn.classic.text.ICECUBE_CASCADE",
}

func loadStreamsConfig(log *logger.Logger) streamsConfig {
	var cfg streamsConfig
	path := utils.GetEnv("STREAMS_CONFIG", "", log)
	if path == "" {
		return cfg
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn("Could not read streams config, using defaults", "path", path, "error", err)
		return cfg
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		log.Warn("Could not parse streams config, using defaults", "path", path, "error", err)
		return streamsConfig{}
	}
	return cfg
}

func main() {
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

	cfg := loadStreamsConfig(log)
	hopTopics := cfg.Hopskotch.Topics
	if len(hopTopics) == 0 {
		hopTopics = defaultHopskotchTopics
	}
	gcnTopics := cfg.GCNClassic.Topics
	if len(gcnTopics) == 0 {
		gcnTopics = defaultGCNClassicTopics
	}

	hopStream, err := stream.New(log, stream.Config{
		Broker:   utils.GetEnv("HOPSKOTCH_BROKER", stream.DefaultBroker, log),
		Username: utils.GetEnv("HOP_USERNAME", "", log),
		Password: utils.GetEnv("HOP_PASSWORD", "", log),
		GroupID:  utils.GetEnv("HOPSKOTCH_GROUP_ID", "hermes-readstreams", log),
	})
	if err != nil {
		log.Error("Could not open Hopskotch stream", "error", err)
		os.Exit(1)
	}

	gcnStream, err := stream.New(log, stream.Config{
		Broker:   utils.GetEnv("GCN_CLASSIC_BROKER", "kafka.gcn.nasa.gov:9092", log),
		Username: utils.GetEnv("GCN_CLASSIC_USERNAME", "", log),
		Password: utils.GetEnv("GCN_CLASSIC_PASSWORD", "", log),
		GroupID:  utils.GetEnv("GCN_CLASSIC_OVER_KAFKA_GROUP_ID", "hermes-gcn-classic", log),
	})
	if err != nil {
		log.Warn("Could not open GCN Classic stream, consuming Hopskotch only", "error", err)
		gcnStream = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		runner := ingest.NewRunner(log, hopStream, handlers)
		return runner.Run(ctx, hopTopics)
	})
	if gcnStream != nil {
		group.Go(func() error {
			runner := ingest.NewRunner(log, gcnStream, handlers)
			return runner.Run(ctx, gcnTopics)
		})
	}

	log.Info("Consuming streams", "hopskotch_topics", hopTopics, "gcn_classic_topics", gcnTopics)
	if err := group.Wait(); err != nil {
		log.Error("Stream consumption stopped", "error", err)
		os.Exit(1)
	}
}
