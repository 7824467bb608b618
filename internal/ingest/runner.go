package ingest

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/hermes-mma/hermes-backend/internal/logger"
	"github.com/hermes-mma/hermes-backend/internal/stream"
)

// HandlerFunc processes one raw Kafka message from the named topic.
type HandlerFunc func(ctx context.Context, raw kafka.Message, topic string) error

// Runner consumes a set of topics concurrently, dispatching each to the
// handler its topic selects. Offsets commit only after the handler returns
// without error, so a crash re-delivers rather than drops.
type Runner struct {
	log      *logger.Logger
	streams  *stream.Client
	handlers *Handlers
}

func NewRunner(log *logger.Logger, streams *stream.Client, handlers *Handlers) *Runner {
	return &Runner{
		log:      log.With("component", "IngestRunner"),
		streams:  streams,
		handlers: handlers,
	}
}

// HandlerFor selects the handler for a topic. Topics without dedicated
// handling fall through to the generic store-it-all handler.
func (r *Runner) HandlerFor(topic string) HandlerFunc {
	lower := strings.ToLower(topic)
	switch {
	case strings.Contains(lower, "heartbeat"):
		return r.handlers.HandleHeartbeat
	case lower == "gcn.circular" || strings.HasSuffix(lower, ".gcn.circular"):
		return r.handlers.HandleCircular
	case lower == "hermes.test" || lower == "tomtoolkit.test":
		return r.handlers.HandleHermes
	case lower == "igwn.gwalert":
		return r.handlers.HandleIGWN
	case strings.HasPrefix(lower, "gcn.classic.text."):
		return r.handlers.HandleGCNClassic
	default:
		return r.handlers.HandleGeneric
	}
}

// Run consumes every topic until the context is canceled or a reader fails
// unrecoverably.
func (r *Runner) Run(ctx context.Context, topics []string) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, topic := range topics {
		topic := topic
		group.Go(func() error {
			return r.consume(ctx, topic)
		})
	}
	return group.Wait()
}

func (r *Runner) consume(ctx context.Context, topic string) error {
	reader := r.streams.Reader(topic)
	defer reader.Close()

	handler := r.HandlerFor(topic)
	r.log.Info("Consuming topic", "topic", topic)

	for {
		raw, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := handler(ctx, raw, topic); err != nil {
			r.log.Error("Handler failed, leaving message uncommitted",
				"topic", topic, "offset", raw.Offset, "error", err)
			continue
		}
		if err := reader.CommitMessages(ctx, raw); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
