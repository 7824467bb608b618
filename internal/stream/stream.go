package stream

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/hermes-mma/hermes-backend/internal/logger"
)

// DefaultBroker is the Hopskotch Kafka endpoint. SASL_SSL with
// SCRAM-SHA-512, same as hop-client connects.
const DefaultBroker = "kafka.scimma.org:9092"

// idHeader carries the message UUID as 16 raw bytes on Hopskotch messages.
const idHeader = "_id"

type Config struct {
	Broker   string
	Username string
	Password string
	GroupID  string
	Earliest bool
}

// Client opens authenticated readers and writers against a Kafka broker.
type Client struct {
	log       *logger.Logger
	cfg       Config
	dialer    *kafka.Dialer
	transport *kafka.Transport
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.Broker) == "" {
		cfg.Broker = DefaultBroker
	}
	if strings.TrimSpace(cfg.Username) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, fmt.Errorf("missing stream credentials")
	}

	mechanism, err := scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("scram mechanism: %w", err)
	}

	return &Client{
		log: log.With("client", "StreamClient"),
		cfg: cfg,
		dialer: &kafka.Dialer{
			Timeout:       10 * time.Second,
			DualStack:     true,
			TLS:           &tls.Config{},
			SASLMechanism: mechanism,
		},
		transport: &kafka.Transport{
			TLS:  &tls.Config{},
			SASL: mechanism,
		},
	}, nil
}

// Reader subscribes to a single topic. With a group id set, offsets are
// committed against the group; Earliest only applies when the group has no
// committed offset yet.
func (c *Client) Reader(topic string) *kafka.Reader {
	startOffset := kafka.LastOffset
	if c.cfg.Earliest {
		startOffset = kafka.FirstOffset
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{c.cfg.Broker},
		GroupID:     c.cfg.GroupID,
		Topic:       topic,
		Dialer:      c.dialer,
		StartOffset: startOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
}

// Writer produces to a single topic.
func (c *Client) Writer(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:      kafka.TCP(c.cfg.Broker),
		Topic:     topic,
		Balancer:  &kafka.LeastBytes{},
		Transport: c.transport,
	}
}

// Publish writes a payload with the message UUID attached as the _id
// header, so downstream consumers (including our own ingest) can dedupe.
func (c *Client) Publish(ctx context.Context, topic string, id uuid.UUID, payload []byte) error {
	writer := c.Writer(topic)
	defer writer.Close()

	message := kafka.Message{
		Value:   payload,
		Headers: []kafka.Header{{Key: idHeader, Value: id[:]}},
	}
	if err := writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	c.log.Info("Published message", "topic", topic, "uuid", id.String())
	return nil
}

// MessageUUID extracts the UUID from the _id header, or mints one when the
// producer did not attach an id.
func MessageUUID(message kafka.Message) uuid.UUID {
	for _, header := range message.Headers {
		if header.Key != idHeader {
			continue
		}
		if id, err := uuid.FromBytes(header.Value); err == nil {
			return id
		}
		// Some producers send the uuid as its string form.
		if id, err := uuid.Parse(string(header.Value)); err == nil {
			return id
		}
	}
	return uuid.New()
}

// PublishedTime converts the broker timestamp to UTC. Zero timestamps fall
// back to now, which only happens on very old broker versions.
func PublishedTime(message kafka.Message) time.Time {
	if message.Time.IsZero() {
		return time.Now().UTC()
	}
	return message.Time.UTC()
}
