package ingest

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hermes-mma/hermes-backend/internal/logger"
	"github.com/hermes-mma/hermes-backend/internal/parsers"
	"github.com/hermes-mma/hermes-backend/internal/repos"
	"github.com/hermes-mma/hermes-backend/internal/stream"
	"github.com/hermes-mma/hermes-backend/internal/types"
)

// Topics containing these pieces never reach the generic handler: notices
// have dedicated handling and heartbeats are noise.
var topicPiecesToIgnore = []string{
	"gcn.notice",
	"heartbeat",
}

// ShouldIngestTopic reports whether the generic handler stores messages from
// this topic.
func ShouldIngestTopic(topic string) bool {
	lower := strings.ToLower(topic)
	for _, piece := range topicPiecesToIgnore {
		if strings.Contains(lower, piece) {
			return false
		}
	}
	return true
}

// Handlers turns raw Kafka messages into Message rows and runs the matching
// parser over each.
type Handlers struct {
	log      *logger.Logger
	messages repos.MessageRepo

	circularParser    parsers.Parser
	hermesParser      parsers.Parser
	igwnParser        parsers.Parser
	counterpartParser parsers.Parser
	lvcParser         parsers.Parser
	icecubeParser     parsers.Parser
	noticeParser      parsers.Parser
}

func NewHandlers(log *logger.Logger, messages repos.MessageRepo, linker *parsers.Linker) *Handlers {
	return &Handlers{
		log:               log.With("component", "IngestHandlers"),
		messages:          messages,
		circularParser:    parsers.NewGCNCircularParser(linker),
		hermesParser:      parsers.NewHermesMessageParser(linker),
		igwnParser:        parsers.NewIGWNAlertParser(linker),
		counterpartParser: parsers.NewGCNLVCCounterpartNoticeParser(linker),
		lvcParser:         parsers.NewGCNLVCNoticeParser(linker),
		icecubeParser:     parsers.NewIcecubeNoticePlaintextParser(linker),
		noticeParser:      parsers.NewGCNNoticePlaintextParser(linker),
	}
}

// HandleGeneric ingests an alert from a topic we have no a priori knowledge
// of. The payload is stored verbatim; JSON payloads also land in the data
// section.
func (h *Handlers) HandleGeneric(ctx context.Context, raw kafka.Message, topic string) error {
	if !ShouldIngestTopic(topic) {
		return nil
	}

	message := &types.Message{
		Topic:       topic,
		UUID:        stream.MessageUUID(raw),
		Published:   stream.PublishedTime(raw),
		MessageText: string(raw.Value),
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw.Value, &data); err == nil {
		if encoded, err := json.Marshal(data); err == nil {
			message.Data = encoded
		}
	}

	message, created, err := h.messages.GetOrCreate(ctx, nil, message)
	if err != nil {
		return err
	}
	h.logIngest(message, created)
	return nil
}

// HandleCircular ingests a GCN circular from the gcn.circular topic. The
// payload is JSON with subject, body, circularId, submitter, eventId and a
// createdOn epoch in milliseconds.
func (h *Handlers) HandleCircular(ctx context.Context, raw kafka.Message, topic string) error {
	var circular map[string]interface{}
	if err := json.Unmarshal(raw.Value, &circular); err != nil {
		h.log.Error("Unable to decode circular payload", "topic", topic, "error", err)
		return nil
	}

	body, _ := circular["body"].(string)
	title, _ := circular["subject"].(string)
	authors, _ := circular["submitter"].(string)

	published := stream.PublishedTime(raw)
	if createdOn, ok := circular["createdOn"].(float64); ok {
		published = time.UnixMilli(int64(createdOn)).UTC()
	}

	data, err := json.Marshal(circular)
	if err != nil {
		return err
	}
	message := &types.Message{
		Topic:       topic,
		UUID:        stream.MessageUUID(raw),
		Title:       title,
		Submitter:   "Hop gcn.circular",
		Authors:     authors,
		Data:        data,
		MessageText: body,
		Published:   published,
	}
	message, created, err := h.messages.GetOrCreate(ctx, nil, message)
	if err != nil {
		return err
	}
	h.logIngest(message, created)

	_, err = h.circularParser.Parse(ctx, message)
	return err
}

// HandleHermes ingests an alert we published ourselves. These arrive fully
// structured with topic, title, submitter, authors, data and message_text.
func (h *Handlers) HandleHermes(ctx context.Context, raw kafka.Message, topic string) error {
	var alert struct {
		Topic       string                 `json:"topic"`
		Title       string                 `json:"title"`
		Submitter   string                 `json:"submitter"`
		Authors     string                 `json:"authors"`
		Data        map[string]interface{} `json:"data"`
		MessageText string                 `json:"message_text"`
	}
	if err := json.Unmarshal(raw.Value, &alert); err != nil {
		h.log.Error("Unable to decode hermes payload", "topic", topic, "error", err)
		return nil
	}
	if alert.Topic == "" || alert.Title == "" || alert.Submitter == "" {
		h.log.Error("Required key not found in hermes alert", "topic", topic)
		return nil
	}

	data, err := json.Marshal(alert.Data)
	if err != nil {
		return err
	}
	message := &types.Message{
		Topic:       alert.Topic,
		UUID:        stream.MessageUUID(raw),
		Title:       alert.Title,
		Submitter:   alert.Submitter,
		Authors:     alert.Authors,
		Data:        data,
		MessageText: alert.MessageText,
		Published:   stream.PublishedTime(raw),
	}
	message, created, err := h.messages.GetOrCreate(ctx, nil, message)
	if err != nil {
		return err
	}
	h.logIngest(message, created)

	_, err = h.hermesParser.Parse(ctx, message)
	return err
}

// HandleIGWN ingests a gravitational wave alert from igwn.gwalert. The
// payload is the alert document itself; it becomes the data section and the
// IGWN parser links the event and sequence.
func (h *Handlers) HandleIGWN(ctx context.Context, raw kafka.Message, topic string) error {
	var alert map[string]interface{}
	if err := json.Unmarshal(raw.Value, &alert); err != nil {
		h.log.Error("Unable to decode igwn payload", "topic", topic, "error", err)
		return nil
	}

	title, _ := alert["superevent_id"].(string)
	if alertType, ok := alert["alert_type"].(string); ok {
		title = title + " - " + alertType
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	message := &types.Message{
		Topic:     topic,
		UUID:      stream.MessageUUID(raw),
		Title:     title,
		Submitter: "IGWN Alert Stream",
		Data:      data,
		Published: stream.PublishedTime(raw),
	}
	message, created, err := h.messages.GetOrCreate(ctx, nil, message)
	if err != nil {
		return err
	}
	h.logIngest(message, created)

	_, err = h.igwnParser.Parse(ctx, message)
	return err
}

// HandleGCNClassic ingests a plaintext notice from a GCN Classic over Kafka
// topic. These streams attach no id headers, so dedupe runs on the raw text.
// The first matching parser wins, falling through to the generic notice
// parser.
func (h *Handlers) HandleGCNClassic(ctx context.Context, raw kafka.Message, topic string) error {
	message := &types.Message{
		Topic:       topic,
		UUID:        stream.MessageUUID(raw),
		Submitter:   "GCN Classic Over Kafka",
		MessageText: string(raw.Value),
		Published:   stream.PublishedTime(raw),
	}
	message, created, err := h.messages.GetOrCreateByText(ctx, nil, message)
	if err != nil {
		return err
	}
	if !created {
		h.log.Info("Ignoring duplicate message", "id", message.ID.String(), "topic", topic)
		return nil
	}
	h.logIngest(message, created)

	for _, parser := range []parsers.Parser{
		h.counterpartParser,
		h.lvcParser,
		h.icecubeParser,
		h.noticeParser,
	} {
		matched, err := parser.Parse(ctx, message)
		if err != nil {
			h.log.Warn("Parser failed on message", "parser", parser.Name(), "id", message.ID.String(), "error", err)
			continue
		}
		if matched {
			return nil
		}
	}
	return nil
}

// HandleHeartbeat logs the broker heartbeat without storing anything.
func (h *Handlers) HandleHeartbeat(ctx context.Context, raw kafka.Message, topic string) error {
	var heartbeat struct {
		Timestamp int64  `json:"timestamp"`
		Count     int64  `json:"count"`
		Beat      string `json:"beat"`
	}
	if err := json.Unmarshal(raw.Value, &heartbeat); err != nil {
		return nil
	}
	// The heartbeat timestamp is microseconds since the epoch.
	h.log.Info("heartbeat",
		"utc_time_iso", time.UnixMicro(heartbeat.Timestamp).UTC().Format(time.RFC3339Nano),
		"count", heartbeat.Count,
		"beat", heartbeat.Beat)
	return nil
}

func (h *Handlers) logIngest(message *types.Message, created bool) {
	if created {
		h.log.Info("Created new message", "id", message.ID.String(), "topic", message.Topic)
	} else {
		h.log.Debug("Found existing message", "id", message.ID.String(), "topic", message.Topic)
	}
}
