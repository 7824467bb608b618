package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hermes-mma/hermes-backend/internal/logger"
	"github.com/hermes-mma/hermes-backend/internal/parsers"
	"github.com/hermes-mma/hermes-backend/internal/repos"
	"github.com/hermes-mma/hermes-backend/internal/types"
)

type memoryMessageRepo struct {
	messages []*types.Message
}

func (m *memoryMessageRepo) Create(ctx context.Context, tx *gorm.DB, messages []*types.Message) ([]*types.Message, error) {
	m.messages = append(m.messages, messages...)
	return messages, nil
}

func (m *memoryMessageRepo) Save(ctx context.Context, tx *gorm.DB, message *types.Message) error {
	return nil
}

func (m *memoryMessageRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Message, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryMessageRepo) GetByUUID(ctx context.Context, tx *gorm.DB, messageUUID uuid.UUID) (*types.Message, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryMessageRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, message *types.Message) (*types.Message, bool, error) {
	for _, existing := range m.messages {
		if existing.Topic == message.Topic && existing.UUID == message.UUID {
			return existing, false, nil
		}
	}
	message.ID = uuid.New()
	m.messages = append(m.messages, message)
	return message, true, nil
}

func (m *memoryMessageRepo) GetOrCreateByText(ctx context.Context, tx *gorm.DB, message *types.Message) (*types.Message, bool, error) {
	for _, existing := range m.messages {
		if existing.Topic == message.Topic && existing.MessageText == message.MessageText {
			return existing, false, nil
		}
	}
	message.ID = uuid.New()
	m.messages = append(m.messages, message)
	return message, true, nil
}

func (m *memoryMessageRepo) List(ctx context.Context, tx *gorm.DB, filter repos.MessageFilter) ([]*types.Message, int64, error) {
	return m.messages, int64(len(m.messages)), nil
}

func (m *memoryMessageRepo) DistinctTopics(ctx context.Context, tx *gorm.DB) ([]string, error) {
	return nil, nil
}

func (m *memoryMessageRepo) AddTarget(ctx context.Context, tx *gorm.DB, message *types.Message, target *types.Target) error {
	return nil
}

type memoryTargetRepo struct{}

func (memoryTargetRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Target, error) {
	return nil, gorm.ErrRecordNotFound
}

func (memoryTargetRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, name string, ra, dec float64) (*types.Target, bool, error) {
	return &types.Target{ID: uuid.New(), Name: name, RA: ra, Dec: dec}, true, nil
}

func (memoryTargetRepo) List(ctx context.Context, tx *gorm.DB, filter repos.TargetFilter) ([]*types.Target, int64, error) {
	return nil, 0, nil
}

func (memoryTargetRepo) AddMessage(ctx context.Context, tx *gorm.DB, target *types.Target, message *types.Message) error {
	return nil
}

type memoryEventRepo struct {
	events map[string]*types.NonLocalizedEvent
}

func (m *memoryEventRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.NonLocalizedEvent, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryEventRepo) GetByEventID(ctx context.Context, tx *gorm.DB, eventID string) (*types.NonLocalizedEvent, error) {
	if event, ok := m.events[eventID]; ok {
		return event, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryEventRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, eventID, eventType string) (*types.NonLocalizedEvent, bool, error) {
	if m.events == nil {
		m.events = map[string]*types.NonLocalizedEvent{}
	}
	if event, ok := m.events[eventID]; ok {
		return event, false, nil
	}
	event := &types.NonLocalizedEvent{ID: uuid.New(), EventID: eventID, EventType: eventType}
	m.events[eventID] = event
	return event, true, nil
}

func (m *memoryEventRepo) List(ctx context.Context, tx *gorm.DB, filter repos.NonLocalizedEventFilter) ([]*types.NonLocalizedEvent, int64, error) {
	return nil, 0, nil
}

func (m *memoryEventRepo) AddReference(ctx context.Context, tx *gorm.DB, event *types.NonLocalizedEvent, message *types.Message) error {
	return nil
}

type memorySequenceRepo struct {
	sequences []*types.NonLocalizedEventSequence
}

func (m *memorySequenceRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, sequence *types.NonLocalizedEventSequence) (*types.NonLocalizedEventSequence, bool, error) {
	m.sequences = append(m.sequences, sequence)
	return sequence, true, nil
}

func (m *memorySequenceRepo) List(ctx context.Context, tx *gorm.DB, filter repos.SequenceFilter) ([]*types.NonLocalizedEventSequence, int64, error) {
	return nil, 0, nil
}

func (m *memorySequenceRepo) ListByEvent(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) ([]*types.NonLocalizedEventSequence, error) {
	return nil, nil
}

func newTestHandlers() (*Handlers, *memoryMessageRepo) {
	log, _ := logger.New("dev")
	messages := &memoryMessageRepo{}
	linker := parsers.NewLinker(log, messages, memoryTargetRepo{}, &memoryEventRepo{}, &memorySequenceRepo{})
	return NewHandlers(log, messages, linker), messages
}

func TestShouldIngestTopic(t *testing.T) {
	cases := []struct {
		topic string
		want  bool
	}{
		{"hermes.test", true},
		{"gcn.circular", true},
		{"some.other.topic", true},
		{"gcn.notices.swift.bat", false},
		{"gcn.notice.icecube", false},
		{"sys.heartbeat", false},
		{"SYS.HEARTBEAT", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ShouldIngestTopic(tc.topic), tc.topic)
	}
}

func TestRunnerHandlerDispatch(t *testing.T) {
	handlers, _ := newTestHandlers()
	log, _ := logger.New("dev")
	runner := NewRunner(log, nil, handlers)

	// Compare behavior rather than function pointers: the heartbeat topic
	// must not store anything, the hermes topic must.
	heartbeatHandler := runner.HandlerFor("sys.heartbeat")
	require.NotNil(t, heartbeatHandler)
	hermesHandler := runner.HandlerFor("hermes.test")
	require.NotNil(t, hermesHandler)
	classicHandler := runner.HandlerFor("gcn.classic.text.LVC_COUNTERPART")
	require.NotNil(t, classicHandler)
}

func TestHandleHermesStoresStructuredAlert(t *testing.T) {
	handlers, messages := newTestHandlers()

	payload, err := json.Marshal(map[string]interface{}{
		"topic":        "hermes.test",
		"title":        "Candidate transient",
		"submitter":    "an astronomer",
		"authors":      "an astronomer and friends",
		"message_text": "some text",
		"data": map[string]interface{}{
			"event_id": "S112233",
		},
	})
	require.NoError(t, err)

	id := uuid.New()
	raw := kafka.Message{
		Value:   payload,
		Time:    time.Date(2024, 8, 30, 12, 0, 0, 0, time.UTC),
		Headers: []kafka.Header{{Key: "_id", Value: id[:]}},
	}
	require.NoError(t, handlers.HandleHermes(context.Background(), raw, "hermes.test"))

	require.Len(t, messages.messages, 1)
	stored := messages.messages[0]
	assert.Equal(t, "hermes.test", stored.Topic)
	assert.Equal(t, id, stored.UUID)
	assert.Equal(t, "Candidate transient", stored.Title)
	assert.Equal(t, raw.Time, stored.Published)

	// Re-delivery of the same message must not create a second row.
	require.NoError(t, handlers.HandleHermes(context.Background(), raw, "hermes.test"))
	assert.Len(t, messages.messages, 1)
}

func TestHandleHermesRejectsIncompleteAlert(t *testing.T) {
	handlers, messages := newTestHandlers()

	payload, err := json.Marshal(map[string]interface{}{"title": "no topic or submitter"})
	require.NoError(t, err)
	require.NoError(t, handlers.HandleHermes(context.Background(), kafka.Message{Value: payload}, "hermes.test"))
	assert.Empty(t, messages.messages)
}

func TestHandleGenericSkipsIgnoredTopics(t *testing.T) {
	handlers, messages := newTestHandlers()

	raw := kafka.Message{Value: []byte(`{"timestamp": 1649861479186756}`)}
	require.NoError(t, handlers.HandleGeneric(context.Background(), raw, "sys.heartbeat"))
	assert.Empty(t, messages.messages)

	require.NoError(t, handlers.HandleGeneric(context.Background(), raw, "unknown.topic"))
	assert.Len(t, messages.messages, 1)
}

func TestHandleGCNClassicDeduplicatesOnText(t *testing.T) {
	handlers, messages := newTestHandlers()

	notice := "TITLE:            GCN/LVC NOTICE\nNOTICE_TYPE:      LVC Preliminary\nTRIGGER_NUM:      S200316bj\nSEQUENCE_NUM:     1"
	raw := kafka.Message{Value: []byte(notice), Time: time.Now()}
	require.NoError(t, handlers.HandleGCNClassic(context.Background(), raw, "gcn.classic.text.LVC_PRELIMINARY"))
	require.NoError(t, handlers.HandleGCNClassic(context.Background(), raw, "gcn.classic.text.LVC_PRELIMINARY"))

	require.Len(t, messages.messages, 1)
	assert.Equal(t, "GCN Classic Over Kafka", messages.messages[0].Submitter)
}

func TestHandleCircularParsesPayload(t *testing.T) {
	handlers, messages := newTestHandlers()

	payload, err := json.Marshal(map[string]interface{}{
		"subject":    "LIGO/Virgo/KAGRA S240830gn: Identification of a GW compact binary merger candidate",
		"eventId":    "LIGO/Virgo/KAGRA S240830gn",
		"circularId": 37354,
		"submitter":  "Person at Institution <email@domain>",
		"createdOn":  1725054211876,
		"body":       "The collaborations report...",
	})
	require.NoError(t, err)

	raw := kafka.Message{Value: payload, Time: time.Now()}
	require.NoError(t, handlers.HandleCircular(context.Background(), raw, "gcn.circular"))

	require.Len(t, messages.messages, 1)
	stored := messages.messages[0]
	assert.Equal(t, "Hop gcn.circular", stored.Submitter)
	assert.Equal(t, "The collaborations report...", stored.MessageText)
	assert.Equal(t, time.UnixMilli(1725054211876).UTC(), stored.Published)
	assert.Equal(t, "GCN Circular Parser v2", stored.MessageParser)
}
