package parsers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hermes-mma/hermes-backend/internal/logger"
	"github.com/hermes-mma/hermes-backend/internal/repos"
	"github.com/hermes-mma/hermes-backend/internal/types"
)

// In-memory repo fakes. They implement just enough semantics for the
// parsers: get-or-create matching and link recording.

type fakeMessageRepo struct {
	saved []*types.Message
}

func (f *fakeMessageRepo) Create(ctx context.Context, tx *gorm.DB, messages []*types.Message) ([]*types.Message, error) {
	return messages, nil
}

func (f *fakeMessageRepo) Save(ctx context.Context, tx *gorm.DB, message *types.Message) error {
	f.saved = append(f.saved, message)
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Message, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMessageRepo) GetByUUID(ctx context.Context, tx *gorm.DB, messageUUID uuid.UUID) (*types.Message, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMessageRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, message *types.Message) (*types.Message, bool, error) {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	f.saved = append(f.saved, message)
	return message, true, nil
}

func (f *fakeMessageRepo) GetOrCreateByText(ctx context.Context, tx *gorm.DB, message *types.Message) (*types.Message, bool, error) {
	for _, existing := range f.saved {
		if existing.Topic == message.Topic && existing.MessageText == message.MessageText {
			return existing, false, nil
		}
	}
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	f.saved = append(f.saved, message)
	return message, true, nil
}

func (f *fakeMessageRepo) List(ctx context.Context, tx *gorm.DB, filter repos.MessageFilter) ([]*types.Message, int64, error) {
	return nil, 0, nil
}

func (f *fakeMessageRepo) DistinctTopics(ctx context.Context, tx *gorm.DB) ([]string, error) {
	return nil, nil
}

func (f *fakeMessageRepo) AddTarget(ctx context.Context, tx *gorm.DB, message *types.Message, target *types.Target) error {
	return nil
}

type fakeTargetRepo struct {
	targets map[string]*types.Target
	links   map[string][]uuid.UUID
}

func newFakeTargetRepo() *fakeTargetRepo {
	return &fakeTargetRepo{targets: map[string]*types.Target{}, links: map[string][]uuid.UUID{}}
}

func (f *fakeTargetRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Target, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTargetRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, name string, ra, dec float64) (*types.Target, bool, error) {
	key := fmt.Sprintf("%s|%f|%f", name, ra, dec)
	if target, ok := f.targets[key]; ok {
		return target, false, nil
	}
	target := &types.Target{ID: uuid.New(), Name: name, RA: ra, Dec: dec}
	f.targets[key] = target
	return target, true, nil
}

func (f *fakeTargetRepo) List(ctx context.Context, tx *gorm.DB, filter repos.TargetFilter) ([]*types.Target, int64, error) {
	return nil, 0, nil
}

func (f *fakeTargetRepo) AddMessage(ctx context.Context, tx *gorm.DB, target *types.Target, message *types.Message) error {
	f.links[target.Name] = append(f.links[target.Name], message.ID)
	return nil
}

type fakeEventRepo struct {
	events map[string]*types.NonLocalizedEvent
	links  map[string][]uuid.UUID
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: map[string]*types.NonLocalizedEvent{}, links: map[string][]uuid.UUID{}}
}

func (f *fakeEventRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.NonLocalizedEvent, error) {
	for _, event := range f.events {
		if event.ID == id {
			return event, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeEventRepo) GetByEventID(ctx context.Context, tx *gorm.DB, eventID string) (*types.NonLocalizedEvent, error) {
	if event, ok := f.events[eventID]; ok {
		return event, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeEventRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, eventID, eventType string) (*types.NonLocalizedEvent, bool, error) {
	if event, ok := f.events[eventID]; ok {
		return event, false, nil
	}
	if eventType == "" {
		eventType = types.EventTypeGravitationalWave
	}
	event := &types.NonLocalizedEvent{ID: uuid.New(), EventID: eventID, EventType: eventType}
	f.events[eventID] = event
	return event, true, nil
}

func (f *fakeEventRepo) List(ctx context.Context, tx *gorm.DB, filter repos.NonLocalizedEventFilter) ([]*types.NonLocalizedEvent, int64, error) {
	return nil, 0, nil
}

func (f *fakeEventRepo) AddReference(ctx context.Context, tx *gorm.DB, event *types.NonLocalizedEvent, message *types.Message) error {
	f.links[event.EventID] = append(f.links[event.EventID], message.ID)
	return nil
}

type fakeSequenceRepo struct {
	sequences []*types.NonLocalizedEventSequence
}

func (f *fakeSequenceRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, sequence *types.NonLocalizedEventSequence) (*types.NonLocalizedEventSequence, bool, error) {
	for _, existing := range f.sequences {
		if existing.EventID == sequence.EventID &&
			existing.SequenceNumber == sequence.SequenceNumber &&
			existing.SequenceType == sequence.SequenceType {
			return existing, false, nil
		}
	}
	sequence.ID = uuid.New()
	f.sequences = append(f.sequences, sequence)
	return sequence, true, nil
}

func (f *fakeSequenceRepo) List(ctx context.Context, tx *gorm.DB, filter repos.SequenceFilter) ([]*types.NonLocalizedEventSequence, int64, error) {
	return f.sequences, int64(len(f.sequences)), nil
}

func (f *fakeSequenceRepo) ListByEvent(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) ([]*types.NonLocalizedEventSequence, error) {
	var matched []*types.NonLocalizedEventSequence
	for _, sequence := range f.sequences {
		if sequence.EventID == eventID {
			matched = append(matched, sequence)
		}
	}
	return matched, nil
}

type fixture struct {
	linker    *Linker
	messages  *fakeMessageRepo
	targets   *fakeTargetRepo
	events    *fakeEventRepo
	sequences *fakeSequenceRepo
}

func newFixture() *fixture {
	log, _ := logger.New("dev")
	messages := &fakeMessageRepo{}
	targets := newFakeTargetRepo()
	events := newFakeEventRepo()
	sequences := &fakeSequenceRepo{}
	return &fixture{
		linker:    NewLinker(log, messages, targets, events, sequences),
		messages:  messages,
		targets:   targets,
		events:    events,
		sequences: sequences,
	}
}
