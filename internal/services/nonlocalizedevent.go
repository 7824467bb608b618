package services

import (
  "context"

  "gorm.io/gorm"

  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/repos"
  "github.com/hermes-mma/hermes-backend/internal/types"
)

type NonLocalizedEventService interface {
  List(ctx context.Context, filter repos.NonLocalizedEventFilter) ([]*types.NonLocalizedEvent, int64, error)
  Get(ctx context.Context, eventID string) (*types.NonLocalizedEvent, error)
  Sequences(ctx context.Context, eventID string) ([]*types.NonLocalizedEventSequence, error)
  ListSequences(ctx context.Context, filter repos.SequenceFilter) ([]*types.NonLocalizedEventSequence, int64, error)
}

type nonLocalizedEventService struct {
  db           *gorm.DB
  log          *logger.Logger
  eventRepo    repos.NonLocalizedEventRepo
  sequenceRepo repos.NonLocalizedEventSequenceRepo
}

func NewNonLocalizedEventService(
  db *gorm.DB,
  log *logger.Logger,
  eventRepo repos.NonLocalizedEventRepo,
  sequenceRepo repos.NonLocalizedEventSequenceRepo,
) NonLocalizedEventService {
  serviceLog := log.With("service", "NonLocalizedEventService")
  return &nonLocalizedEventService{
    db:           db,
    log:          serviceLog,
    eventRepo:    eventRepo,
    sequenceRepo: sequenceRepo,
  }
}

func (es *nonLocalizedEventService) List(ctx context.Context, filter repos.NonLocalizedEventFilter) ([]*types.NonLocalizedEvent, int64, error) {
  return es.eventRepo.List(ctx, nil, filter)
}

func (es *nonLocalizedEventService) Get(ctx context.Context, eventID string) (*types.NonLocalizedEvent, error) {
  return es.eventRepo.GetByEventID(ctx, nil, eventID)
}

// Sequences returns the alert iterations of an event by its public id, in
// sequence order.
func (es *nonLocalizedEventService) Sequences(ctx context.Context, eventID string) ([]*types.NonLocalizedEventSequence, error) {
  event, err := es.eventRepo.GetByEventID(ctx, nil, eventID)
  if err != nil {
    return nil, err
  }
  return es.sequenceRepo.ListByEvent(ctx, nil, event.ID)
}

func (es *nonLocalizedEventService) ListSequences(ctx context.Context, filter repos.SequenceFilter) ([]*types.NonLocalizedEventSequence, int64, error) {
  return es.sequenceRepo.List(ctx, nil, filter)
}
