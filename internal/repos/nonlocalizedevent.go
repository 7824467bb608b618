package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/types"
)

type NonLocalizedEventFilter struct {
  EventIDContains string
  EventType       string
  Limit           int
  Offset          int
}

type NonLocalizedEventRepo interface {
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.NonLocalizedEvent, error)
  GetByEventID(ctx context.Context, tx *gorm.DB, eventID string) (*types.NonLocalizedEvent, error)
  GetOrCreate(ctx context.Context, tx *gorm.DB, eventID, eventType string) (*types.NonLocalizedEvent, bool, error)
  List(ctx context.Context, tx *gorm.DB, filter NonLocalizedEventFilter) ([]*types.NonLocalizedEvent, int64, error)
  AddReference(ctx context.Context, tx *gorm.DB, event *types.NonLocalizedEvent, message *types.Message) error
}

type nonLocalizedEventRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewNonLocalizedEventRepo(db *gorm.DB, baseLog *logger.Logger) NonLocalizedEventRepo {
  repoLog := baseLog.With("repo", "NonLocalizedEventRepo")
  return &nonLocalizedEventRepo{db: db, log: repoLog}
}

func (er *nonLocalizedEventRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.NonLocalizedEvent, error) {
  transaction := tx
  if transaction == nil {
    transaction = er.db
  }

  var result types.NonLocalizedEvent
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (er *nonLocalizedEventRepo) GetByEventID(ctx context.Context, tx *gorm.DB, eventID string) (*types.NonLocalizedEvent, error) {
  transaction := tx
  if transaction == nil {
    transaction = er.db
  }

  var result types.NonLocalizedEvent
  if err := transaction.WithContext(ctx).
    Where("event_id = ?", eventID).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (er *nonLocalizedEventRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, eventID, eventType string) (*types.NonLocalizedEvent, bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = er.db
  }

  var existing types.NonLocalizedEvent
  err := transaction.WithContext(ctx).
    Where("event_id = ?", eventID).
    First(&existing).Error
  if err == nil {
    return &existing, false, nil
  }
  if err != gorm.ErrRecordNotFound {
    return nil, false, err
  }

  if eventType == "" {
    eventType = types.EventTypeGravitationalWave
  }
  event := &types.NonLocalizedEvent{ID: uuid.New(), EventID: eventID, EventType: eventType}
  if err := transaction.WithContext(ctx).Create(event).Error; err != nil {
    return nil, false, err
  }
  return event, true, nil
}

func (er *nonLocalizedEventRepo) List(ctx context.Context, tx *gorm.DB, filter NonLocalizedEventFilter) ([]*types.NonLocalizedEvent, int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = er.db
  }

  query := transaction.WithContext(ctx).Model(&types.NonLocalizedEvent{})

  if filter.EventIDContains != "" {
    query = query.Where("event_id ILIKE ?", "%"+filter.EventIDContains+"%")
  }
  if filter.EventType != "" {
    query = query.Where("event_type = ?", filter.EventType)
  }

  var total int64
  if err := query.Count(&total).Error; err != nil {
    return nil, 0, err
  }

  var results []*types.NonLocalizedEvent
  query = query.Order("event_id")
  if filter.Limit > 0 {
    query = query.Limit(filter.Limit)
  }
  if filter.Offset > 0 {
    query = query.Offset(filter.Offset)
  }
  if err := query.Find(&results).Error; err != nil {
    return nil, 0, err
  }
  return results, total, nil
}

func (er *nonLocalizedEventRepo) AddReference(ctx context.Context, tx *gorm.DB, event *types.NonLocalizedEvent, message *types.Message) error {
  transaction := tx
  if transaction == nil {
    transaction = er.db
  }
  return transaction.WithContext(ctx).Model(event).Association("References").Append(message)
}
