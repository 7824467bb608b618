package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/types"
)

type SequenceFilter struct {
  EventIDContains       string
  SequenceNumber        int
  SequenceTypes         []string
  ExcludeSequenceTypes  []string
  Limit                 int
  Offset                int
}

type NonLocalizedEventSequenceRepo interface {
  GetOrCreate(ctx context.Context, tx *gorm.DB, sequence *types.NonLocalizedEventSequence) (*types.NonLocalizedEventSequence, bool, error)
  List(ctx context.Context, tx *gorm.DB, filter SequenceFilter) ([]*types.NonLocalizedEventSequence, int64, error)
  ListByEvent(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) ([]*types.NonLocalizedEventSequence, error)
}

type nonLocalizedEventSequenceRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewNonLocalizedEventSequenceRepo(db *gorm.DB, baseLog *logger.Logger) NonLocalizedEventSequenceRepo {
  repoLog := baseLog.With("repo", "NonLocalizedEventSequenceRepo")
  return &nonLocalizedEventSequenceRepo{db: db, log: repoLog}
}

// GetOrCreate matches on (event, sequence_number, sequence_type) so a
// re-ingested alert does not duplicate the sequence row.
func (sr *nonLocalizedEventSequenceRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, sequence *types.NonLocalizedEventSequence) (*types.NonLocalizedEventSequence, bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  var existing types.NonLocalizedEventSequence
  err := transaction.WithContext(ctx).
    Where("event_id = ? AND sequence_number = ? AND sequence_type = ?",
      sequence.EventID, sequence.SequenceNumber, sequence.SequenceType).
    First(&existing).Error
  if err == nil {
    return &existing, false, nil
  }
  if err != gorm.ErrRecordNotFound {
    return nil, false, err
  }

  if sequence.ID == uuid.Nil {
    sequence.ID = uuid.New()
  }
  if err := transaction.WithContext(ctx).Create(sequence).Error; err != nil {
    return nil, false, err
  }
  return sequence, true, nil
}

func (sr *nonLocalizedEventSequenceRepo) List(ctx context.Context, tx *gorm.DB, filter SequenceFilter) ([]*types.NonLocalizedEventSequence, int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  query := transaction.WithContext(ctx).Model(&types.NonLocalizedEventSequence{}).
    Joins("JOIN nonlocalizedevent ON nonlocalizedevent.id = nonlocalizedeventsequence.event_id")

  if filter.EventIDContains != "" {
    query = query.Where("nonlocalizedevent.event_id ILIKE ?", "%"+filter.EventIDContains+"%")
  }
  if filter.SequenceNumber > 0 {
    query = query.Where("nonlocalizedeventsequence.sequence_number = ?", filter.SequenceNumber)
  }
  if len(filter.SequenceTypes) > 0 {
    query = query.Where("nonlocalizedeventsequence.sequence_type IN ?", filter.SequenceTypes)
  }
  if len(filter.ExcludeSequenceTypes) > 0 {
    query = query.Where("nonlocalizedeventsequence.sequence_type NOT IN ?", filter.ExcludeSequenceTypes)
  }

  var total int64
  if err := query.Count(&total).Error; err != nil {
    return nil, 0, err
  }

  var results []*types.NonLocalizedEventSequence
  query = query.Preload("Event").Order("nonlocalizedeventsequence.sequence_number")
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

func (sr *nonLocalizedEventSequenceRepo) ListByEvent(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) ([]*types.NonLocalizedEventSequence, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  var results []*types.NonLocalizedEventSequence
  if err := transaction.WithContext(ctx).
    Where("event_id = ?", eventID).
    Order("sequence_number").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
