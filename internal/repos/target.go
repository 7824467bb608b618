package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/types"
)

type TargetFilter struct {
  Name            string
  EventIDContains string
  ConeSearch      string
  PolygonSearch   string
  Limit           int
  Offset          int
}

type TargetRepo interface {
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Target, error)
  GetOrCreate(ctx context.Context, tx *gorm.DB, name string, ra, dec float64) (*types.Target, bool, error)
  List(ctx context.Context, tx *gorm.DB, filter TargetFilter) ([]*types.Target, int64, error)
  AddMessage(ctx context.Context, tx *gorm.DB, target *types.Target, message *types.Message) error
}

type targetRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewTargetRepo(db *gorm.DB, baseLog *logger.Logger) TargetRepo {
  repoLog := baseLog.With("repo", "TargetRepo")
  return &targetRepo{db: db, log: repoLog}
}

func (tr *targetRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Target, error) {
  transaction := tx
  if transaction == nil {
    transaction = tr.db
  }

  var result types.Target
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (tr *targetRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, name string, ra, dec float64) (*types.Target, bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = tr.db
  }

  var existing types.Target
  err := transaction.WithContext(ctx).
    Where("name = ? AND ra = ? AND dec = ?", name, ra, dec).
    First(&existing).Error
  if err == nil {
    return &existing, false, nil
  }
  if err != gorm.ErrRecordNotFound {
    return nil, false, err
  }

  target := &types.Target{ID: uuid.New(), Name: name, RA: ra, Dec: dec}
  if err := transaction.WithContext(ctx).Create(target).Error; err != nil {
    return nil, false, err
  }
  return target, true, nil
}

func (tr *targetRepo) List(ctx context.Context, tx *gorm.DB, filter TargetFilter) ([]*types.Target, int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = tr.db
  }

  query := transaction.WithContext(ctx).Model(&types.Target{})

  if filter.Name != "" {
    query = query.Where("target.name ILIKE ?", "%"+filter.Name+"%")
  }
  if filter.EventIDContains != "" {
    query = query.Where(
      "target.id IN (?)",
      transaction.WithContext(ctx).
        Table("target_messages").
        Select("target_messages.target_id").
        Joins("JOIN event_references ON event_references.message_id = target_messages.message_id").
        Joins("JOIN nonlocalizedevent ON nonlocalizedevent.id = event_references.non_localized_event_id").
        Where("nonlocalizedevent.event_id ILIKE ?", "%"+filter.EventIDContains+"%"),
    )
  }
  if filter.ConeSearch != "" {
    cone, err := ParseConeSearch(filter.ConeSearch)
    if err != nil {
      return nil, 0, err
    }
    query = query.Where(greatCircleCondition("target"), cone.Dec, cone.Dec, cone.RA, cone.Radius)
  }
  if filter.PolygonSearch != "" {
    polygon, err := ParsePolygonSearch(filter.PolygonSearch)
    if err != nil {
      return nil, 0, err
    }
    targetIDs, err := targetIDsInPolygon(ctx, transaction, polygon)
    if err != nil {
      return nil, 0, err
    }
    query = query.Where("target.id IN ?", emptyGuard(targetIDs))
  }

  var total int64
  if err := query.Count(&total).Error; err != nil {
    return nil, 0, err
  }

  var results []*types.Target
  query = query.Order("target.name")
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

func (tr *targetRepo) AddMessage(ctx context.Context, tx *gorm.DB, target *types.Target, message *types.Message) error {
  transaction := tx
  if transaction == nil {
    transaction = tr.db
  }
  return transaction.WithContext(ctx).Model(target).Association("Messages").Append(message)
}
