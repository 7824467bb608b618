package services

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/repos"
  "github.com/hermes-mma/hermes-backend/internal/types"
)

type TargetService interface {
  List(ctx context.Context, filter repos.TargetFilter) ([]*types.Target, int64, error)
  Get(ctx context.Context, id uuid.UUID) (*types.Target, error)
}

type targetService struct {
  db         *gorm.DB
  log        *logger.Logger
  targetRepo repos.TargetRepo
}

func NewTargetService(db *gorm.DB, log *logger.Logger, targetRepo repos.TargetRepo) TargetService {
  serviceLog := log.With("service", "TargetService")
  return &targetService{
    db:         db,
    log:        serviceLog,
    targetRepo: targetRepo,
  }
}

func (ts *targetService) List(ctx context.Context, filter repos.TargetFilter) ([]*types.Target, int64, error) {
  return ts.targetRepo.List(ctx, nil, filter)
}

func (ts *targetService) Get(ctx context.Context, id uuid.UUID) (*types.Target, error) {
  return ts.targetRepo.GetByID(ctx, nil, id)
}
