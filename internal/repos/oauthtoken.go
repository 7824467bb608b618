package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/types"
)

type OAuthTokenRepo interface {
  Get(ctx context.Context, tx *gorm.DB, username, integratedApp string) (*types.OAuthToken, error)
  UpdateOrCreate(ctx context.Context, tx *gorm.DB, token *types.OAuthToken) (*types.OAuthToken, error)
  Save(ctx context.Context, tx *gorm.DB, token *types.OAuthToken) error
  Delete(ctx context.Context, tx *gorm.DB, token *types.OAuthToken) error
}

type oauthTokenRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewOAuthTokenRepo(db *gorm.DB, baseLog *logger.Logger) OAuthTokenRepo {
  repoLog := baseLog.With("repo", "OAuthTokenRepo")
  return &oauthTokenRepo{db: db, log: repoLog}
}

func (or *oauthTokenRepo) Get(ctx context.Context, tx *gorm.DB, username, integratedApp string) (*types.OAuthToken, error) {
  transaction := tx
  if transaction == nil {
    transaction = or.db
  }

  var result types.OAuthToken
  if err := transaction.WithContext(ctx).
    Where("username = ? AND integrated_app = ?", username, integratedApp).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

// UpdateOrCreate enforces one stored token per (user, integrated app).
func (or *oauthTokenRepo) UpdateOrCreate(ctx context.Context, tx *gorm.DB, token *types.OAuthToken) (*types.OAuthToken, error) {
  transaction := tx
  if transaction == nil {
    transaction = or.db
  }

  var existing types.OAuthToken
  err := transaction.WithContext(ctx).
    Where("username = ? AND integrated_app = ?", token.Username, token.IntegratedApp).
    First(&existing).Error
  if err == gorm.ErrRecordNotFound {
    if token.ID == uuid.Nil {
      token.ID = uuid.New()
    }
    if err := transaction.WithContext(ctx).Create(token).Error; err != nil {
      return nil, err
    }
    return token, nil
  }
  if err != nil {
    return nil, err
  }

  existing.AccessToken = token.AccessToken
  existing.RefreshToken = token.RefreshToken
  existing.TokenType = token.TokenType
  existing.ExpiresAt = token.ExpiresAt
  existing.ExpiresIn = token.ExpiresIn
  if err := transaction.WithContext(ctx).Save(&existing).Error; err != nil {
    return nil, err
  }
  return &existing, nil
}

func (or *oauthTokenRepo) Save(ctx context.Context, tx *gorm.DB, token *types.OAuthToken) error {
  transaction := tx
  if transaction == nil {
    transaction = or.db
  }
  return transaction.WithContext(ctx).Save(token).Error
}

func (or *oauthTokenRepo) Delete(ctx context.Context, tx *gorm.DB, token *types.OAuthToken) error {
  transaction := tx
  if transaction == nil {
    transaction = or.db
  }
  return transaction.WithContext(ctx).Delete(token).Error
}
