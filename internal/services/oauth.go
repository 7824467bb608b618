package services

import (
  "context"
  "errors"
  "time"

  "gorm.io/gorm"

  "github.com/hermes-mma/hermes-backend/internal/clients/gcn"
  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/repos"
  "github.com/hermes-mma/hermes-backend/internal/types"
)

var ErrNoOAuthToken = errors.New("no oauth token stored for user")

// OAuthTokenService hands out live access tokens for integrated apps,
// refreshing stored tokens when they have expired.
type OAuthTokenService interface {
  GetAccessToken(ctx context.Context, username, integratedApp string) (string, error)
  StoreToken(ctx context.Context, token *types.OAuthToken) error
  DeleteToken(ctx context.Context, username, integratedApp string) error
}

type oauthTokenService struct {
  db        *gorm.DB
  log       *logger.Logger
  tokenRepo repos.OAuthTokenRepo
  gcnClient gcn.Client
}

func NewOAuthTokenService(
  db *gorm.DB,
  log *logger.Logger,
  tokenRepo repos.OAuthTokenRepo,
  gcnClient gcn.Client,
) OAuthTokenService {
  serviceLog := log.With("service", "OAuthTokenService")
  return &oauthTokenService{
    db:        db,
    log:       serviceLog,
    tokenRepo: tokenRepo,
    gcnClient: gcnClient,
  }
}

// GetAccessToken returns a valid access token for the user and app. Expired
// tokens are refreshed in place; a token that fails to refresh is deleted so
// the user is prompted to reconnect the app.
func (os *oauthTokenService) GetAccessToken(ctx context.Context, username, integratedApp string) (string, error) {
  token, err := os.tokenRepo.Get(ctx, nil, username, integratedApp)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return "", ErrNoOAuthToken
    }
    return "", err
  }

  if !token.IsExpired() {
    return token.AccessToken, nil
  }
  return os.refresh(ctx, token)
}

func (os *oauthTokenService) refresh(ctx context.Context, token *types.OAuthToken) (string, error) {
  if token.IntegratedApp != types.IntegratedAppGCN || token.RefreshToken == "" || os.gcnClient == nil {
    return "", ErrNoOAuthToken
  }

  details, err := os.gcnClient.RefreshToken(ctx, token.RefreshToken)
  if err != nil {
    os.log.Warn("Failed to refresh oauth token, deleting it",
      "username", token.Username, "app", token.IntegratedApp, "error", err)
    if deleteErr := os.tokenRepo.Delete(ctx, nil, token); deleteErr != nil {
      os.log.Error("Failed to delete stale oauth token", "username", token.Username, "error", deleteErr)
    }
    return "", ErrNoOAuthToken
  }

  token.AccessToken = details.AccessToken
  token.TokenType = details.TokenType
  token.ExpiresIn = details.ExpiresIn
  token.ExpiresAt = details.ExpiresAt
  token.UpdatedAt = time.Now()
  if err := os.tokenRepo.Save(ctx, nil, token); err != nil {
    return "", err
  }
  os.log.Info("Refreshed oauth token", "username", token.Username, "app", token.IntegratedApp)
  return token.AccessToken, nil
}

func (os *oauthTokenService) StoreToken(ctx context.Context, token *types.OAuthToken) error {
  _, err := os.tokenRepo.UpdateOrCreate(ctx, nil, token)
  return err
}

func (os *oauthTokenService) DeleteToken(ctx context.Context, username, integratedApp string) error {
  token, err := os.tokenRepo.Get(ctx, nil, username, integratedApp)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil
    }
    return err
  }
  return os.tokenRepo.Delete(ctx, nil, token)
}
