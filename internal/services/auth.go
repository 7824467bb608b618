package services

import (
  "context"
  "crypto/rand"
  "encoding/hex"
  "errors"
  "fmt"
  "time"

  "github.com/golang-jwt/jwt/v5"

  "github.com/hermes-mma/hermes-backend/internal/cache"
  "github.com/hermes-mma/hermes-backend/internal/clients/hopauth"
  "github.com/hermes-mma/hermes-backend/internal/logger"
)

const (
  sessionTokenTTL = 24 * time.Hour
  csrfTokenTTL    = time.Hour
  csrfCachePrefix = "csrf_token:"
)

var (
  ErrInvalidSessionToken = errors.New("invalid session token")
  ErrInvalidCSRFToken    = errors.New("invalid csrf token")
)

// Session is the authenticated identity carried through a request. The
// embedded SCRAM credential lets submissions publish to Kafka as the user.
type Session struct {
  Username    string
  Email       string
  Credentials *HopCredentials
}

type sessionClaims struct {
  Email        string `json:"email,omitempty"`
  HopUsername  string `json:"hop_username,omitempty"`
  HopPassword  string `json:"hop_password,omitempty"`
  jwt.RegisteredClaims
}

type AuthService interface {
  Login(ctx context.Context, username, email string) (string, error)
  Logout(ctx context.Context, token string) error
  ParseSessionToken(token string) (*Session, error)
  GenerateCSRFToken(ctx context.Context) (string, error)
  ValidateCSRFToken(ctx context.Context, token string) error
}

type authService struct {
  log    *logger.Logger
  hop    hopauth.Client
  store  cache.Cache
  secret []byte
}

func NewAuthService(log *logger.Logger, hop hopauth.Client, store cache.Cache, secret string) AuthService {
  serviceLog := log.With("service", "AuthService")
  return &authService{
    log:    serviceLog,
    hop:    hop,
    store:  store,
    secret: []byte(secret),
  }
}

// Login mints a session SCRAM credential for the user through hop-auth and
// wraps it, with the identity, in a signed session token.
func (as *authService) Login(ctx context.Context, username, email string) (string, error) {
  credential, err := as.hop.AuthorizeUser(ctx, username)
  if err != nil {
    as.log.Error("Failed to authorize user with hop-auth", "username", username, "error", err)
    return "", err
  }
  as.log.Info("User logged in", "username", username, "credential", credential.Username)
  return as.issueSessionToken(username, email, credential)
}

// Logout revokes the session credential held in the token. A token that no
// longer parses is treated as already logged out.
func (as *authService) Logout(ctx context.Context, token string) error {
  session, err := as.ParseSessionToken(token)
  if err != nil || session.Credentials == nil {
    return nil
  }
  if err := as.hop.DeauthorizeUser(ctx, session.Username, session.Credentials.Username); err != nil {
    as.log.Warn("Failed to revoke session credential", "username", session.Username, "error", err)
    return err
  }
  as.log.Info("User logged out", "username", session.Username)
  return nil
}

func (as *authService) issueSessionToken(username, email string, credential *hopauth.Credential) (string, error) {
  now := time.Now()
  claims := sessionClaims{
    Email: email,
    RegisteredClaims: jwt.RegisteredClaims{
      Subject:   username,
      IssuedAt:  jwt.NewNumericDate(now),
      ExpiresAt: jwt.NewNumericDate(now.Add(sessionTokenTTL)),
    },
  }
  if credential != nil {
    claims.HopUsername = credential.Username
    claims.HopPassword = credential.Password
  }
  return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(as.secret)
}

func (as *authService) ParseSessionToken(token string) (*Session, error) {
  var claims sessionClaims
  parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
    if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
    }
    return as.secret, nil
  })
  if err != nil || !parsed.Valid {
    return nil, ErrInvalidSessionToken
  }

  session := &Session{Username: claims.Subject, Email: claims.Email}
  if claims.HopUsername != "" {
    session.Credentials = &HopCredentials{
      Username: claims.HopUsername,
      Password: claims.HopPassword,
    }
  }
  return session, nil
}

// GenerateCSRFToken returns a random token the frontend must echo back on
// submissions. Tokens are single issuance, cached for an hour.
func (as *authService) GenerateCSRFToken(ctx context.Context) (string, error) {
  raw := make([]byte, 32)
  if _, err := rand.Read(raw); err != nil {
    return "", err
  }
  token := hex.EncodeToString(raw)
  if err := as.store.Set(ctx, csrfCachePrefix+token, "1", csrfTokenTTL); err != nil {
    return "", err
  }
  return token, nil
}

func (as *authService) ValidateCSRFToken(ctx context.Context, token string) error {
  if token == "" {
    return ErrInvalidCSRFToken
  }
  _, hit, err := as.store.Get(ctx, csrfCachePrefix+token)
  if err != nil {
    return err
  }
  if !hit {
    return ErrInvalidCSRFToken
  }
  return nil
}
