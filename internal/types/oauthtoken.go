package types

import (
  "time"
  "github.com/google/uuid"
)

// Integrated apps a user can hold an OAuth token for.
const (
  IntegratedAppGCN = "GCN"
)

// OAuthToken stores one OAuth token set per (user, integrated app). Username
// is the identity the OIDC provider handed us at login.
type OAuthToken struct {
  ID              uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Username        string        `gorm:"index:idx_oauth_user_app,unique;not null;column:username" json:"username"`
  IntegratedApp   string        `gorm:"index:idx_oauth_user_app,unique;not null;column:integrated_app" json:"integrated_app"`
  AccessToken     string        `gorm:"not null;column:access_token" json:"-"`
  RefreshToken    string        `gorm:"column:refresh_token" json:"-"`
  TokenType       string        `gorm:"column:token_type" json:"token_type"`
  ExpiresAt       time.Time     `gorm:"column:expires_at" json:"expires_at"`
  ExpiresIn       int           `gorm:"column:expires_in" json:"expires_in"`
  CreatedAt       time.Time     `gorm:"not null;default:now()" json:"created"`
  UpdatedAt       time.Time     `gorm:"not null;default:now()" json:"modified"`
}

func (t *OAuthToken) IsExpired() bool {
  return !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(time.Now())
}

func (OAuthToken) TableName() string {
  return "oauth_token"
}
