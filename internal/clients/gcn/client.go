package gcn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hermes-mma/hermes-backend/internal/logger"
)

// Client refreshes GCN OAuth access tokens. The token endpoint is
// discovered from the OIDC server metadata document, same as the login
// flow the front end drives.
type Client interface {
	RefreshToken(ctx context.Context, refreshToken string) (*TokenDetails, error)
}

type TokenDetails struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	ExpiresAt   time.Time
}

type Config struct {
	ServerMetadataURL string
	ClientID          string
	ClientSecret      string
	Timeout           time.Duration
}

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client

	mu            sync.Mutex
	tokenEndpoint string
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.ServerMetadataURL) == "" {
		return nil, fmt.Errorf("missing GCN server metadata url")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &client{
		log:  log.With("client", "GCNClient"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *client) endpoint(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokenEndpoint != "" {
		return c.tokenEndpoint, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ServerMetadataURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch GCN server metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch GCN server metadata: status %d", resp.StatusCode)
	}

	var metadata struct {
		TokenEndpoint string `json:"token_endpoint"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return "", fmt.Errorf("decode GCN server metadata: %w", err)
	}
	if metadata.TokenEndpoint == "" {
		return "", fmt.Errorf("GCN server metadata missing token_endpoint")
	}

	c.tokenEndpoint = metadata.TokenEndpoint
	return c.tokenEndpoint, nil
}

// RefreshToken performs the refresh_token grant. The response carries only
// an access token and expiration, never a new refresh token.
func (c *client) RefreshToken(ctx context.Context, refreshToken string) (*TokenDetails, error) {
	tokenEndpoint, err := c.endpoint(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.cfg.ClientID)
	if c.cfg.ClientSecret != "" {
		form.Set("client_secret", c.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("refresh token: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var details TokenDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if details.AccessToken == "" {
		return nil, fmt.Errorf("refresh token response missing access_token")
	}
	details.ExpiresAt = time.Now().UTC().Add(time.Duration(details.ExpiresIn) * time.Second)
	return &details, nil
}
