package handlers

import (
  "errors"
  "net/http"
  "time"

  "github.com/gin-gonic/gin"

  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/middleware"
  "github.com/hermes-mma/hermes-backend/internal/services"
  "github.com/hermes-mma/hermes-backend/internal/types"
)

type ProfileHandler struct {
  log          *logger.Logger
  oauthService services.OAuthTokenService
}

func NewProfileHandler(log *logger.Logger, oauthService services.OAuthTokenService) *ProfileHandler {
  return &ProfileHandler{
    log:          log.With("handler", "ProfileHandler"),
    oauthService: oauthService,
  }
}

// Get reports the caller's identity and which integrated apps hold a live
// token for them.
func (h *ProfileHandler) Get(c *gin.Context) {
  session := middleware.GetSession(c)
  if session == nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }

  integratedApps := gin.H{}
  _, err := h.oauthService.GetAccessToken(c.Request.Context(), session.Username, types.IntegratedAppGCN)
  integratedApps[types.IntegratedAppGCN] = err == nil

  RespondOK(c, gin.H{
    "username":        session.Username,
    "email":           session.Email,
    "integrated_apps": integratedApps,
  })
}

type storedTokenRequest struct {
  IntegratedApp string `json:"integrated_app"`
  AccessToken   string `json:"access_token"`
  RefreshToken  string `json:"refresh_token"`
  TokenType     string `json:"token_type"`
  ExpiresIn     int    `json:"expires_in"`
}

// StoreOAuthToken saves a token set the frontend obtained from an
// integrated app's OAuth flow.
func (h *ProfileHandler) StoreOAuthToken(c *gin.Context) {
  session := middleware.GetSession(c)
  if session == nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  var request storedTokenRequest
  if err := c.ShouldBindJSON(&request); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_payload", err)
    return
  }
  if request.IntegratedApp == "" || request.AccessToken == "" {
    RespondError(c, http.StatusBadRequest, "missing_token_fields", errors.New("integrated_app and access_token are required"))
    return
  }

  token := &types.OAuthToken{
    Username:      session.Username,
    IntegratedApp: request.IntegratedApp,
    AccessToken:   request.AccessToken,
    RefreshToken:  request.RefreshToken,
    TokenType:     request.TokenType,
    ExpiresIn:     request.ExpiresIn,
  }
  if request.ExpiresIn > 0 {
    token.ExpiresAt = time.Now().Add(time.Duration(request.ExpiresIn) * time.Second)
  }
  if err := h.oauthService.StoreToken(c.Request.Context(), token); err != nil {
    h.log.Error("Store oauth token failed", "username", session.Username, "error", err)
    RespondError(c, http.StatusInternalServerError, "store_token_failed", err)
    return
  }
  RespondOK(c, gin.H{"message": "Token stored."})
}

func (h *ProfileHandler) DeleteOAuthToken(c *gin.Context) {
  session := middleware.GetSession(c)
  if session == nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  if err := h.oauthService.DeleteToken(c.Request.Context(), session.Username, c.Param("app")); err != nil {
    RespondError(c, http.StatusInternalServerError, "delete_token_failed", err)
    return
  }
  RespondOK(c, gin.H{"message": "Token deleted."})
}
