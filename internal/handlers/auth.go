package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/middleware"
  "github.com/hermes-mma/hermes-backend/internal/services"
)

type AuthHandler struct {
  log             *logger.Logger
  authService     services.AuthService
  frontEndBaseURL string
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService, frontEndBaseURL string) *AuthHandler {
  return &AuthHandler{
    log:             log.With("handler", "AuthHandler"),
    authService:     authService,
    frontEndBaseURL: frontEndBaseURL,
  }
}

// GetCSRFToken hands the frontend a token it must echo back in the
// X-CSRFToken header on submissions.
func (h *AuthHandler) GetCSRFToken(c *gin.Context) {
  token, err := h.authService.GenerateCSRFToken(c.Request.Context())
  if err != nil {
    h.log.Error("Failed to generate csrf token", "error", err)
    RespondError(c, http.StatusInternalServerError, "csrf_token_failed", err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"token": token})
}

// LoginRedirect completes a login: the OIDC identity arrives in query
// params, a session credential is minted, and the browser is bounced back
// to the frontend with the user's email in the fragment.
func (h *AuthHandler) LoginRedirect(c *gin.Context) {
  username := c.Query("username")
  email := c.Query("email")
  if username == "" {
    RespondError(c, http.StatusBadRequest, "missing_username", nil)
    return
  }

  token, err := h.authService.Login(c.Request.Context(), username, email)
  if err != nil {
    RespondError(c, http.StatusBadGateway, "login_failed", err)
    return
  }
  c.SetCookie(middleware.SessionCookieName(), token, 24*3600, "/", "", false, true)

  redirectURL := h.frontEndBaseURL + "#/?user=" + email
  h.log.Info("Login redirect", "username", username, "redirect", redirectURL)
  c.Redirect(http.StatusFound, redirectURL)
}

// LogoutRedirect revokes the session credential and sends the browser back
// to the frontend.
func (h *AuthHandler) LogoutRedirect(c *gin.Context) {
  if token, err := c.Cookie(middleware.SessionCookieName()); err == nil && token != "" {
    if err := h.authService.Logout(c.Request.Context(), token); err != nil {
      h.log.Warn("Logout failed", "error", err)
    }
  }
  c.SetCookie(middleware.SessionCookieName(), "", -1, "/", "", false, true)
  h.log.Info("Logout redirect", "redirect", h.frontEndBaseURL)
  c.Redirect(http.StatusFound, h.frontEndBaseURL)
}
