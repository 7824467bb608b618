package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/services"
)

type TNSHandler struct {
  log        *logger.Logger
  tnsService services.TNSService
}

func NewTNSHandler(log *logger.Logger, tnsService services.TNSService) *TNSHandler {
  return &TNSHandler{
    log:        log.With("handler", "TNSHandler"),
    tnsService: tnsService,
  }
}

// Options returns the TNS option values the frontend uses to populate the
// discovery report dropdowns.
func (h *TNSHandler) Options(c *gin.Context) {
  values, err := h.tnsService.Values(c.Request.Context())
  if err != nil {
    h.log.Error("Fetch TNS options failed", "error", err)
    RespondError(c, http.StatusBadGateway, "tns_options_failed", err)
    return
  }
  RespondOK(c, values)
}
