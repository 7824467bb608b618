package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/repos"
  "github.com/hermes-mma/hermes-backend/internal/services"
)

type TargetHandler struct {
  log           *logger.Logger
  targetService services.TargetService
}

func NewTargetHandler(log *logger.Logger, targetService services.TargetService) *TargetHandler {
  return &TargetHandler{
    log:           log.With("handler", "TargetHandler"),
    targetService: targetService,
  }
}

func (h *TargetHandler) List(c *gin.Context) {
  filter := repos.TargetFilter{
    Name:            c.Query("name"),
    EventIDContains: c.Query("event_id"),
    ConeSearch:      c.Query("cone_search"),
    PolygonSearch:   c.Query("polygon_search"),
    Limit:           intQuery(c, "limit", 50),
    Offset:          intQuery(c, "offset", 0),
  }
  targets, count, err := h.targetService.List(c.Request.Context(), filter)
  if err != nil {
    h.log.Error("List targets failed", "error", err)
    RespondError(c, http.StatusInternalServerError, "list_targets_failed", err)
    return
  }
  RespondList(c, count, targets)
}

func (h *TargetHandler) Get(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_target_id", err)
    return
  }
  target, err := h.targetService.Get(c.Request.Context(), id)
  if err != nil {
    RespondError(c, http.StatusNotFound, "target_not_found", err)
    return
  }
  RespondOK(c, target)
}
