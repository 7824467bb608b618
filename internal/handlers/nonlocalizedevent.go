package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/repos"
  "github.com/hermes-mma/hermes-backend/internal/services"
)

type NonLocalizedEventHandler struct {
  log          *logger.Logger
  eventService services.NonLocalizedEventService
}

func NewNonLocalizedEventHandler(log *logger.Logger, eventService services.NonLocalizedEventService) *NonLocalizedEventHandler {
  return &NonLocalizedEventHandler{
    log:          log.With("handler", "NonLocalizedEventHandler"),
    eventService: eventService,
  }
}

func (h *NonLocalizedEventHandler) List(c *gin.Context) {
  filter := repos.NonLocalizedEventFilter{
    EventIDContains: c.Query("event_id"),
    EventType:       c.Query("event_type"),
    Limit:           intQuery(c, "limit", 50),
    Offset:          intQuery(c, "offset", 0),
  }
  events, count, err := h.eventService.List(c.Request.Context(), filter)
  if err != nil {
    h.log.Error("List events failed", "error", err)
    RespondError(c, http.StatusInternalServerError, "list_events_failed", err)
    return
  }
  RespondList(c, count, events)
}

// Get looks events up by their public id, e.g. S240830gn.
func (h *NonLocalizedEventHandler) Get(c *gin.Context) {
  event, err := h.eventService.Get(c.Request.Context(), c.Param("event_id"))
  if err != nil {
    RespondError(c, http.StatusNotFound, "event_not_found", err)
    return
  }
  RespondOK(c, event)
}

func (h *NonLocalizedEventHandler) Sequences(c *gin.Context) {
  sequences, err := h.eventService.Sequences(c.Request.Context(), c.Param("event_id"))
  if err != nil {
    RespondError(c, http.StatusNotFound, "event_not_found", err)
    return
  }
  RespondOK(c, gin.H{"sequences": sequences})
}

func (h *NonLocalizedEventHandler) ListSequences(c *gin.Context) {
  filter := repos.SequenceFilter{
    EventIDContains:      c.Query("event_id"),
    SequenceNumber:       intQuery(c, "sequence_number", 0),
    SequenceTypes:        c.QueryArray("sequence_type"),
    ExcludeSequenceTypes: c.QueryArray("exclude_sequence_type"),
    Limit:                intQuery(c, "limit", 50),
    Offset:               intQuery(c, "offset", 0),
  }
  sequences, count, err := h.eventService.ListSequences(c.Request.Context(), filter)
  if err != nil {
    h.log.Error("List sequences failed", "error", err)
    RespondError(c, http.StatusInternalServerError, "list_sequences_failed", err)
    return
  }
  RespondList(c, count, sequences)
}
