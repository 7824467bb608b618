package handlers

import (
  "net/http"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/repos"
  "github.com/hermes-mma/hermes-backend/internal/services"
)

type MessageHandler struct {
  log            *logger.Logger
  messageService services.MessageService
}

func NewMessageHandler(log *logger.Logger, messageService services.MessageService) *MessageHandler {
  return &MessageHandler{
    log:            log.With("handler", "MessageHandler"),
    messageService: messageService,
  }
}

// List supports the standard field filters plus cone_search ("ra,dec,radius"
// in degrees) and polygon_search (comma-separated "ra dec" vertex pairs).
func (h *MessageHandler) List(c *gin.Context) {
  filter := repos.MessageFilter{
    Topic:           c.Query("topic"),
    TitleContains:   c.Query("title"),
    AuthorContains:  c.Query("author"),
    TextContains:    c.Query("message_text"),
    EventIDContains: c.Query("event_id"),
    ConeSearch:      c.Query("cone_search"),
    PolygonSearch:   c.Query("polygon_search"),
    Limit:           intQuery(c, "limit", 50),
    Offset:          intQuery(c, "offset", 0),
  }
  if raw := c.Query("published_after"); raw != "" {
    parsed, err := time.Parse(time.RFC3339, raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_published_after", err)
      return
    }
    filter.PublishedAfter = &parsed
  }
  if raw := c.Query("published_before"); raw != "" {
    parsed, err := time.Parse(time.RFC3339, raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_published_before", err)
      return
    }
    filter.PublishedBefore = &parsed
  }

  messages, count, err := h.messageService.List(c.Request.Context(), filter)
  if err != nil {
    h.log.Error("List messages failed", "error", err)
    RespondError(c, http.StatusInternalServerError, "list_messages_failed", err)
    return
  }
  RespondList(c, count, messages)
}

func (h *MessageHandler) Get(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_message_id", err)
    return
  }
  message, err := h.messageService.Get(c.Request.Context(), id)
  if err != nil {
    RespondError(c, http.StatusNotFound, "message_not_found", err)
    return
  }
  RespondOK(c, message)
}

// GetPlaintext renders the message as plain text with the data sections
// laid out as markdown tables.
func (h *MessageHandler) GetPlaintext(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_message_id", err)
    return
  }
  plaintext, err := h.messageService.GetPlaintext(c.Request.Context(), id)
  if err != nil {
    RespondError(c, http.StatusNotFound, "message_not_found", err)
    return
  }
  c.String(http.StatusOK, plaintext)
}
