package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/middleware"
  "github.com/hermes-mma/hermes-backend/internal/services"
)

type TopicHandler struct {
  log          *logger.Logger
  topicService services.TopicService
}

func NewTopicHandler(log *logger.Logger, topicService services.TopicService) *TopicHandler {
  return &TopicHandler{
    log:          log.With("handler", "TopicHandler"),
    topicService: topicService,
  }
}

// List returns the topics the caller may read and write. Anonymous callers
// get the guest defaults.
func (h *TopicHandler) List(c *gin.Context) {
  username := ""
  if session := middleware.GetSession(c); session != nil {
    username = session.Username
  }
  topics, err := h.topicService.UserTopics(c.Request.Context(), username)
  if err != nil {
    h.log.Error("List topics failed", "username", username, "error", err)
    RespondError(c, http.StatusInternalServerError, "list_topics_failed", err)
    return
  }
  RespondOK(c, topics)
}
