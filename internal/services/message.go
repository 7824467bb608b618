package services

import (
  "context"
  "encoding/json"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/repos"
  "github.com/hermes-mma/hermes-backend/internal/types"
  "github.com/hermes-mma/hermes-backend/internal/utils"
)

type MessageService interface {
  List(ctx context.Context, filter repos.MessageFilter) ([]*types.Message, int64, error)
  Get(ctx context.Context, id uuid.UUID) (*types.Message, error)
  GetPlaintext(ctx context.Context, id uuid.UUID) (string, error)
}

type messageService struct {
  db          *gorm.DB
  log         *logger.Logger
  messageRepo repos.MessageRepo
}

func NewMessageService(db *gorm.DB, log *logger.Logger, messageRepo repos.MessageRepo) MessageService {
  serviceLog := log.With("service", "MessageService")
  return &messageService{
    db:          db,
    log:         serviceLog,
    messageRepo: messageRepo,
  }
}

func (ms *messageService) List(ctx context.Context, filter repos.MessageFilter) ([]*types.Message, int64, error) {
  return ms.messageRepo.List(ctx, nil, filter)
}

func (ms *messageService) Get(ctx context.Context, id uuid.UUID) (*types.Message, error) {
  message, err := ms.messageRepo.GetByID(ctx, nil, id)
  if err == gorm.ErrRecordNotFound {
    // The public id of a message is its stream uuid; fall back to that.
    return ms.messageRepo.GetByUUID(ctx, nil, id)
  }
  return message, err
}

// GetPlaintext renders a message the way it reads in an email or TNS
// remark: authors, free text, then markdown tables for the data sections.
func (ms *messageService) GetPlaintext(ctx context.Context, id uuid.UUID) (string, error) {
  message, err := ms.Get(ctx, id)
  if err != nil {
    return "", err
  }

  document := map[string]interface{}{
    "title":        message.Title,
    "authors":      message.Authors,
    "message_text": message.MessageText,
  }
  if len(message.Data) > 0 {
    var data map[string]interface{}
    if err := json.Unmarshal(message.Data, &data); err == nil {
      document["data"] = data
    }
  }
  return utils.ConvertToPlaintext(document), nil
}
