package services

import (
  "context"
  "encoding/json"
  "time"

  "github.com/hermes-mma/hermes-backend/internal/cache"
  "github.com/hermes-mma/hermes-backend/internal/clients/hopauth"
  "github.com/hermes-mma/hermes-backend/internal/logger"
)

const topicsCacheTTL = 15 * time.Minute

// DefaultTopics is what anonymous users (HERMES Guest) see.
var DefaultTopics = hopauth.TopicPermissions{
  Read:  []string{"hermes.test", "gcn.circular"},
  Write: []string{"hermes.test"},
}

type TopicService interface {
  UserTopics(ctx context.Context, username string) (*hopauth.TopicPermissions, error)
}

type topicService struct {
  log   *logger.Logger
  hop   hopauth.Client
  store cache.Cache
}

func NewTopicService(log *logger.Logger, hop hopauth.Client, store cache.Cache) TopicService {
  serviceLog := log.With("service", "TopicService")
  return &topicService{
    log:   serviceLog,
    hop:   hop,
    store: store,
  }
}

// UserTopics returns the topics the user may read and write, from hop-auth
// group permissions. Anonymous sessions get the guest defaults; results are
// cached per user.
func (ts *topicService) UserTopics(ctx context.Context, username string) (*hopauth.TopicPermissions, error) {
  if username == "" {
    defaults := DefaultTopics
    ts.log.Info("Returning default topics for anonymous user")
    return &defaults, nil
  }

  cacheKey := "user_topics:" + username
  if cached, hit, err := ts.store.Get(ctx, cacheKey); err == nil && hit {
    var topics hopauth.TopicPermissions
    if err := json.Unmarshal([]byte(cached), &topics); err == nil {
      return &topics, nil
    }
  }

  userToken, err := ts.hop.UserAPIToken(ctx, username)
  if err != nil {
    return nil, err
  }
  topics, err := ts.hop.UserTopics(ctx, username, userToken)
  if err != nil {
    return nil, err
  }

  if encoded, err := json.Marshal(topics); err == nil {
    _ = ts.store.Set(ctx, cacheKey, string(encoded), topicsCacheTTL)
  }
  ts.log.Info("Fetched topics from hop-auth", "username", username,
    "read", len(topics.Read), "write", len(topics.Write))
  return topics, nil
}
