package services

import (
  "context"
  "encoding/json"
  "fmt"

  "github.com/google/uuid"

  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/stream"
  "github.com/hermes-mma/hermes-backend/internal/utils"
)

// HopCredentials is a SCRAM credential pair extracted from the request,
// either API headers or the login session.
type HopCredentials struct {
  Username string `json:"username"`
  Password string `json:"password"`
}

// StreamPublisher is the slice of the stream client submission needs.
type StreamPublisher interface {
  Publish(ctx context.Context, topic string, id uuid.UUID, payload []byte) error
}

// PublisherFactory opens an authenticated publisher. With nil credentials
// the service account is used.
type PublisherFactory func(creds *HopCredentials) (StreamPublisher, error)

type SubmitService interface {
  Submit(ctx context.Context, creds *HopCredentials, message *SubmittedMessage) (uuid.UUID, error)
}

type submitService struct {
  log        *logger.Logger
  publishers PublisherFactory
  tnsService TNSService
  email      EmailService
  gcnEmail   string
}

func NewSubmitService(
  log *logger.Logger,
  publishers PublisherFactory,
  tnsService TNSService,
  email EmailService,
  gcnEmail string,
) SubmitService {
  serviceLog := log.With("service", "SubmitService")
  return &submitService{
    log:        serviceLog,
    publishers: publishers,
    tnsService: tnsService,
    email:      email,
    gcnEmail:   gcnEmail,
  }
}

// DefaultPublisherFactory opens real Kafka writers against the Hopskotch
// broker, falling back to the service account when the request carried no
// credentials of its own.
func DefaultPublisherFactory(log *logger.Logger, broker, serviceUsername, servicePassword string) PublisherFactory {
  return func(creds *HopCredentials) (StreamPublisher, error) {
    username, password := serviceUsername, servicePassword
    if creds != nil {
      username, password = creds.Username, creds.Password
    }
    return stream.New(log, stream.Config{
      Broker:   broker,
      Username: username,
      Password: password,
    })
  }
}

// Submit publishes a validated message to its topic. The message gets a
// fresh uuid, attached as the _id Kafka header, so our own ingest can
// store it idempotently. Messages bound for TNS are converted and reported;
// circulars are also mailed to GCN.
func (ss *submitService) Submit(ctx context.Context, creds *HopCredentials, message *SubmittedMessage) (uuid.UUID, error) {
  id := uuid.New()

  payload, err := json.Marshal(map[string]interface{}{
    "topic":        message.Topic,
    "title":        message.Title,
    "submitter":    message.Submitter,
    "authors":      message.Authors,
    "data":         message.Data,
    "message_text": message.MessageText,
  })
  if err != nil {
    return uuid.Nil, err
  }

  publisher, err := ss.publishers(creds)
  if err != nil {
    ss.log.Error("Hopskotch authorization not found", "error", err)
    return uuid.Nil, err
  }

  if err := publisher.Publish(ctx, message.Topic, id, payload); err != nil {
    return uuid.Nil, fmt.Errorf("error posting message to kafka: %w", err)
  }
  ss.log.Info("Message submitted", "uuid", id.String(), "topic", message.Topic, "submitter", message.Submitter)

  if message.SubmitToTNS {
    ss.forwardToTNS(ctx, message)
  }
  if (message.SubmitToGCN || message.Topic == "gcn.circular") && ss.gcnEmail != "" && ss.email != nil {
    ss.mailCircular(ctx, message)
  }
  if message.SubmitToMPC {
    // MPC has no submission API here; record the request so it can be
    // relayed by hand.
    ss.log.Info("MPC submission requested", "uuid", id.String(), "title", message.Title)
  }
  return id, nil
}

func (ss *submitService) forwardToTNS(ctx context.Context, message *SubmittedMessage) {
  document := map[string]interface{}{
    "title":        message.Title,
    "authors":      message.Authors,
    "submitter":    message.Submitter,
    "message_text": message.MessageText,
    "data":         message.Data,
  }
  report, err := ss.tnsService.ConvertDiscoveryMessage(ctx, document)
  if err != nil {
    ss.log.Error("Failed to convert message for TNS", "title", message.Title, "error", err)
    return
  }
  ss.log.Info("Converted message to TNS AT report", "title", message.Title, "reports", len(report))
}

// mailCircular sends the circular text to the GCN submission address. GCN
// has no API for circulars, submission happens over email.
func (ss *submitService) mailCircular(ctx context.Context, message *SubmittedMessage) {
  body := utils.ConvertToPlaintext(map[string]interface{}{
    "authors":      message.Authors,
    "message_text": message.MessageText,
    "data":         message.Data,
  })
  if err := ss.email.Send(ctx, ss.gcnEmail, message.Title, body); err != nil {
    ss.log.Error("Failed to mail circular to GCN", "title", message.Title, "error", err)
  }
}
