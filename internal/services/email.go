package services

import (
  "context"
  "fmt"
  "net/smtp"
  "strings"

  "github.com/hermes-mma/hermes-backend/internal/logger"
)

// EmailService sends plain text mail. GCN circular submissions go out this
// way since GCN accepts circulars over email only.
type EmailService interface {
  Send(ctx context.Context, to, subject, body string) error
}

type EmailConfig struct {
  Host     string
  Port     int
  Username string
  Password string
  From     string
}

type emailService struct {
  log *logger.Logger
  cfg EmailConfig
}

func NewEmailService(log *logger.Logger, cfg EmailConfig) EmailService {
  serviceLog := log.With("service", "EmailService")
  if cfg.Port == 0 {
    cfg.Port = 587
  }
  return &emailService{log: serviceLog, cfg: cfg}
}

func (es *emailService) Send(ctx context.Context, to, subject, body string) error {
  if es.cfg.Host == "" || es.cfg.From == "" {
    return fmt.Errorf("email not configured")
  }

  var message strings.Builder
  fmt.Fprintf(&message, "From: %s\r\n", es.cfg.From)
  fmt.Fprintf(&message, "To: %s\r\n", to)
  fmt.Fprintf(&message, "Subject: %s\r\n", subject)
  message.WriteString("MIME-Version: 1.0\r\n")
  message.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
  message.WriteString("\r\n")
  message.WriteString(body)

  addr := fmt.Sprintf("%s:%d", es.cfg.Host, es.cfg.Port)
  var auth smtp.Auth
  if es.cfg.Username != "" {
    auth = smtp.PlainAuth("", es.cfg.Username, es.cfg.Password, es.cfg.Host)
  }
  if err := smtp.SendMail(addr, auth, es.cfg.From, []string{to}, []byte(message.String())); err != nil {
    return fmt.Errorf("error sending email to %s: %w", to, err)
  }
  es.log.Info("Email sent", "to", to, "subject", subject)
  return nil
}
