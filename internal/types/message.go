package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// Message is one alert as it came off a stream or was submitted through the
// API. Data holds the message's JSON data section verbatim; MessageText holds
// the raw text body (the full plaintext notice for GCN Classic alerts).
type Message struct {
  ID              uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UUID            uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null;column:uuid" json:"uuid"`
  Topic           string          `gorm:"index;not null;column:topic" json:"topic"`
  Title           string          `gorm:"column:title" json:"title"`
  Submitter       string          `gorm:"column:submitter" json:"submitter"`
  Authors         string          `gorm:"column:authors" json:"authors"`
  Data            datatypes.JSON  `gorm:"type:jsonb;column:data" json:"data"`
  MessageText     string          `gorm:"type:text;column:message_text" json:"message_text"`
  MessageParser   string          `gorm:"column:message_parser" json:"message_parser"`
  Published       time.Time       `gorm:"index;not null;column:published" json:"published"`
  Targets         []*Target               `gorm:"many2many:target_messages;" json:"-"`
  Events          []*NonLocalizedEvent    `gorm:"many2many:event_references;" json:"-"`
  CreatedAt       time.Time       `gorm:"not null;default:now()" json:"created"`
  UpdatedAt       time.Time       `gorm:"not null;default:now()" json:"modified"`
}

func (Message) TableName() string {
  return "message"
}
