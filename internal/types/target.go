package types

import (
  "time"
  "github.com/google/uuid"
)

// Target is a named sky position referenced by one or more messages.
// RA and Dec are stored in decimal degrees (J2000).
type Target struct {
  ID          uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Name        string        `gorm:"index;not null;column:name" json:"name"`
  RA          float64       `gorm:"index;not null;column:ra" json:"ra"`
  Dec         float64       `gorm:"index;not null;column:dec" json:"dec"`
  Messages    []*Message    `gorm:"many2many:target_messages;" json:"-"`
  CreatedAt   time.Time     `gorm:"not null;default:now()" json:"created"`
  UpdatedAt   time.Time     `gorm:"not null;default:now()" json:"modified"`
}

func (Target) TableName() string {
  return "target"
}
