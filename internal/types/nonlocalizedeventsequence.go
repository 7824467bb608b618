package types

import (
  "time"
  "github.com/google/uuid"
)

// Sequence types, in the order alerts are issued upstream.
const (
  SequenceTypeEarlyWarning = "EARLY_WARNING"
  SequenceTypePreliminary  = "PRELIMINARY"
  SequenceTypeInitial      = "INITIAL"
  SequenceTypeUpdate       = "UPDATE"
  SequenceTypeRetraction   = "RETRACTION"
)

// SequenceTypes lists the accepted sequence_type values for filtering.
var SequenceTypes = []string{
  SequenceTypeEarlyWarning,
  SequenceTypePreliminary,
  SequenceTypeInitial,
  SequenceTypeUpdate,
  SequenceTypeRetraction,
}

// NonLocalizedEventSequence is one iteration of a nonlocalized event: the
// message that announced it, its sequence number, and the skymap revision it
// carried (IGWN alerts only).
type NonLocalizedEventSequence struct {
  ID                      uuid.UUID           `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  EventID                 uuid.UUID           `gorm:"index;not null;column:event_id" json:"-"`
  Event                   *NonLocalizedEvent  `gorm:"constraint:OnDelete:CASCADE;foreignKey:EventID;references:ID" json:"event,omitempty"`
  MessageID               uuid.UUID           `gorm:"index;not null;column:message_id" json:"message_id"`
  Message                 *Message            `gorm:"constraint:OnDelete:CASCADE;foreignKey:MessageID;references:ID" json:"-"`
  SequenceNumber          int                 `gorm:"not null;default:1;column:sequence_number" json:"sequence_number"`
  SequenceType            string              `gorm:"column:sequence_type" json:"sequence_type"`
  SkymapVersion           *int                `gorm:"column:skymap_version" json:"skymap_version,omitempty"`
  SkymapHash              *uuid.UUID          `gorm:"type:uuid;column:skymap_hash" json:"skymap_hash,omitempty"`
  CombinedSkymapVersion   *int                `gorm:"column:combined_skymap_version" json:"combined_skymap_version,omitempty"`
  CombinedSkymapHash      *uuid.UUID          `gorm:"type:uuid;column:combined_skymap_hash" json:"combined_skymap_hash,omitempty"`
  CreatedAt               time.Time           `gorm:"not null;default:now()" json:"created"`
  UpdatedAt               time.Time           `gorm:"not null;default:now()" json:"modified"`
}

func (NonLocalizedEventSequence) TableName() string {
  return "nonlocalizedeventsequence"
}
