package types

import (
  "time"
  "github.com/google/uuid"
)

// NonLocalizedEvent event types.
const (
  EventTypeGravitationalWave = "GRAVITATIONAL_WAVE"
  EventTypeGammaRayBurst     = "GAMMA_RAY_BURST"
  EventTypeNeutrino          = "NEUTRINO"
  EventTypeUnknown           = "UNKNOWN"
)

// NonLocalizedEvent is a transient event without a definite sky position,
// identified by its upstream id (GraceDB superevent id, trigger number, or
// run_num_event_num for neutrino events).
type NonLocalizedEvent struct {
  ID          uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  EventID     string        `gorm:"uniqueIndex;not null;column:event_id" json:"event_id"`
  EventType   string        `gorm:"not null;default:GRAVITATIONAL_WAVE;column:event_type" json:"event_type"`
  References  []*Message    `gorm:"many2many:event_references;" json:"-"`
  CreatedAt   time.Time     `gorm:"not null;default:now()" json:"created"`
  UpdatedAt   time.Time     `gorm:"not null;default:now()" json:"modified"`
}

func (NonLocalizedEvent) TableName() string {
  return "nonlocalizedevent"
}
