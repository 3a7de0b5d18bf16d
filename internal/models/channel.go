package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel represents a virtual broadcast channel entity
type Channel struct {
	ID          uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Name        string    `json:"name" gorm:"type:text;not null;uniqueIndex;column:name" validate:"required,min=1,max=255"`
	Number      int       `json:"number" gorm:"type:integer;not null;uniqueIndex;column:number" validate:"required,gt=0"`
	Icon        *string   `json:"icon,omitempty" gorm:"type:text;column:icon"`
	Mode        string    `json:"mode" gorm:"type:text;not null;default:sequential;column:mode"`
	ShuffleSeed uint32    `json:"shuffle_seed" gorm:"type:integer;not null;default:0;column:shuffle_seed"`
	PhaseSeed   uint32    `json:"phase_seed" gorm:"type:integer;not null;default:0;column:phase_seed"`
	Timezone    string    `json:"timezone" gorm:"type:text;not null;default:UTC;column:timezone"`
	CreatedAt   time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// NewChannel creates a new Channel with generated UUID and timestamps
func NewChannel(name string, number int, mode string) *Channel {
	now := time.Now().UTC()
	return &Channel{
		ID:        uuid.New(),
		Name:      name,
		Number:    number,
		Mode:      mode,
		Timezone:  "UTC",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Location resolves the channel's IANA timezone, falling back to UTC when the
// stored name does not load
func (c *Channel) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
