package models

import (
	"time"

	"github.com/google/uuid"
)

// LineupEntry represents a channel lineup slot: one media item at one position
// in the channel's daily rotation
type LineupEntry struct {
	ID        uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	ChannelID uuid.UUID `json:"channel_id" gorm:"type:text;not null;index;column:channel_id" validate:"required"`
	MediaID   uuid.UUID `json:"media_id" gorm:"type:text;not null;column:media_id" validate:"required"`
	Position  int       `json:"position" gorm:"type:integer;not null;column:position" validate:"gte=0"`
	CreatedAt time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`

	// Populated by joins, not stored in database
	Media *Media `json:"media,omitempty" gorm:"-"`
}

// NewLineupEntry creates a new LineupEntry with generated UUID and timestamp
func NewLineupEntry(channelID, mediaID uuid.UUID, position int) *LineupEntry {
	return &LineupEntry{
		ID:        uuid.New(),
		ChannelID: channelID,
		MediaID:   mediaID,
		Position:  position,
		CreatedAt: time.Now().UTC(),
	}
}
