package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Media represents a media file metadata entity. Durations are stored in
// milliseconds, matching the scheduling engine's time base.
type Media struct {
	ID         uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	FilePath   string    `json:"file_path" gorm:"type:text;not null;uniqueIndex;column:file_path" validate:"required"`
	Title      string    `json:"title" gorm:"type:text;not null;column:title" validate:"required"`
	ShowName   *string   `json:"show_name,omitempty" gorm:"type:text;column:show_name"`
	Season     *int      `json:"season,omitempty" gorm:"type:integer;column:season"`
	Episode    *int      `json:"episode,omitempty" gorm:"type:integer;column:episode"`
	DurationMs int64     `json:"duration_ms" gorm:"type:integer;not null;column:duration_ms" validate:"required,gt=0"`
	FileSize   *int64    `json:"file_size,omitempty" gorm:"type:integer;column:file_size"`
	Source     string    `json:"source" gorm:"type:text;not null;default:scan;column:source"`
	CreatedAt  time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewMedia creates a new Media with generated UUID and timestamp
func NewMedia(filePath, title string, durationMs int64) *Media {
	return &Media{
		ID:         uuid.New(),
		FilePath:   filePath,
		Title:      title,
		DurationMs: durationMs,
		Source:     SourceScan,
		CreatedAt:  time.Now().UTC(),
	}
}

// DurationString returns duration in HH:MM:SS format
func (m *Media) DurationString() string {
	totalSeconds := m.DurationMs / 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
