package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carousel-tv/carousel/internal/models"
)

// LineupRepository handles database operations for channel lineup entries
type LineupRepository struct {
	db *DB
}

// NewLineupRepository creates a new lineup repository
func NewLineupRepository(db *DB) *LineupRepository {
	return &LineupRepository{db: db}
}

// ReorderItem represents a lineup entry position update
type ReorderItem struct {
	ID       uuid.UUID
	Position int
}

// Create inserts a new lineup entry into the database
func (r *LineupRepository) Create(ctx context.Context, entry *models.LineupEntry) error {
	result := r.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		return fmt.Errorf("failed to create lineup entry: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a lineup entry by its UUID
func (r *LineupRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LineupEntry, error) {
	var entry models.LineupEntry
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&entry)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &entry, nil
}

// GetByChannelID retrieves all lineup entries for a channel, ordered by position
func (r *LineupRepository) GetByChannelID(ctx context.Context, channelID uuid.UUID) ([]*models.LineupEntry, error) {
	var entries []*models.LineupEntry
	result := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID.String()).
		Order("position ASC").
		Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get lineup entries by channel: %w", MapGormError(result.Error))
	}
	return entries, nil
}

// GetWithMedia retrieves lineup entries for a channel with joined media data
func (r *LineupRepository) GetWithMedia(ctx context.Context, channelID uuid.UUID) ([]*models.LineupEntry, error) {
	var entries []*models.LineupEntry
	result := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID.String()).
		Preload("Media").
		Order("position ASC").
		Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get lineup entries with media: %w", MapGormError(result.Error))
	}
	return entries, nil
}

// Delete deletes a lineup entry by its UUID
func (r *LineupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.LineupEntry{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete lineup entry: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByChannelID deletes all lineup entries for a channel
func (r *LineupRepository) DeleteByChannelID(ctx context.Context, channelID uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("channel_id = ?", channelID.String()).Delete(&models.LineupEntry{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete lineup entries by channel: %w", MapGormError(result.Error))
	}
	return nil
}

// Reorder updates positions for multiple lineup entries in a transaction
func (r *LineupRepository) Reorder(ctx context.Context, channelID uuid.UUID, items []ReorderItem) error {
	return r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		for _, item := range items {
			result := tx.Model(&models.LineupEntry{}).
				Where("id = ? AND channel_id = ?", item.ID.String(), channelID.String()).
				Update("position", item.Position)
			if result.Error != nil {
				return fmt.Errorf("failed to update position for entry %s: %w", item.ID, MapGormError(result.Error))
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("lineup entry %s not found or does not belong to channel", item.ID)
			}
		}
		return nil
	})
}
