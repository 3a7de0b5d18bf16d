package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carousel-tv/carousel/internal/db"
	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/models"
)

// LineupService handles business logic for channel lineup operations
type LineupService struct {
	repos    *db.Repositories
	db       *db.DB
	onChange []func()
}

// NewLineupService creates a new lineup service instance
func NewLineupService(database *db.DB, repos *db.Repositories) *LineupService {
	return &LineupService{
		repos: repos,
		db:    database,
	}
}

// OnChange registers an observer invoked after every successful lineup
// mutation. The guide uses this to invalidate prebuilt grids. Register
// before the service handles requests.
func (s *LineupService) OnChange(fn func()) {
	s.onChange = append(s.onChange, fn)
}

func (s *LineupService) notifyChange() {
	for _, fn := range s.onChange {
		fn()
	}
}

// AddToLineup adds a media item to a channel's lineup at a specific position
func (s *LineupService) AddToLineup(ctx context.Context, channelID, mediaID uuid.UUID, position int) (*models.LineupEntry, error) {
	// Validate position is non-negative
	if position < 0 {
		logger.Log.Warn().
			Str("channel_id", channelID.String()).
			Str("media_id", mediaID.String()).
			Int("position", position).
			Msg("Add to lineup failed: invalid position")
		return nil, fmt.Errorf("failed to add media to lineup: %w", ErrInvalidPosition)
	}

	// Validate channel exists
	_, err := s.repos.Channels.GetByID(ctx, channelID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("failed to add media to lineup: %w", ErrChannelNotFound)
		}
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Msg("Failed to validate channel existence")
		return nil, fmt.Errorf("failed to add media to lineup: %w", err)
	}

	// Validate media exists
	_, err = s.repos.Media.GetByID(ctx, mediaID)
	if err != nil {
		if db.IsNotFound(err) {
			logger.Log.Warn().
				Str("media_id", mediaID.String()).
				Msg("Add to lineup failed: media not found")
			return nil, fmt.Errorf("failed to add media to lineup: %w", ErrMediaNotFound)
		}
		logger.Log.Error().
			Err(err).
			Str("media_id", mediaID.String()).
			Msg("Failed to validate media existence")
		return nil, fmt.Errorf("failed to add media to lineup: %w", err)
	}

	// Create new lineup entry within a transaction
	var newEntry *models.LineupEntry
	err = s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		// Shift existing entries at or after the target position
		result := tx.Model(&models.LineupEntry{}).
			Where("channel_id = ? AND position >= ?", channelID.String(), position).
			Update("position", gorm.Expr("position + 1"))
		if result.Error != nil {
			return fmt.Errorf("failed to shift lineup positions: %w", result.Error)
		}

		newEntry = &models.LineupEntry{
			ID:        uuid.New(),
			ChannelID: channelID,
			MediaID:   mediaID,
			Position:  position,
			CreatedAt: time.Now().UTC(),
		}

		if err := tx.Create(newEntry).Error; err != nil {
			return fmt.Errorf("failed to create lineup entry: %w", err)
		}

		return nil
	})

	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Str("media_id", mediaID.String()).
			Int("position", position).
			Msg("Failed to add media to lineup")
		return nil, fmt.Errorf("failed to add media to lineup: %w", err)
	}

	logger.Log.Info().
		Str("lineup_entry_id", newEntry.ID.String()).
		Str("channel_id", channelID.String()).
		Str("media_id", mediaID.String()).
		Int("position", position).
		Msg("Media added to lineup successfully")

	s.notifyChange()
	return newEntry, nil
}

// BulkAddItem represents a single item to be added in a bulk operation
type BulkAddItem struct {
	MediaID  uuid.UUID
	Position int
}

// BulkAddToLineup adds multiple media items to a lineup in a single transaction
// This is much more efficient than calling AddToLineup multiple times
func (s *LineupService) BulkAddToLineup(ctx context.Context, channelID uuid.UUID, items []BulkAddItem) ([]*models.LineupEntry, error) {
	if len(items) == 0 {
		return nil, nil
	}

	// Validate positions are non-negative
	for i, item := range items {
		if item.Position < 0 {
			logger.Log.Warn().
				Int("index", i).
				Int("position", item.Position).
				Msg("Bulk add to lineup failed: invalid position")
			return nil, fmt.Errorf("failed to bulk add to lineup: position at index %d must be non-negative: %w", i, ErrInvalidPosition)
		}
	}

	// Validate channel exists once
	_, err := s.repos.Channels.GetByID(ctx, channelID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("failed to bulk add to lineup: %w", ErrChannelNotFound)
		}
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Msg("Failed to validate channel existence for bulk add")
		return nil, fmt.Errorf("failed to bulk add to lineup: %w", err)
	}

	// Batch validate media existence with single query
	mediaIDs := make([]uuid.UUID, len(items))
	for i, item := range items {
		mediaIDs[i] = item.MediaID
	}

	existsMap, err := s.repos.Media.ExistsByIDs(ctx, mediaIDs)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to batch validate media existence")
		return nil, fmt.Errorf("failed to bulk add to lineup: %w", err)
	}

	for _, mediaID := range mediaIDs {
		if !existsMap[mediaID] {
			logger.Log.Warn().
				Str("media_id", mediaID.String()).
				Msg("Bulk add to lineup failed: media not found")
			return nil, fmt.Errorf("failed to bulk add to lineup: media %s not found: %w", mediaID.String(), ErrMediaNotFound)
		}
	}

	// Create all entries within a single transaction
	var newEntries []*models.LineupEntry
	err = s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		entriesToInsert := make([]*models.LineupEntry, len(items))
		for i, item := range items {
			entriesToInsert[i] = &models.LineupEntry{
				ID:        uuid.New(),
				ChannelID: channelID,
				MediaID:   item.MediaID,
				Position:  item.Position,
				CreatedAt: now,
			}
		}

		// Single batch INSERT with GORM
		if err := tx.Create(&entriesToInsert).Error; err != nil {
			return fmt.Errorf("failed to create lineup entries: %w", err)
		}

		newEntries = entriesToInsert
		return nil
	})

	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Int("entry_count", len(items)).
			Msg("Failed to bulk add media to lineup")
		return nil, fmt.Errorf("failed to bulk add to lineup: %w", err)
	}

	logger.Log.Info().
		Str("channel_id", channelID.String()).
		Int("entry_count", len(newEntries)).
		Msg("Media items bulk added to lineup successfully")

	s.notifyChange()
	return newEntries, nil
}

// RemoveFromLineup removes a lineup entry and reorders remaining entries
func (s *LineupService) RemoveFromLineup(ctx context.Context, entryID uuid.UUID) error {
	// Fetch the entry to get its position and channel ID
	entry, err := s.repos.Lineup.GetByID(ctx, entryID)
	if err != nil {
		if db.IsNotFound(err) {
			logger.Log.Warn().
				Str("entry_id", entryID.String()).
				Msg("Remove from lineup failed: entry not found")
			return fmt.Errorf("failed to remove from lineup: %w", ErrLineupEntryNotFound)
		}
		logger.Log.Error().
			Err(err).
			Str("entry_id", entryID.String()).
			Msg("Failed to fetch lineup entry")
		return fmt.Errorf("failed to remove from lineup: %w", err)
	}

	deletedPosition := entry.Position
	channelID := entry.ChannelID

	// Delete entry and reorder within a transaction
	err = s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		result := tx.Where("id = ?", entryID.String()).Delete(&models.LineupEntry{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete lineup entry: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrLineupEntryNotFound
		}

		// Shift down entries after the deleted position
		result = tx.Model(&models.LineupEntry{}).
			Where("channel_id = ? AND position > ?", channelID.String(), deletedPosition).
			Update("position", gorm.Expr("position - 1"))
		if result.Error != nil {
			return fmt.Errorf("failed to reorder lineup entries: %w", result.Error)
		}

		return nil
	})

	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("entry_id", entryID.String()).
			Str("channel_id", channelID.String()).
			Msg("Failed to remove from lineup")
		return fmt.Errorf("failed to remove from lineup: %w", err)
	}

	logger.Log.Info().
		Str("entry_id", entryID.String()).
		Str("channel_id", channelID.String()).
		Int("position", deletedPosition).
		Msg("Entry removed from lineup successfully")

	s.notifyChange()
	return nil
}

// ReorderLineup reorders multiple lineup entries atomically
func (s *LineupService) ReorderLineup(ctx context.Context, channelID uuid.UUID, items []db.ReorderItem) error {
	// Validate all entries belong to the same channel
	for _, item := range items {
		existing, err := s.repos.Lineup.GetByID(ctx, item.ID)
		if err != nil {
			if db.IsNotFound(err) {
				logger.Log.Warn().
					Str("entry_id", item.ID.String()).
					Msg("Reorder failed: lineup entry not found")
				return fmt.Errorf("failed to reorder lineup: %w", ErrLineupEntryNotFound)
			}
			logger.Log.Error().
				Err(err).
				Str("entry_id", item.ID.String()).
				Msg("Failed to fetch lineup entry for validation")
			return fmt.Errorf("failed to reorder lineup: %w", err)
		}

		if existing.ChannelID != channelID {
			logger.Log.Warn().
				Str("entry_id", item.ID.String()).
				Str("expected_channel_id", channelID.String()).
				Str("actual_channel_id", existing.ChannelID.String()).
				Msg("Reorder failed: entry does not belong to channel")
			return fmt.Errorf("failed to reorder lineup: entry %s does not belong to channel %s", item.ID, channelID)
		}
	}

	// Use repository's reorder method (handles transaction)
	if err := s.repos.Lineup.Reorder(ctx, channelID, items); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Int("entry_count", len(items)).
			Msg("Failed to reorder lineup")
		return fmt.Errorf("failed to reorder lineup: %w", err)
	}

	logger.Log.Info().
		Str("channel_id", channelID.String()).
		Int("entry_count", len(items)).
		Msg("Lineup reordered successfully")

	s.notifyChange()
	return nil
}

// GetLineup retrieves all lineup entries for a channel with media details
func (s *LineupService) GetLineup(ctx context.Context, channelID uuid.UUID) ([]*models.LineupEntry, error) {
	// Validate channel exists
	_, err := s.repos.Channels.GetByID(ctx, channelID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("failed to get lineup: %w", ErrChannelNotFound)
		}
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Msg("Failed to validate channel existence")
		return nil, fmt.Errorf("failed to get lineup: %w", err)
	}

	entries, err := s.repos.Lineup.GetWithMedia(ctx, channelID)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Msg("Failed to get lineup entries")
		return nil, fmt.Errorf("failed to get lineup: %w", err)
	}

	logger.Log.Debug().
		Str("channel_id", channelID.String()).
		Int("entry_count", len(entries)).
		Msg("Retrieved lineup entries")

	return entries, nil
}

// CalculateDuration calculates the total loop duration in milliseconds from a
// list of lineup entries
func (s *LineupService) CalculateDuration(entries []*models.LineupEntry) int64 {
	var total int64
	for _, entry := range entries {
		if entry.Media != nil {
			total += entry.Media.DurationMs
		}
	}
	return total
}
