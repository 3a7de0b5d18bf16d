package channel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carousel-tv/carousel/internal/db"
	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/models"
)

// ChannelService handles business logic for channel operations
type ChannelService struct {
	repos    *db.Repositories
	onChange []func()
}

// NewChannelService creates a new channel service instance
func NewChannelService(repos *db.Repositories) *ChannelService {
	return &ChannelService{
		repos: repos,
	}
}

// OnChange registers an observer invoked after every successful channel
// mutation. Register before the service handles requests.
func (s *ChannelService) OnChange(fn func()) {
	s.onChange = append(s.onChange, fn)
}

func (s *ChannelService) notifyChange() {
	for _, fn := range s.onChange {
		fn()
	}
}

// CreateParams carries the caller-supplied fields for channel creation
type CreateParams struct {
	Name        string
	Number      int
	Icon        *string
	Mode        string
	ShuffleSeed uint32
	PhaseSeed   uint32
	Timezone    string
}

// CreateChannel creates a new channel with validation
func (s *ChannelService) CreateChannel(ctx context.Context, params CreateParams) (*models.Channel, error) {
	if params.Mode == "" {
		params.Mode = models.ModeSequential
	}
	if params.Timezone == "" {
		params.Timezone = "UTC"
	}

	if err := s.validateChannelFields(params.Mode, params.Timezone); err != nil {
		logger.Log.Warn().
			Str("name", params.Name).
			Str("mode", params.Mode).
			Str("timezone", params.Timezone).
			Msg("Channel creation failed: invalid fields")
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Validate name and number uniqueness
	if err := s.validateUniqueness(ctx, params.Name, params.Number, uuid.Nil); err != nil {
		logger.Log.Warn().
			Str("name", params.Name).
			Int("number", params.Number).
			Msg("Channel creation failed: duplicate name or number")
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	now := time.Now().UTC()
	channel := &models.Channel{
		ID:          uuid.New(),
		Name:        params.Name,
		Number:      params.Number,
		Icon:        params.Icon,
		Mode:        params.Mode,
		ShuffleSeed: params.ShuffleSeed,
		PhaseSeed:   params.PhaseSeed,
		Timezone:    params.Timezone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repos.Channels.Create(ctx, channel); err != nil {
		logger.Log.Error().
			Err(err).
			Str("name", params.Name).
			Msg("Failed to create channel in database")
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	logger.Log.Info().
		Str("channel_id", channel.ID.String()).
		Str("name", channel.Name).
		Int("number", channel.Number).
		Msg("Channel created successfully")

	s.notifyChange()
	return channel, nil
}

// GetByID retrieves a channel by its ID
func (s *ChannelService) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	channel, err := s.repos.Channels.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrChannelNotFound
		}
		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to get channel by ID")
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	return channel, nil
}

// GetByNumber retrieves a channel by its channel number
func (s *ChannelService) GetByNumber(ctx context.Context, number int) (*models.Channel, error) {
	channel, err := s.repos.Channels.GetByNumber(ctx, number)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrChannelNotFound
		}
		logger.Log.Error().
			Err(err).
			Int("number", number).
			Msg("Failed to get channel by number")
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	return channel, nil
}

// List retrieves all channels
func (s *ChannelService) List(ctx context.Context) ([]*models.Channel, error) {
	channels, err := s.repos.Channels.List(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to list channels")
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	logger.Log.Debug().
		Int("count", len(channels)).
		Msg("Listed channels")

	return channels, nil
}

// UpdateChannel updates an existing channel with validation
func (s *ChannelService) UpdateChannel(ctx context.Context, channel *models.Channel) error {
	// Load existing channel
	existing, err := s.GetByID(ctx, channel.ID)
	if err != nil {
		return err
	}

	if err := s.validateChannelFields(channel.Mode, channel.Timezone); err != nil {
		logger.Log.Warn().
			Str("channel_id", channel.ID.String()).
			Str("mode", channel.Mode).
			Str("timezone", channel.Timezone).
			Msg("Channel update failed: invalid fields")
		return fmt.Errorf("failed to update channel: %w", err)
	}

	// Validate uniqueness only when name or number changed
	if !strings.EqualFold(existing.Name, channel.Name) || existing.Number != channel.Number {
		if err := s.validateUniqueness(ctx, channel.Name, channel.Number, channel.ID); err != nil {
			logger.Log.Warn().
				Str("channel_id", channel.ID.String()).
				Str("name", channel.Name).
				Int("number", channel.Number).
				Msg("Channel update failed: duplicate name or number")
			return fmt.Errorf("failed to update channel: %w", err)
		}
	}

	channel.UpdatedAt = time.Now().UTC()

	if err := s.repos.Channels.Update(ctx, channel); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", channel.ID.String()).
			Msg("Failed to update channel in database")
		return fmt.Errorf("failed to update channel: %w", err)
	}

	logger.Log.Info().
		Str("channel_id", channel.ID.String()).
		Str("name", channel.Name).
		Msg("Channel updated successfully")

	s.notifyChange()
	return nil
}

// DeleteChannel deletes a channel by its ID
func (s *ChannelService) DeleteChannel(ctx context.Context, id uuid.UUID) error {
	// Verify channel exists
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	// Delete from database (cascade to lineup entries handled by DB)
	if err := s.repos.Channels.Delete(ctx, id); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to delete channel from database")
		return fmt.Errorf("failed to delete channel: %w", err)
	}

	logger.Log.Info().
		Str("channel_id", id.String()).
		Msg("Channel deleted successfully")

	s.notifyChange()
	return nil
}

// HasEmptyLineup checks if a channel has an empty lineup
func (s *ChannelService) HasEmptyLineup(ctx context.Context, channelID uuid.UUID) (bool, error) {
	entries, err := s.repos.Lineup.GetByChannelID(ctx, channelID)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Msg("Failed to check lineup entries")
		return false, fmt.Errorf("failed to check lineup: %w", err)
	}

	isEmpty := len(entries) == 0

	logger.Log.Debug().
		Str("channel_id", channelID.String()).
		Bool("is_empty", isEmpty).
		Int("entry_count", len(entries)).
		Msg("Checked channel lineup")

	return isEmpty, nil
}

// validateChannelFields checks playback mode and timezone
func (s *ChannelService) validateChannelFields(mode, timezone string) error {
	if !models.ValidMode(mode) {
		return ErrInvalidMode
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return ErrInvalidTimezone
	}
	return nil
}

// validateUniqueness checks name (case-insensitive) and number uniqueness.
// excludeID allows excluding a specific channel ID (for updates)
func (s *ChannelService) validateUniqueness(ctx context.Context, name string, number int, excludeID uuid.UUID) error {
	channels, err := s.repos.Channels.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to validate uniqueness: %w", err)
	}

	nameLower := strings.ToLower(strings.TrimSpace(name))

	for _, channel := range channels {
		// Skip the channel being updated
		if channel.ID == excludeID {
			continue
		}

		if strings.ToLower(strings.TrimSpace(channel.Name)) == nameLower {
			return ErrDuplicateChannelName
		}
		if channel.Number == number {
			return ErrDuplicateChannelNumber
		}
	}

	return nil
}
