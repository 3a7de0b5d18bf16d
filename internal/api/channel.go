package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/carousel-tv/carousel/internal/channel"
	"github.com/carousel-tv/carousel/internal/db"
	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/models"
)

// Request/Response DTOs

// CreateChannelRequest represents a request to create a new channel
type CreateChannelRequest struct {
	Name        string  `json:"name" binding:"required"`
	Number      int     `json:"number" binding:"required,gte=1"`
	Icon        *string `json:"icon,omitempty"`
	Mode        string  `json:"mode,omitempty"`
	ShuffleSeed uint32  `json:"shuffle_seed,omitempty"`
	PhaseSeed   uint32  `json:"phase_seed,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
}

// UpdateChannelRequest represents a request to update channel metadata (partial update)
type UpdateChannelRequest struct {
	Name        *string `json:"name,omitempty"`
	Number      *int    `json:"number,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	Mode        *string `json:"mode,omitempty"`
	ShuffleSeed *uint32 `json:"shuffle_seed,omitempty"`
	PhaseSeed   *uint32 `json:"phase_seed,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// ChannelResponse represents a channel in API responses
type ChannelResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Number      int       `json:"number"`
	Icon        *string   `json:"icon,omitempty"`
	Mode        string    `json:"mode"`
	ShuffleSeed uint32    `json:"shuffle_seed"`
	PhaseSeed   uint32    `json:"phase_seed"`
	Timezone    string    `json:"timezone"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChannelListResponse represents a list of channels
type ChannelListResponse struct {
	Channels []*ChannelResponse `json:"channels"`
}

// Lineup DTOs

// AddToLineupRequest represents a request to add media to a lineup
type AddToLineupRequest struct {
	MediaID  string `json:"media_id" binding:"required"`
	Position int    `json:"position" binding:"gte=0"`
}

// BulkAddToLineupRequest represents a request to add multiple media items to a lineup
type BulkAddToLineupRequest struct {
	Items []AddToLineupRequest `json:"items" binding:"required,min=1"`
}

// ReorderLineupRequest represents a request to reorder lineup entries
type ReorderLineupRequest struct {
	Items []ReorderEntry `json:"items" binding:"required,min=1"`
}

// ReorderEntry represents an entry position in a reorder request
type ReorderEntry struct {
	EntryID  string `json:"entry_id" binding:"required"`
	Position int    `json:"position" binding:"gte=0"`
}

// LineupEntryResponse represents a lineup entry with embedded media details
type LineupEntryResponse struct {
	ID        string        `json:"id"`
	ChannelID string        `json:"channel_id"`
	MediaID   string        `json:"media_id"`
	Position  int           `json:"position"`
	CreatedAt time.Time     `json:"created_at"`
	Media     *models.Media `json:"media,omitempty"`
}

// LineupResponse represents a channel's lineup with its total loop duration
type LineupResponse struct {
	Entries         []*LineupEntryResponse `json:"entries"`
	TotalDurationMs int64                  `json:"total_duration_ms"`
}

// ChannelHandler handles channel-related API requests
type ChannelHandler struct {
	channelService *channel.ChannelService
	lineupService  *channel.LineupService
}

// NewChannelHandler creates a new channel handler instance
func NewChannelHandler(channelService *channel.ChannelService, lineupService *channel.LineupService) *ChannelHandler {
	return &ChannelHandler{
		channelService: channelService,
		lineupService:  lineupService,
	}
}

// toChannelResponse converts a channel model to API response format
func toChannelResponse(ch *models.Channel) *ChannelResponse {
	return &ChannelResponse{
		ID:          ch.ID.String(),
		Name:        ch.Name,
		Number:      ch.Number,
		Icon:        ch.Icon,
		Mode:        ch.Mode,
		ShuffleSeed: ch.ShuffleSeed,
		PhaseSeed:   ch.PhaseSeed,
		Timezone:    ch.Timezone,
		CreatedAt:   ch.CreatedAt,
		UpdatedAt:   ch.UpdatedAt,
	}
}

// toLineupEntryResponse converts a lineup entry model to API response format
func toLineupEntryResponse(entry *models.LineupEntry) *LineupEntryResponse {
	return &LineupEntryResponse{
		ID:        entry.ID.String(),
		ChannelID: entry.ChannelID.String(),
		MediaID:   entry.MediaID.String(),
		Position:  entry.Position,
		CreatedAt: entry.CreatedAt,
		Media:     entry.Media,
	}
}

// channelErrorResponse maps channel service errors to API responses.
// Returns true when it wrote a response.
func channelErrorResponse(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, channel.ErrChannelNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Channel not found",
		})
	case errors.Is(err, channel.ErrDuplicateChannelName):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "duplicate_name",
			Message: "A channel with this name already exists",
		})
	case errors.Is(err, channel.ErrDuplicateChannelNumber):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "duplicate_number",
			Message: "A channel with this number already exists",
		})
	case errors.Is(err, channel.ErrInvalidMode):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_mode",
			Message: "Playback mode must be sequential or shuffle",
		})
	case errors.Is(err, channel.ErrInvalidTimezone):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_timezone",
			Message: "Unknown timezone identifier",
		})
	default:
		return false
	}
	return true
}

// CreateChannel handles POST /api/channels
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	newChannel, err := h.channelService.CreateChannel(ctx, channel.CreateParams{
		Name:        req.Name,
		Number:      req.Number,
		Icon:        req.Icon,
		Mode:        req.Mode,
		ShuffleSeed: req.ShuffleSeed,
		PhaseSeed:   req.PhaseSeed,
		Timezone:    req.Timezone,
	})
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("name", req.Name).
			Int("number", req.Number).
			Msg("Failed to create channel")

		if channelErrorResponse(c, err) {
			return
		}

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create channel",
		})
		return
	}

	logger.Log.Info().
		Str("channel_id", newChannel.ID.String()).
		Str("name", newChannel.Name).
		Msg("Channel created successfully")

	c.JSON(http.StatusCreated, toChannelResponse(newChannel))
}

// ListChannels handles GET /api/channels
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	channels, err := h.channelService.List(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to list channels")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve channel list",
		})
		return
	}

	responses := make([]*ChannelResponse, len(channels))
	for i, ch := range channels {
		responses[i] = toChannelResponse(ch)
	}

	c.JSON(http.StatusOK, ChannelListResponse{
		Channels: responses,
	})
}

// GetChannel handles GET /api/channels/:id
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	id, ok := parseChannelID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	ch, err := h.channelService.GetByID(ctx, id)
	if err != nil {
		if channelErrorResponse(c, err) {
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to get channel by ID")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve channel",
		})
		return
	}

	c.JSON(http.StatusOK, toChannelResponse(ch))
}

// GetChannelByNumber handles GET /api/channels/number/:number
func (h *ChannelHandler) GetChannelByNumber(c *gin.Context) {
	var number int
	if _, err := fmt.Sscanf(c.Param("number"), "%d", &number); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_number",
			Message: "Invalid channel number",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	ch, err := h.channelService.GetByNumber(ctx, number)
	if err != nil {
		if channelErrorResponse(c, err) {
			return
		}

		logger.Log.Error().
			Err(err).
			Int("number", number).
			Msg("Failed to get channel by number")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve channel",
		})
		return
	}

	c.JSON(http.StatusOK, toChannelResponse(ch))
}

// UpdateChannel handles PUT /api/channels/:id
func (h *ChannelHandler) UpdateChannel(c *gin.Context) {
	id, ok := parseChannelID(c)
	if !ok {
		return
	}

	var req UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	ch, err := h.channelService.GetByID(ctx, id)
	if err != nil {
		if channelErrorResponse(c, err) {
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to get channel for update")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve channel",
		})
		return
	}

	// Apply partial updates
	if req.Name != nil {
		ch.Name = *req.Name
	}
	if req.Number != nil {
		ch.Number = *req.Number
	}
	if req.Icon != nil {
		ch.Icon = req.Icon
	}
	if req.Mode != nil {
		ch.Mode = *req.Mode
	}
	if req.ShuffleSeed != nil {
		ch.ShuffleSeed = *req.ShuffleSeed
	}
	if req.PhaseSeed != nil {
		ch.PhaseSeed = *req.PhaseSeed
	}
	if req.Timezone != nil {
		ch.Timezone = *req.Timezone
	}

	if err := h.channelService.UpdateChannel(ctx, ch); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to update channel")

		if channelErrorResponse(c, err) {
			return
		}

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "update_failed",
			Message: "Failed to update channel",
		})
		return
	}

	logger.Log.Info().
		Str("channel_id", id.String()).
		Msg("Channel updated successfully")

	c.JSON(http.StatusOK, toChannelResponse(ch))
}

// DeleteChannel handles DELETE /api/channels/:id
func (h *ChannelHandler) DeleteChannel(c *gin.Context) {
	id, ok := parseChannelID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.channelService.DeleteChannel(ctx, id); err != nil {
		if channelErrorResponse(c, err) {
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to delete channel")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delete_failed",
			Message: "Failed to delete channel",
		})
		return
	}

	logger.Log.Info().
		Str("channel_id", id.String()).
		Msg("Channel deleted successfully")

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Channel deleted successfully",
	})
}

// GetLineup handles GET /api/channels/:id/lineup
func (h *ChannelHandler) GetLineup(c *gin.Context) {
	channelID, ok := parseChannelID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	entries, err := h.lineupService.GetLineup(ctx, channelID)
	if err != nil {
		if channelErrorResponse(c, err) {
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Msg("Failed to get lineup")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve lineup",
		})
		return
	}

	duration := h.lineupService.CalculateDuration(entries)

	responses := make([]*LineupEntryResponse, len(entries))
	for i, entry := range entries {
		responses[i] = toLineupEntryResponse(entry)
	}

	c.JSON(http.StatusOK, LineupResponse{
		Entries:         responses,
		TotalDurationMs: duration,
	})
}

// AddToLineup handles POST /api/channels/:id/lineup
func (h *ChannelHandler) AddToLineup(c *gin.Context) {
	channelID, ok := parseChannelID(c)
	if !ok {
		return
	}

	var req AddToLineupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	mediaID, err := uuid.Parse(req.MediaID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_media_id",
			Message: "Invalid media ID format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	entry, err := h.lineupService.AddToLineup(ctx, channelID, mediaID, req.Position)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Str("media_id", mediaID.String()).
			Int("position", req.Position).
			Msg("Failed to add media to lineup")

		if channelErrorResponse(c, err) {
			return
		}

		if errors.Is(err, channel.ErrMediaNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "media_not_found",
				Message: "Media not found",
			})
			return
		}

		if errors.Is(err, channel.ErrInvalidPosition) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_position",
				Message: "Position must be non-negative",
			})
			return
		}

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "add_failed",
			Message: "Failed to add media to lineup",
		})
		return
	}

	logger.Log.Info().
		Str("channel_id", channelID.String()).
		Str("media_id", mediaID.String()).
		Str("entry_id", entry.ID.String()).
		Int("position", req.Position).
		Msg("Media added to lineup successfully")

	c.JSON(http.StatusCreated, toLineupEntryResponse(entry))
}

// BulkAddToLineup handles POST /api/channels/:id/lineup/bulk
func (h *ChannelHandler) BulkAddToLineup(c *gin.Context) {
	channelID, ok := parseChannelID(c)
	if !ok {
		return
	}

	var req BulkAddToLineupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	bulkItems := make([]channel.BulkAddItem, 0, len(req.Items))
	for _, item := range req.Items {
		mediaID, err := uuid.Parse(item.MediaID)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_media_id",
				Message: fmt.Sprintf("Invalid media ID format: %s", item.MediaID),
			})
			return
		}

		bulkItems = append(bulkItems, channel.BulkAddItem{
			MediaID:  mediaID,
			Position: item.Position,
		})
	}

	entries, err := h.lineupService.BulkAddToLineup(ctx, channelID, bulkItems)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Int("entry_count", len(req.Items)).
			Msg("Failed to bulk add media to lineup")

		if channelErrorResponse(c, err) {
			return
		}

		if errors.Is(err, channel.ErrMediaNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "media_not_found",
				Message: "One or more media items not found",
			})
			return
		}

		if errors.Is(err, channel.ErrInvalidPosition) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_position",
				Message: "Positions must be non-negative",
			})
			return
		}

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "bulk_add_failed",
			Message: "Failed to add entries to lineup",
		})
		return
	}

	responses := make([]*LineupEntryResponse, len(entries))
	for i, entry := range entries {
		responses[i] = toLineupEntryResponse(entry)
	}

	logger.Log.Info().
		Str("channel_id", channelID.String()).
		Int("entry_count", len(responses)).
		Msg("Bulk add to lineup completed successfully")

	c.JSON(http.StatusCreated, gin.H{
		"entries": responses,
		"added":   len(responses),
	})
}

// RemoveFromLineup handles DELETE /api/channels/:id/lineup/:entry_id
func (h *ChannelHandler) RemoveFromLineup(c *gin.Context) {
	channelID, ok := parseChannelID(c)
	if !ok {
		return
	}

	entryID, err := uuid.Parse(c.Param("entry_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_entry_id",
			Message: "Invalid entry ID format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.lineupService.RemoveFromLineup(ctx, entryID); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Str("entry_id", entryID.String()).
			Msg("Failed to remove entry from lineup")

		if errors.Is(err, channel.ErrLineupEntryNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Lineup entry not found",
			})
			return
		}

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "remove_failed",
			Message: "Failed to remove entry from lineup",
		})
		return
	}

	logger.Log.Info().
		Str("channel_id", channelID.String()).
		Str("entry_id", entryID.String()).
		Msg("Entry removed from lineup successfully")

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Lineup entry removed successfully",
	})
}

// ReorderLineup handles PUT /api/channels/:id/lineup/reorder
func (h *ChannelHandler) ReorderLineup(c *gin.Context) {
	channelID, ok := parseChannelID(c)
	if !ok {
		return
	}

	var req ReorderLineupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	reorderItems := make([]db.ReorderItem, len(req.Items))
	for i, item := range req.Items {
		entryID, err := uuid.Parse(item.EntryID)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_entry_id",
				Message: fmt.Sprintf("Invalid entry ID format at index %d", i),
			})
			return
		}
		reorderItems[i] = db.ReorderItem{
			ID:       entryID,
			Position: item.Position,
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.lineupService.ReorderLineup(ctx, channelID, reorderItems); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Int("entry_count", len(reorderItems)).
			Msg("Failed to reorder lineup")

		if errors.Is(err, channel.ErrLineupEntryNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "One or more lineup entries not found",
			})
			return
		}

		if errors.Is(err, channel.ErrInvalidPosition) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_position",
				Message: "Invalid position values provided",
			})
			return
		}

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "reorder_failed",
			Message: "Failed to reorder lineup",
		})
		return
	}

	logger.Log.Info().
		Str("channel_id", channelID.String()).
		Int("entry_count", len(reorderItems)).
		Msg("Lineup reordered successfully")

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Lineup reordered successfully",
	})
}

// parseChannelID validates the :id path parameter, writing a 400 on failure
func parseChannelID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid channel ID format",
		})
		return uuid.Nil, false
	}
	return id, true
}

// SetupChannelRoutes registers channel-related routes
func SetupChannelRoutes(apiGroup *gin.RouterGroup, channelService *channel.ChannelService, lineupService *channel.LineupService) {
	handler := NewChannelHandler(channelService, lineupService)

	// Channel CRUD endpoints
	apiGroup.POST("/channels", handler.CreateChannel)
	apiGroup.GET("/channels", handler.ListChannels)
	apiGroup.GET("/channels/:id", handler.GetChannel)
	apiGroup.GET("/channels/number/:number", handler.GetChannelByNumber)
	apiGroup.PUT("/channels/:id", handler.UpdateChannel)
	apiGroup.DELETE("/channels/:id", handler.DeleteChannel)

	// Lineup endpoints
	apiGroup.GET("/channels/:id/lineup", handler.GetLineup)
	apiGroup.POST("/channels/:id/lineup/bulk", handler.BulkAddToLineup)
	apiGroup.POST("/channels/:id/lineup", handler.AddToLineup)
	apiGroup.DELETE("/channels/:id/lineup/:entry_id", handler.RemoveFromLineup)
	apiGroup.PUT("/channels/:id/lineup/reorder", handler.ReorderLineup)
}
