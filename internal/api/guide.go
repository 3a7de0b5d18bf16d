package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carousel-tv/carousel/internal/channel"
	"github.com/carousel-tv/carousel/internal/guide"
	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/schedule"
)

// GridResponse represents a guide grid over a time window
type GridResponse struct {
	FromMs   int64                  `json:"from_ms"`
	ToMs     int64                  `json:"to_ms"`
	Channels []guide.ChannelListing `json:"channels"`
}

// ChannelGuideResponse represents one channel's listings over a time window
type ChannelGuideResponse struct {
	ChannelID string             `json:"channel_id"`
	FromMs    int64              `json:"from_ms"`
	ToMs      int64              `json:"to_ms"`
	Programs  []schedule.Program `json:"programs"`
}

// GuideHandler handles program guide API requests
type GuideHandler struct {
	guide   *guide.Service
	horizon time.Duration
	nowFn   func() int64
}

// NewGuideHandler creates a new guide handler instance
func NewGuideHandler(svc *guide.Service, horizon time.Duration) *GuideHandler {
	return &GuideHandler{
		guide:   svc,
		horizon: horizon,
		nowFn:   func() int64 { return time.Now().UnixMilli() },
	}
}

// parseWindow reads optional from/to query params (epoch milliseconds),
// defaulting to [now, now+horizon). Writes a 400 and returns false on bad
// input.
func (h *GuideHandler) parseWindow(c *gin.Context) (int64, int64, bool) {
	fromMs := h.nowFn()
	toMs := fromMs + h.horizon.Milliseconds()

	if fromStr := c.Query("from"); fromStr != "" {
		v, err := strconv.ParseInt(fromStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_from",
				Message: "from must be epoch milliseconds",
			})
			return 0, 0, false
		}
		fromMs = v
		toMs = fromMs + h.horizon.Milliseconds()
	}

	if toStr := c.Query("to"); toStr != "" {
		v, err := strconv.ParseInt(toStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_to",
				Message: "to must be epoch milliseconds",
			})
			return 0, 0, false
		}
		toMs = v
	}

	if toMs <= fromMs {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_window",
			Message: "to must be after from",
		})
		return 0, 0, false
	}

	return fromMs, toMs, true
}

// GetGrid handles GET /api/guide
func (h *GuideHandler) GetGrid(c *gin.Context) {
	fromMs, toMs, ok := h.parseWindow(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	listings, err := h.guide.Grid(ctx, fromMs, toMs)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Int64("from_ms", fromMs).
			Int64("to_ms", toMs).
			Msg("Failed to build guide grid")

		if guide.IsStaleBuild(err) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "guide_busy",
				Message: "Guide is rebuilding, retry shortly",
			})
			return
		}

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "grid_failed",
			Message: "Failed to build guide grid",
		})
		return
	}

	c.JSON(http.StatusOK, GridResponse{
		FromMs:   fromMs,
		ToMs:     toMs,
		Channels: listings,
	})
}

// GetChannelGuide handles GET /api/channels/:id/guide
func (h *GuideHandler) GetChannelGuide(c *gin.Context) {
	channelID := c.Param("id")

	fromMs, toMs, ok := h.parseWindow(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	programs, err := h.guide.ChannelWindow(ctx, channelID, fromMs, toMs)
	if err != nil {
		if h.writeChannelGuideError(c, channelID, err) {
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID).
			Msg("Failed to build channel guide")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "guide_failed",
			Message: "Failed to build channel guide",
		})
		return
	}

	c.JSON(http.StatusOK, ChannelGuideResponse{
		ChannelID: channelID,
		FromMs:    fromMs,
		ToMs:      toMs,
		Programs:  programs,
	})
}

// GetNowNext handles GET /api/channels/:id/now
func (h *GuideHandler) GetNowNext(c *gin.Context) {
	channelID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	nowNext, err := h.guide.NowNext(ctx, channelID)
	if err != nil {
		if h.writeChannelGuideError(c, channelID, err) {
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID).
			Msg("Failed to resolve now/next")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "now_next_failed",
			Message: "Failed to resolve current program",
		})
		return
	}

	c.JSON(http.StatusOK, nowNext)
}

// writeChannelGuideError maps guide lookup errors to API responses.
// Returns true when it wrote a response.
func (h *GuideHandler) writeChannelGuideError(c *gin.Context, channelID string, err error) bool {
	switch {
	case channel.IsChannelNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Channel not found",
		})
	case schedule.IsEmptyContent(err):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "empty_lineup",
			Message: "Channel has no scheduled content",
		})
	default:
		return false
	}
	return true
}

// SetupGuideRoutes registers guide-related routes
func SetupGuideRoutes(apiGroup *gin.RouterGroup, svc *guide.Service, horizon time.Duration) {
	handler := NewGuideHandler(svc, horizon)

	apiGroup.GET("/guide", handler.GetGrid)
	apiGroup.GET("/channels/:id/guide", handler.GetChannelGuide)
	apiGroup.GET("/channels/:id/now", handler.GetNowNext)
}
