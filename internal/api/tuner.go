package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carousel-tv/carousel/internal/broadcast"
	"github.com/carousel-tv/carousel/internal/channel"
	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/schedule"
)

// TuneRequest represents a request to tune the live session to a channel
type TuneRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
}

// ProgramResponse wraps a resolved program for skip/failure responses
type ProgramResponse struct {
	Program schedule.Program `json:"program"`
}

// TunerHandler handles live tuner API requests
type TunerHandler struct {
	tuner *broadcast.Tuner
}

// NewTunerHandler creates a new tuner handler instance
func NewTunerHandler(tuner *broadcast.Tuner) *TunerHandler {
	return &TunerHandler{tuner: tuner}
}

// Tune handles POST /api/tuner/tune
func (h *TunerHandler) Tune(c *gin.Context) {
	var req TuneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.tuner.Tune(ctx, req.ChannelID); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", req.ChannelID).
			Msg("Failed to tune channel")

		switch {
		case broadcast.IsSwitchInProgress(err):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "switch_in_progress",
				Message: "Another channel switch is in progress",
			})
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
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "tune_failed",
				Message: "Failed to tune channel",
			})
		}
		return
	}

	c.JSON(http.StatusOK, h.tuner.Status())
}

// Detune handles POST /api/tuner/detune
func (h *TunerHandler) Detune(c *gin.Context) {
	h.tuner.Detune()
	c.JSON(http.StatusOK, h.tuner.Status())
}

// SkipNext handles POST /api/tuner/skip/next
func (h *TunerHandler) SkipNext(c *gin.Context) {
	program, err := h.tuner.SkipNext()
	if err != nil {
		h.writeSessionError(c, err, "skip_failed", "Failed to skip to next program")
		return
	}
	c.JSON(http.StatusOK, ProgramResponse{Program: program})
}

// SkipPrevious handles POST /api/tuner/skip/previous
func (h *TunerHandler) SkipPrevious(c *gin.Context) {
	program, err := h.tuner.SkipPrevious()
	if err != nil {
		h.writeSessionError(c, err, "skip_failed", "Failed to skip to previous program")
		return
	}
	c.JSON(http.StatusOK, ProgramResponse{Program: program})
}

// Pause handles POST /api/tuner/pause
func (h *TunerHandler) Pause(c *gin.Context) {
	h.tuner.Pause()
	c.JSON(http.StatusOK, h.tuner.Status())
}

// Resume handles POST /api/tuner/resume
func (h *TunerHandler) Resume(c *gin.Context) {
	if err := h.tuner.Resume(); err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to resume session")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "resume_failed",
			Message: "Failed to resume playback sync",
		})
		return
	}
	c.JSON(http.StatusOK, h.tuner.Status())
}

// ReportFailure handles POST /api/tuner/failure
func (h *TunerHandler) ReportFailure(c *gin.Context) {
	program, err := h.tuner.ReportFailure()
	if err != nil {
		if broadcast.IsGuardTripped(err) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "guard_tripped",
				Message: "Too many consecutive failures, auto-skip suspended",
			})
			return
		}
		h.writeSessionError(c, err, "failure_report_failed", "Failed to handle playback failure")
		return
	}
	c.JSON(http.StatusOK, ProgramResponse{Program: program})
}

// ReportPlaybackStarted handles POST /api/tuner/playing
func (h *TunerHandler) ReportPlaybackStarted(c *gin.Context) {
	h.tuner.ReportPlaybackStarted()
	c.JSON(http.StatusOK, h.tuner.Status())
}

// GetStatus handles GET /api/tuner/status
func (h *TunerHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.tuner.Status())
}

// writeSessionError maps live-session errors to API responses
func (h *TunerHandler) writeSessionError(c *gin.Context, err error, code, message string) {
	if broadcast.IsNotLoaded(err) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "not_tuned",
			Message: "No channel is tuned",
		})
		return
	}

	logger.Log.Error().
		Err(err).
		Msg(message)

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// SetupTunerRoutes registers live tuner routes
func SetupTunerRoutes(apiGroup *gin.RouterGroup, tuner *broadcast.Tuner) {
	handler := NewTunerHandler(tuner)

	apiGroup.POST("/tuner/tune", handler.Tune)
	apiGroup.POST("/tuner/detune", handler.Detune)
	apiGroup.POST("/tuner/skip/next", handler.SkipNext)
	apiGroup.POST("/tuner/skip/previous", handler.SkipPrevious)
	apiGroup.POST("/tuner/pause", handler.Pause)
	apiGroup.POST("/tuner/resume", handler.Resume)
	apiGroup.POST("/tuner/failure", handler.ReportFailure)
	apiGroup.POST("/tuner/playing", handler.ReportPlaybackStarted)
	apiGroup.GET("/tuner/status", handler.GetStatus)
}
