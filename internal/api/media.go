package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/carousel-tv/carousel/internal/db"
	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/media"
	"github.com/carousel-tv/carousel/internal/models"
)

// Request/Response DTOs

// ScanRequest represents a request to trigger a media library scan
type ScanRequest struct {
	Path string `json:"path"` // Optional: defaults to the first configured library root
}

// ScanResponse represents the response after triggering a scan
type ScanResponse struct {
	ScanID  string `json:"scan_id"`
	Message string `json:"message"`
}

// MediaListResponse represents a paginated list of media items
type MediaListResponse struct {
	Items  []*models.Media `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// UpdateMediaRequest represents a request to update media metadata
type UpdateMediaRequest struct {
	Title    *string `json:"title,omitempty"`
	ShowName *string `json:"show_name,omitempty"`
	Season   *int    `json:"season,omitempty"`
	Episode  *int    `json:"episode,omitempty"`
}

// DeleteResponse represents a successful delete operation
type DeleteResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// MediaHandler handles media-related API requests
type MediaHandler struct {
	scanner     *media.Scanner
	repos       *db.Repositories
	importer    *media.Importer
	defaultRoot string
}

// NewMediaHandler creates a new media handler instance. The importer may be
// nil when no import bucket is configured.
func NewMediaHandler(scanner *media.Scanner, repos *db.Repositories, importer *media.Importer, defaultRoot string) *MediaHandler {
	return &MediaHandler{
		scanner:     scanner,
		repos:       repos,
		importer:    importer,
		defaultRoot: defaultRoot,
	}
}

// TriggerScan handles POST /api/media/scan
func (h *MediaHandler) TriggerScan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Empty body is acceptable - use default path
		if c.Request.ContentLength > 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "Invalid request body",
			})
			return
		}
	}

	if req.Path == "" {
		req.Path = h.defaultRoot
	}
	if req.Path == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_path",
			Message: "Media library path is required",
		})
		return
	}

	// The scan runs asynchronously and should not be tied to the HTTP
	// request lifecycle
	scanID, err := h.scanner.StartScan(context.Background(), req.Path)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("path", req.Path).
			Msg("Failed to start media scan")

		if errors.Is(err, media.ErrScanAlreadyRunning) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "scan_in_progress",
				Message: "A scan is already running",
			})
			return
		}

		if errors.Is(err, media.ErrInvalidDirectory) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_directory",
				Message: err.Error(),
			})
			return
		}

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "scan_failed",
			Message: "Failed to start media scan",
		})
		return
	}

	logger.Log.Info().
		Str("scan_id", scanID).
		Str("path", req.Path).
		Msg("Media scan started")

	c.JSON(http.StatusCreated, ScanResponse{
		ScanID:  scanID,
		Message: "Scan started",
	})
}

// GetScanStatus handles GET /api/media/scan/:scanId/status
func (h *MediaHandler) GetScanStatus(c *gin.Context) {
	scanID := c.Param("scanId")

	progress, err := h.scanner.GetScanProgress(scanID)
	if err != nil {
		if errors.Is(err, media.ErrScanNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "scan_not_found",
				Message: "Scan not found",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("scan_id", scanID).
			Msg("Failed to get scan progress")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to retrieve scan progress",
		})
		return
	}

	c.JSON(http.StatusOK, progress)
}

// CancelScan handles DELETE /api/media/scan/:scanId
func (h *MediaHandler) CancelScan(c *gin.Context) {
	scanID := c.Param("scanId")

	if err := h.scanner.CancelScan(scanID); err != nil {
		if errors.Is(err, media.ErrScanNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "scan_not_found",
				Message: "Scan not found",
			})
			return
		}

		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "cancel_failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Scan cancellation requested"})
}

// TriggerImport handles POST /api/media/import
func (h *MediaHandler) TriggerImport(c *gin.Context) {
	if h.importer == nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "import_disabled",
			Message: "No import bucket is configured",
		})
		return
	}

	// Imports can move a lot of data; give them a generous budget
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Minute)
	defer cancel()

	result, err := h.importer.Run(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Library import failed")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "import_failed",
			Message: "Library import failed",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListMedia handles GET /api/media
func (h *MediaHandler) ListMedia(c *gin.Context) {
	// Parse pagination parameters
	limit := 20 // default
	unlimitedFetch := false

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			if l == -1 {
				// Special case: fetch all items
				unlimitedFetch = true
				limit = 0 // GORM uses 0 for no limit
			} else if l > 0 {
				limit = l
				if limit > 10000 {
					limit = 10000
				}
			}
		}
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	showName := c.Query("show")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	var mediaItems []*models.Media
	var totalCount int64
	var err error

	if showName != "" {
		mediaItems, err = h.repos.Media.ListByShow(ctx, showName, limit, offset)
		if err == nil {
			totalCount, err = h.repos.Media.CountByShow(ctx, showName)
		}
	} else {
		mediaItems, err = h.repos.Media.List(ctx, limit, offset)
		if err == nil {
			totalCount, err = h.repos.Media.Count(ctx)
		}
	}

	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("show", showName).
			Int("limit", limit).
			Int("offset", offset).
			Msg("Failed to list media")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve media list",
		})
		return
	}

	responseLimit := limit
	if unlimitedFetch {
		responseLimit = int(totalCount)
	}

	c.JSON(http.StatusOK, MediaListResponse{
		Items:  mediaItems,
		Total:  int(totalCount),
		Limit:  responseLimit,
		Offset: offset,
	})
}

// GetMedia handles GET /api/media/:id
func (h *MediaHandler) GetMedia(c *gin.Context) {
	idStr := c.Param("id")

	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid media ID format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	mediaItem, err := h.repos.Media.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Media not found",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("id", id.String()).
			Msg("Failed to get media by ID")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve media",
		})
		return
	}

	c.JSON(http.StatusOK, mediaItem)
}

// UpdateMedia handles PUT /api/media/:id
func (h *MediaHandler) UpdateMedia(c *gin.Context) {
	idStr := c.Param("id")

	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid media ID format",
		})
		return
	}

	var req UpdateMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	mediaItem, err := h.repos.Media.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Media not found",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("id", id.String()).
			Msg("Failed to get media for update")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve media",
		})
		return
	}

	// Apply partial updates
	if req.Title != nil {
		mediaItem.Title = *req.Title
	}
	if req.ShowName != nil {
		mediaItem.ShowName = req.ShowName
	}
	if req.Season != nil {
		mediaItem.Season = req.Season
	}
	if req.Episode != nil {
		mediaItem.Episode = req.Episode
	}

	if err := h.repos.Media.Update(ctx, mediaItem); err != nil {
		logger.Log.Error().
			Err(err).
			Str("id", id.String()).
			Msg("Failed to update media")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "update_failed",
			Message: "Failed to update media",
		})
		return
	}

	logger.Log.Info().
		Str("id", id.String()).
		Msg("Media updated successfully")

	c.JSON(http.StatusOK, mediaItem)
}

// DeleteMedia handles DELETE /api/media/:id
func (h *MediaHandler) DeleteMedia(c *gin.Context) {
	idStr := c.Param("id")

	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid media ID format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	// Check if media exists first
	_, err = h.repos.Media.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Media not found",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("id", id.String()).
			Msg("Failed to check media existence")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to check media",
		})
		return
	}

	if err := h.repos.Media.Delete(ctx, id); err != nil {
		logger.Log.Error().
			Err(err).
			Str("id", id.String()).
			Msg("Failed to delete media")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delete_failed",
			Message: "Failed to delete media",
		})
		return
	}

	logger.Log.Info().
		Str("id", id.String()).
		Msg("Media deleted successfully")

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Media deleted successfully",
	})
}

// SetupMediaRoutes registers media-related routes
func SetupMediaRoutes(apiGroup *gin.RouterGroup, scanner *media.Scanner, repos *db.Repositories, importer *media.Importer, defaultRoot string) {
	handler := NewMediaHandler(scanner, repos, importer, defaultRoot)

	// Scan endpoints
	apiGroup.POST("/media/scan", handler.TriggerScan)
	apiGroup.GET("/media/scan/:scanId/status", handler.GetScanStatus)
	apiGroup.DELETE("/media/scan/:scanId", handler.CancelScan)

	// Bucket import
	apiGroup.POST("/media/import", handler.TriggerImport)

	// Media CRUD endpoints
	apiGroup.GET("/media", handler.ListMedia)
	apiGroup.GET("/media/:id", handler.GetMedia)
	apiGroup.PUT("/media/:id", handler.UpdateMedia)
	apiGroup.DELETE("/media/:id", handler.DeleteMedia)
}
