// Package media provides library scanning, filename parsing, metadata
// probing, and ingest for the catalog.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/carousel-tv/carousel/internal/db"
	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/models"
)

// Default supported video file extensions
var defaultVideoFormats = []string{".mp4", ".mkv", ".avi", ".mov"}

// Scan retention and cleanup settings
const (
	scanRetentionPeriod = 1 * time.Hour    // Keep completed scans for 1 hour
	cleanupInterval     = 15 * time.Minute // Run cleanup every 15 minutes
)

// ScanStatus represents the current state of a library scan
type ScanStatus string

// Library scan status constants
const (
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusCancelled ScanStatus = "cancelled"
	ScanStatusFailed    ScanStatus = "failed"
)

// Common scanner errors
var (
	ErrScanNotFound       = errors.New("scan not found")
	ErrScanAlreadyRunning = errors.New("a scan is already running")
	ErrInvalidDirectory   = errors.New("invalid directory path")
)

// ScanProgress tracks the progress of a library scan operation
type ScanProgress struct {
	ScanID         string     `json:"scan_id"`
	Status         ScanStatus `json:"status"`
	TotalFiles     int        `json:"total_files"`
	ProcessedFiles int        `json:"processed_files"`
	SuccessCount   int        `json:"success_count"`
	FailedCount    int        `json:"failed_count"`
	CurrentFile    string     `json:"current_file"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Errors         []string   `json:"errors,omitempty"`
	mu             sync.RWMutex
	cancelFunc     context.CancelFunc
}

// Scanner manages asynchronous library scanning. The filesystem and prober
// are injected so tests run against an in-memory fs without ffprobe.
type Scanner struct {
	fs      afero.Fs
	repos   *db.Repositories
	prober  Prober
	formats []string

	activeScans map[string]*ScanProgress
	mu          sync.RWMutex
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// NewScanner creates a new library scanner instance
func NewScanner(repos *db.Repositories, fs afero.Fs, prober Prober, formats []string) *Scanner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if prober == nil {
		prober = ProbeFile
	}
	if len(formats) == 0 {
		formats = defaultVideoFormats
	}

	s := &Scanner{
		fs:          fs,
		repos:       repos,
		prober:      prober,
		formats:     normalizeFormats(formats),
		activeScans: make(map[string]*ScanProgress),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}

	go s.runCleanupLoop()

	return s
}

// StartScan initiates an asynchronous library scan of the specified directory
// Returns the scan ID that can be used to track progress
func (s *Scanner) StartScan(ctx context.Context, dirPath string) (string, error) {
	// Validate directory exists and is readable
	info, err := s.fs.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: directory does not exist", ErrInvalidDirectory)
		}
		return "", fmt.Errorf("%w: %w", ErrInvalidDirectory, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: path is not a directory", ErrInvalidDirectory)
	}

	// Check for concurrent scans and insert atomically
	s.mu.Lock()
	for _, scan := range s.activeScans {
		scan.mu.RLock()
		if scan.Status == ScanStatusRunning {
			scan.mu.RUnlock()
			s.mu.Unlock()
			return "", ErrScanAlreadyRunning
		}
		scan.mu.RUnlock()
	}

	scanID := uuid.New().String()
	scanCtx, cancel := context.WithCancel(ctx)

	progress := &ScanProgress{
		ScanID:     scanID,
		Status:     ScanStatusRunning,
		StartTime:  time.Now().UTC(),
		Errors:     []string{},
		cancelFunc: cancel,
	}

	s.activeScans[scanID] = progress
	s.mu.Unlock()

	go s.performScan(scanCtx, scanID, dirPath)

	logger.Log.Info().
		Str("scan_id", scanID).
		Str("directory", dirPath).
		Msg("Library scan started")

	return scanID, nil
}

// GetScanProgress retrieves the current progress of a scan
func (s *Scanner) GetScanProgress(scanID string) (*ScanProgress, error) {
	s.mu.RLock()
	progress, exists := s.activeScans[scanID]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrScanNotFound
	}

	// Return a copy of the progress to avoid race conditions
	progress.mu.RLock()
	defer progress.mu.RUnlock()

	return &ScanProgress{
		ScanID:         progress.ScanID,
		Status:         progress.Status,
		TotalFiles:     progress.TotalFiles,
		ProcessedFiles: progress.ProcessedFiles,
		SuccessCount:   progress.SuccessCount,
		FailedCount:    progress.FailedCount,
		CurrentFile:    progress.CurrentFile,
		StartTime:      progress.StartTime,
		EndTime:        progress.EndTime,
		Errors:         append([]string{}, progress.Errors...),
	}, nil
}

// CancelScan cancels a running scan
func (s *Scanner) CancelScan(scanID string) error {
	s.mu.RLock()
	progress, exists := s.activeScans[scanID]
	s.mu.RUnlock()

	if !exists {
		return ErrScanNotFound
	}

	progress.mu.Lock()
	if progress.Status != ScanStatusRunning {
		progress.mu.Unlock()
		return fmt.Errorf("scan is not running (status: %s)", progress.Status)
	}
	if progress.cancelFunc != nil {
		progress.cancelFunc()
	}
	progress.mu.Unlock()

	logger.Log.Info().
		Str("scan_id", scanID).
		Msg("Library scan cancellation requested")

	return nil
}

// performScan executes the actual scanning logic asynchronously
func (s *Scanner) performScan(ctx context.Context, scanID, dirPath string) {
	s.mu.RLock()
	progress := s.activeScans[scanID]
	s.mu.RUnlock()

	videoFiles := s.findVideoFiles(ctx, dirPath, progress)

	if ctx.Err() != nil {
		s.finalizeScan(progress, ScanStatusCancelled)
		return
	}

	progress.mu.Lock()
	progress.TotalFiles = len(videoFiles)
	progress.mu.Unlock()

	logger.Log.Info().
		Str("scan_id", scanID).
		Int("total_files", len(videoFiles)).
		Msg("Found video files to process")

	for _, filePath := range videoFiles {
		select {
		case <-ctx.Done():
			s.finalizeScan(progress, ScanStatusCancelled)
			return
		default:
		}

		s.processVideoFile(ctx, filePath, progress)
	}

	s.finalizeScan(progress, ScanStatusCompleted)
}

// findVideoFiles walks the directory tree and returns all video file paths
func (s *Scanner) findVideoFiles(ctx context.Context, dirPath string, progress *ScanProgress) []string {
	var videoFiles []string

	err := afero.Walk(s.fs, dirPath, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			errMsg := fmt.Sprintf("error accessing path %s: %v", path, err)
			logger.Log.Warn().
				Str("path", path).
				Err(err).
				Msg("Error during directory walk")
			progress.mu.Lock()
			progress.Errors = append(progress.Errors, errMsg)
			progress.mu.Unlock()
			return nil // Continue walking
		}

		if info.IsDir() {
			return nil
		}

		if s.isVideoFile(path) {
			videoFiles = append(videoFiles, path)
		}

		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		errMsg := fmt.Sprintf("directory walk failed: %v", err)
		logger.Log.Error().Err(err).Msg("Directory walk failed")
		progress.mu.Lock()
		progress.Errors = append(progress.Errors, errMsg)
		progress.mu.Unlock()
	}

	return videoFiles
}

// processVideoFile probes, parses, and upserts a single video file
func (s *Scanner) processVideoFile(ctx context.Context, filePath string, progress *ScanProgress) {
	progress.mu.Lock()
	progress.CurrentFile = filePath
	progress.mu.Unlock()

	logger.Log.Debug().
		Str("file", filePath).
		Msg("Processing video file")

	probe, err := s.prober(ctx, filePath)
	if err != nil {
		s.recordFileError(progress, filePath, fmt.Errorf("probe failed: %w", err))
		return
	}

	parseResult := ParseFilename(filePath)

	media := models.NewMedia(filePath, parseResult.Title, probe.DurationMs)
	media.ShowName = parseResult.ShowName
	media.Season = parseResult.Season
	media.Episode = parseResult.Episode
	if probe.FileSize > 0 {
		size := probe.FileSize
		media.FileSize = &size
	}

	if err := s.repos.Media.UpsertByPath(ctx, media); err != nil {
		s.recordFileError(progress, filePath, fmt.Errorf("database operation failed: %w", err))
		return
	}

	progress.mu.Lock()
	progress.SuccessCount++
	progress.ProcessedFiles++
	progress.mu.Unlock()

	logger.Log.Debug().
		Str("file", filePath).
		Str("title", media.Title).
		Int64("duration_ms", media.DurationMs).
		Msg("Successfully processed video file")
}

// recordFileError logs and records an error for a specific file
func (s *Scanner) recordFileError(progress *ScanProgress, filePath string, err error) {
	errMsg := fmt.Sprintf("%s: %v", filePath, err)
	logger.Log.Warn().
		Str("file", filePath).
		Err(err).
		Msg("Failed to process video file")

	progress.mu.Lock()
	progress.FailedCount++
	progress.ProcessedFiles++
	progress.Errors = append(progress.Errors, errMsg)
	progress.mu.Unlock()
}

// finalizeScan completes the scan and updates final status
func (s *Scanner) finalizeScan(progress *ScanProgress, status ScanStatus) {
	endTime := time.Now().UTC()

	progress.mu.Lock()
	progress.Status = status
	progress.EndTime = &endTime
	progress.CurrentFile = ""
	progress.mu.Unlock()

	logger.Log.Info().
		Str("scan_id", progress.ScanID).
		Str("status", string(status)).
		Int("total_files", progress.TotalFiles).
		Int("success_count", progress.SuccessCount).
		Int("failed_count", progress.FailedCount).
		Int("error_count", len(progress.Errors)).
		Dur("duration", endTime.Sub(progress.StartTime)).
		Msg("Library scan completed")
}

// isVideoFile checks if a file has a supported video extension
func (s *Scanner) isVideoFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, supported := range s.formats {
		if ext == supported {
			return true
		}
	}
	return false
}

// normalizeFormats lowercases extensions and ensures the leading dot
func normalizeFormats(formats []string) []string {
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if !strings.HasPrefix(f, ".") {
			f = "." + f
		}
		out = append(out, f)
	}
	return out
}

// Stop gracefully stops the scanner's background cleanup goroutine
func (s *Scanner) Stop() {
	close(s.stopCleanup)
	<-s.cleanupDone
	logger.Log.Debug().Msg("Scanner cleanup goroutine stopped")
}

// runCleanupLoop runs periodic cleanup of old completed scans
func (s *Scanner) runCleanupLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.CleanupOldScans(scanRetentionPeriod)
		}
	}
}

// CleanupOldScans removes completed, cancelled, or failed scans older than
// the specified duration
func (s *Scanner) CleanupOldScans(olderThan time.Duration) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0

	s.mu.Lock()
	defer s.mu.Unlock()

	for scanID, progress := range s.activeScans {
		progress.mu.RLock()
		status := progress.Status
		endTime := progress.EndTime
		progress.mu.RUnlock()

		if status == ScanStatusRunning || endTime == nil {
			continue
		}

		if endTime.Before(cutoff) {
			delete(s.activeScans, scanID)
			removed++
		}
	}

	if removed > 0 {
		logger.Log.Debug().
			Int("removed_count", removed).
			Int("remaining_count", len(s.activeScans)).
			Msg("Cleaned up old scans")
	}
}
