package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"time"

	"github.com/carousel-tv/carousel/internal/logger"
)

// Timeout for FFprobe execution
const ffprobeTimeout = 30 * time.Second

// Common errors
var (
	ErrFFprobeNotFound = errors.New("ffprobe not found in PATH")
	ErrFileNotFound    = errors.New("file not found or not readable")
	ErrInvalidFile     = errors.New("invalid or corrupted video file")
	ErrTimeout         = errors.New("ffprobe execution timed out")
)

// ProbeResult holds the metadata the catalog stores for a media file.
// Duration is in milliseconds, the scheduling engine's time base.
type ProbeResult struct {
	DurationMs int64
	FileSize   int64
}

// Prober extracts metadata from a media file. The scanner takes one so tests
// can avoid shelling out to ffprobe.
type Prober func(ctx context.Context, filePath string) (*ProbeResult, error)

// ffprobeFormat is the subset of ffprobe -show_format output we consume
type ffprobeFormat struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// parseProbeOutput extracts duration and size from ffprobe JSON output.
// Duration is rounded to whole milliseconds and must be positive.
func parseProbeOutput(output []byte) (*ProbeResult, error) {
	var parsed ffprobeFormat
	if err := json.Unmarshal(output, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	result := &ProbeResult{}

	if parsed.Format.Duration != "" {
		seconds, err := strconv.ParseFloat(parsed.Format.Duration, 64)
		if err == nil {
			result.DurationMs = int64(math.Round(seconds * 1000))
		}
	}
	if result.DurationMs <= 0 {
		return nil, fmt.Errorf("%w: could not determine video duration", ErrInvalidFile)
	}

	if parsed.Format.Size != "" {
		if size, err := strconv.ParseInt(parsed.Format.Size, 10, 64); err == nil {
			result.FileSize = size
		}
	}

	return result, nil
}

// CheckFFprobeInstalled checks if FFprobe is available in PATH
func CheckFFprobeInstalled() error {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return ErrFFprobeNotFound
	}
	return nil
}

// ProbeFile executes FFprobe on the given file and returns its duration and
// size. Duration is rounded to whole milliseconds.
func ProbeFile(ctx context.Context, filePath string) (*ProbeResult, error) {
	if err := CheckFFprobeInstalled(); err != nil {
		return nil, err
	}

	logger.Log.Debug().
		Str("file_path", filePath).
		Msg("Probing video file with FFprobe")

	ctx, cancel := context.WithTimeout(ctx, ffprobeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			logger.Log.Error().
				Str("file_path", filePath).
				Msg("FFprobe execution timed out")
			return nil, ErrTimeout
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			stderr := string(exitErr.Stderr)
			logger.Log.Error().
				Str("file_path", filePath).
				Str("stderr", stderr).
				Msg("FFprobe execution failed")
			return nil, fmt.Errorf("%w: %s", ErrInvalidFile, stderr)
		}

		logger.Log.Error().
			Err(err).
			Str("file_path", filePath).
			Msg("FFprobe command failed")
		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}

	result, err := parseProbeOutput(output)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("file_path", filePath).
			Msg("Failed to parse FFprobe output")
		return nil, err
	}

	logger.Log.Info().
		Str("file_path", filePath).
		Int64("duration_ms", result.DurationMs).
		Int64("file_size", result.FileSize).
		Msg("Successfully probed video file")

	return result, nil
}
