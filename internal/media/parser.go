package media

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ParseResult contains extracted metadata from a filename
type ParseResult struct {
	ShowName    *string // Extracted show name (nil if not found)
	Season      *int    // Season number (nil if not found)
	Episode     *int    // Episode number (nil if not found)
	Title       string  // Generated display title
	RawFilename string  // Original filename for reference
}

// Filename patterns tried in order; each captures (show, season, episode)
var episodePatterns = []*regexp.Regexp{
	// "Show Name - S01E01" or "Show Name - S01E01 - Episode Title"
	regexp.MustCompile(`(?i)^(.+?)\s*-\s*[Ss](\d+)[Ee](\d+)`),
	// "Show.Name.S01E01", "Show Name S01E01", "Show_Name_S01E01"
	regexp.MustCompile(`(?i)^(.+?)[._ ][Ss](\d+)[Ee](\d+)`),
	// "Show.Name.1x01"
	regexp.MustCompile(`(?i)^(.+?)[._ ](\d+)x(\d+)`),
}

var (
	// Season from directory name: "Season 1", "Season 01", "S01"
	patternSeasonDir = regexp.MustCompile(`(?i)(?:season|s)[\s.]?(\d+)`)

	// Episode number from filename: "01 -", "E01", "Episode 01"
	patternEpisodeFile = regexp.MustCompile(`(?i)^(\d+)\s*-|^[Ee](\d+)|^episode[\s.]?(\d+)`)

	patternSpaces = regexp.MustCompile(`\s+`)
)

// ParseFilename extracts show name, season, and episode from a filename or
// path. It tries the common filename patterns first, then falls back to
// directory structure ("Show Name/Season 1/01 - Episode.mp4").
func ParseFilename(fullPath string) ParseResult {
	result := ParseResult{RawFilename: fullPath}

	dir := filepath.Dir(fullPath)
	filename := filepath.Base(fullPath)
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))

	for _, pattern := range episodePatterns {
		if matches := pattern.FindStringSubmatch(nameWithoutExt); matches != nil {
			showName := cleanShowName(matches[1])
			result.ShowName = &showName
			result.Season = parseInt(matches[2])
			result.Episode = parseInt(matches[3])
			result.Title = generateTitle(&result)
			return result
		}
	}

	if tryDirectoryPatterns(dir, nameWithoutExt, &result) {
		result.Title = generateTitle(&result)
		return result
	}

	// No pattern matched, use the cleaned filename as title
	result.Title = cleanShowName(nameWithoutExt)
	return result
}

// tryDirectoryPatterns extracts show/season from the directory structure and
// the episode number from the filename
func tryDirectoryPatterns(dirPath, filename string, result *ParseResult) bool {
	if dirPath == "." || dirPath == "/" || dirPath == "" {
		return false
	}

	parts := strings.Split(filepath.ToSlash(dirPath), "/")
	if len(parts) < 2 {
		return false
	}

	seasonDir := parts[len(parts)-1]
	matches := patternSeasonDir.FindStringSubmatch(seasonDir)
	if matches == nil {
		return false
	}
	result.Season = parseInt(matches[1])

	// Show name is the parent directory
	showName := cleanShowName(parts[len(parts)-2])
	result.ShowName = &showName

	episodeMatches := patternEpisodeFile.FindStringSubmatch(filename)
	if episodeMatches == nil {
		return false
	}
	// Episode number lands in whichever group matched
	for _, group := range episodeMatches[1:] {
		if group != "" {
			result.Episode = parseInt(group)
			break
		}
	}
	return true
}

// cleanShowName normalizes show names by replacing separators with spaces
func cleanShowName(name string) string {
	cleaned := strings.ReplaceAll(name, ".", " ")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	cleaned = strings.TrimSpace(cleaned)
	return patternSpaces.ReplaceAllString(cleaned, " ")
}

// parseInt safely converts a string to an int pointer
func parseInt(s string) *int {
	val, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &val
}

// generateTitle creates a display title from parsed information
func generateTitle(result *ParseResult) string {
	if result.ShowName != nil && result.Season != nil && result.Episode != nil {
		return fmt.Sprintf("%s - S%02dE%02d", strings.TrimSpace(*result.ShowName), *result.Season, *result.Episode)
	}
	if result.ShowName != nil {
		return *result.ShowName
	}
	name := filepath.Base(result.RawFilename)
	return cleanShowName(strings.TrimSuffix(name, filepath.Ext(name)))
}
