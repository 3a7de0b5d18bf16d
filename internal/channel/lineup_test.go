package channel

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carousel-tv/carousel/internal/db"
	"github.com/carousel-tv/carousel/internal/models"
)

// setupTestLineupService creates a lineup service with a test database
func setupTestLineupService(t *testing.T) (*LineupService, *db.Repositories, func()) {
	tmpFile := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(tmpFile)
	require.NoError(t, err)

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)

	migrationsPath := "file://../../migrations"
	err = db.RunMigrations(sqlDB, migrationsPath)
	require.NoError(t, err)

	repos := db.NewRepositories(database)
	service := NewLineupService(database, repos)

	cleanup := func() {
		_ = database.Close()
	}

	return service, repos, cleanup
}

// createTestChannel inserts a channel directly through the repository
func createTestChannel(t *testing.T, repos *db.Repositories, name string, number int) *models.Channel {
	t.Helper()
	channel := models.NewChannel(name, number, models.ModeSequential)
	require.NoError(t, repos.Channels.Create(context.Background(), channel))
	return channel
}

// createTestMedia inserts a media row directly through the repository
func createTestMedia(t *testing.T, repos *db.Repositories, path string, durationMs int64) *models.Media {
	t.Helper()
	media := models.NewMedia(path, filepath.Base(path), durationMs)
	require.NoError(t, repos.Media.Create(context.Background(), media))
	return media
}

func TestAddToLineup_Success(t *testing.T) {
	service, repos, cleanup := setupTestLineupService(t)
	defer cleanup()

	ctx := context.Background()
	channel := createTestChannel(t, repos, "Lineup Channel", 1)
	media := createTestMedia(t, repos, "/library/show_s01e01.mp4", 1_200_000)

	entry, err := service.AddToLineup(ctx, channel.ID, media.ID, 0)

	require.NoError(t, err)
	assert.Equal(t, channel.ID, entry.ChannelID)
	assert.Equal(t, media.ID, entry.MediaID)
	assert.Equal(t, 0, entry.Position)
}

func TestAddToLineup_InvalidPosition(t *testing.T) {
	service, repos, cleanup := setupTestLineupService(t)
	defer cleanup()

	channel := createTestChannel(t, repos, "Lineup Channel", 1)
	media := createTestMedia(t, repos, "/library/a.mp4", 1000)

	_, err := service.AddToLineup(context.Background(), channel.ID, media.ID, -1)

	require.Error(t, err)
	assert.True(t, IsInvalidPosition(err))
}

func TestAddToLineup_ChannelNotFound(t *testing.T) {
	service, repos, cleanup := setupTestLineupService(t)
	defer cleanup()

	media := createTestMedia(t, repos, "/library/a.mp4", 1000)

	_, err := service.AddToLineup(context.Background(), uuid.New(), media.ID, 0)

	require.Error(t, err)
	assert.True(t, IsChannelNotFound(err))
}

func TestAddToLineup_MediaNotFound(t *testing.T) {
	service, repos, cleanup := setupTestLineupService(t)
	defer cleanup()

	channel := createTestChannel(t, repos, "Lineup Channel", 1)

	_, err := service.AddToLineup(context.Background(), channel.ID, uuid.New(), 0)

	require.Error(t, err)
	assert.True(t, IsMediaNotFound(err))
}

func TestAddToLineup_ShiftsExistingPositions(t *testing.T) {
	service, repos, cleanup := setupTestLineupService(t)
	defer cleanup()

	ctx := context.Background()
	channel := createTestChannel(t, repos, "Lineup Channel", 1)
	first := createTestMedia(t, repos, "/library/a.mp4", 1000)
	second := createTestMedia(t, repos, "/library/b.mp4", 2000)

	_, err := service.AddToLineup(ctx, channel.ID, first.ID, 0)
	require.NoError(t, err)

	// Inserting at position 0 shifts the existing entry down
	_, err = service.AddToLineup(ctx, channel.ID, second.ID, 0)
	require.NoError(t, err)

	entries, err := service.GetLineup(ctx, channel.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].MediaID)
	assert.Equal(t, 0, entries[0].Position)
	assert.Equal(t, first.ID, entries[1].MediaID)
	assert.Equal(t, 1, entries[1].Position)
}

func TestBulkAddToLineup(t *testing.T) {
	service, repos, cleanup := setupTestLineupService(t)
	defer cleanup()

	ctx := context.Background()
	channel := createTestChannel(t, repos, "Lineup Channel", 1)

	items := make([]BulkAddItem, 5)
	for i := range items {
		media := createTestMedia(t, repos, filepath.Join("/library", string(rune('a'+i))+".mp4"), int64(1000*(i+1)))
		items[i] = BulkAddItem{MediaID: media.ID, Position: i}
	}

	entries, err := service.BulkAddToLineup(ctx, channel.ID, items)

	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, entry := range entries {
		assert.Equal(t, i, entry.Position)
	}
}

func TestBulkAddToLineup_MissingMedia(t *testing.T) {
	service, repos, cleanup := setupTestLineupService(t)
	defer cleanup()

	channel := createTestChannel(t, repos, "Lineup Channel", 1)
	media := createTestMedia(t, repos, "/library/a.mp4", 1000)

	_, err := service.BulkAddToLineup(context.Background(), channel.ID, []BulkAddItem{
		{MediaID: media.ID, Position: 0},
		{MediaID: uuid.New(), Position: 1},
	})

	require.Error(t, err)
	assert.True(t, IsMediaNotFound(err))
}

func TestRemoveFromLineup_ReordersRemaining(t *testing.T) {
	service, repos, cleanup := setupTestLineupService(t)
	defer cleanup()

	ctx := context.Background()
	channel := createTestChannel(t, repos, "Lineup Channel", 1)

	var entries []*models.LineupEntry
	for i := 0; i < 3; i++ {
		media := createTestMedia(t, repos, filepath.Join("/library", string(rune('a'+i))+".mp4"), 1000)
		entry, err := service.AddToLineup(ctx, channel.ID, media.ID, i)
		require.NoError(t, err)
		entries = append(entries, entry)
	}

	// Remove the middle entry; the last one shifts down
	require.NoError(t, service.RemoveFromLineup(ctx, entries[1].ID))

	remaining, err := service.GetLineup(ctx, channel.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, 0, remaining[0].Position)
	assert.Equal(t, 1, remaining[1].Position)
	assert.Equal(t, entries[2].MediaID, remaining[1].MediaID)
}

func TestRemoveFromLineup_NotFound(t *testing.T) {
	service, _, cleanup := setupTestLineupService(t)
	defer cleanup()

	err := service.RemoveFromLineup(context.Background(), uuid.New())

	require.Error(t, err)
	assert.True(t, IsLineupEntryNotFound(err))
}

func TestReorderLineup(t *testing.T) {
	service, repos, cleanup := setupTestLineupService(t)
	defer cleanup()

	ctx := context.Background()
	channel := createTestChannel(t, repos, "Lineup Channel", 1)

	var entries []*models.LineupEntry
	for i := 0; i < 3; i++ {
		media := createTestMedia(t, repos, filepath.Join("/library", string(rune('a'+i))+".mp4"), 1000)
		entry, err := service.AddToLineup(ctx, channel.ID, media.ID, i)
		require.NoError(t, err)
		entries = append(entries, entry)
	}

	// Reverse the order
	err := service.ReorderLineup(ctx, channel.ID, []db.ReorderItem{
		{ID: entries[0].ID, Position: 2},
		{ID: entries[1].ID, Position: 1},
		{ID: entries[2].ID, Position: 0},
	})
	require.NoError(t, err)

	reordered, err := service.GetLineup(ctx, channel.ID)
	require.NoError(t, err)
	require.Len(t, reordered, 3)
	assert.Equal(t, entries[2].ID, reordered[0].ID)
	assert.Equal(t, entries[0].ID, reordered[2].ID)
}

func TestReorderLineup_WrongChannel(t *testing.T) {
	service, repos, cleanup := setupTestLineupService(t)
	defer cleanup()

	ctx := context.Background()
	first := createTestChannel(t, repos, "First", 1)
	second := createTestChannel(t, repos, "Second", 2)
	media := createTestMedia(t, repos, "/library/a.mp4", 1000)

	entry, err := service.AddToLineup(ctx, first.ID, media.ID, 0)
	require.NoError(t, err)

	err = service.ReorderLineup(ctx, second.ID, []db.ReorderItem{{ID: entry.ID, Position: 0}})
	require.Error(t, err)
}

func TestGetLineup_ChannelNotFound(t *testing.T) {
	service, _, cleanup := setupTestLineupService(t)
	defer cleanup()

	_, err := service.GetLineup(context.Background(), uuid.New())

	require.Error(t, err)
	assert.True(t, IsChannelNotFound(err))
}

func TestCalculateDuration(t *testing.T) {
	service, _, cleanup := setupTestLineupService(t)
	defer cleanup()

	entries := []*models.LineupEntry{
		{Media: &models.Media{DurationMs: 10_000}},
		{Media: &models.Media{DurationMs: 5_000}},
		{Media: nil},
		{Media: &models.Media{DurationMs: 15_000}},
	}

	assert.Equal(t, int64(30_000), service.CalculateDuration(entries))
	assert.Equal(t, int64(0), service.CalculateDuration(nil))
}
