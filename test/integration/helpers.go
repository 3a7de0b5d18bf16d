//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/carousel-tv/carousel/internal/api"
	"github.com/carousel-tv/carousel/internal/broadcast"
	"github.com/carousel-tv/carousel/internal/channel"
	"github.com/carousel-tv/carousel/internal/db"
	"github.com/carousel-tv/carousel/internal/guide"
	"github.com/carousel-tv/carousel/internal/media"
	"github.com/carousel-tv/carousel/internal/models"
)

// testStack is the fully wired service graph behind a test router, matching
// the production wiring minus the HTTP listener
type testStack struct {
	Router   *gin.Engine
	DB       *db.DB
	Repos    *db.Repositories
	FS       afero.Fs
	Tuner    *broadcast.Tuner
	Session  *broadcast.Session
	Guide    *guide.Service
	Resolver *channel.Resolver
}

// setupTestDB creates a migrated temporary test database
func setupTestDB(t *testing.T) (*db.DB, *db.Repositories) {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "Failed to create test database")

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err, "Failed to get SQL DB")

	// Resolve the migrations directory relative to this file so tests work
	// regardless of working directory
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")

	testDir := filepath.Dir(filename)
	rootDir := filepath.Dir(filepath.Dir(testDir))
	migrationsPath := "file://" + filepath.Join(rootDir, "migrations")

	require.NoError(t, db.RunMigrations(sqlDB, migrationsPath), "Failed to run migrations")

	t.Cleanup(func() {
		_ = database.Close()
	})

	return database, db.NewRepositories(database)
}

// setupStack wires the whole service graph the way the server does and
// returns it behind a test router
func setupStack(t *testing.T) *testStack {
	t.Helper()

	database, repos := setupTestDB(t)

	prober := func(_ context.Context, _ string) (*media.ProbeResult, error) {
		return &media.ProbeResult{DurationMs: 30 * 60 * 1000, FileSize: 4096}, nil
	}
	fs := afero.NewMemMapFs()
	scanner := media.NewScanner(repos, fs, prober, nil)
	t.Cleanup(scanner.Stop)

	channelService := channel.NewChannelService(repos)
	lineupService := channel.NewLineupService(database, repos)
	resolver := channel.NewResolver(repos)

	session := broadcast.NewSession(time.Minute)
	composer := broadcast.NewComposer(session)
	guard := broadcast.NewFailureGuard(30*time.Second, 3)
	tuner := broadcast.NewTuner(session, composer, guard, resolver)
	t.Cleanup(tuner.Detune)

	guideService := guide.NewService(resolver, 4)
	channelService.OnChange(guideService.Invalidate)
	lineupService.OnChange(guideService.Invalidate)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())

	apiGroup := router.Group("/api")
	api.SetupHealthRoutes(apiGroup, database)
	api.SetupMediaRoutes(apiGroup, scanner, repos, nil, "")
	api.SetupChannelRoutes(apiGroup, channelService, lineupService)
	api.SetupGuideRoutes(apiGroup, guideService, 6*time.Hour)
	api.SetupTunerRoutes(apiGroup, tuner)

	return &testStack{
		Router:   router,
		DB:       database,
		Repos:    repos,
		FS:       fs,
		Tuner:    tuner,
		Session:  session,
		Guide:    guideService,
		Resolver: resolver,
	}
}

// doJSON runs a request against the router, JSON-encoding body when non-nil
func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decode unmarshals a recorded JSON response body
func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// createTestMediaInDB inserts a media row directly through the repository
func createTestMediaInDB(t *testing.T, repos *db.Repositories, filePath, title string, durationMs int64) *models.Media {
	t.Helper()

	mediaItem := models.NewMedia(filePath, title, durationMs)
	require.NoError(t, repos.Media.Create(context.Background(), mediaItem))
	return mediaItem
}

// createChannelWithLineup creates a channel through the API and fills its
// lineup with the given media, returning the channel id
func createChannelWithLineup(t *testing.T, stack *testStack, req api.CreateChannelRequest, mediaItems []*models.Media) string {
	t.Helper()

	w := doJSON(t, stack.Router, http.MethodPost, "/api/channels", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created api.ChannelResponse
	decode(t, w, &created)

	if len(mediaItems) > 0 {
		items := make([]api.AddToLineupRequest, len(mediaItems))
		for i, m := range mediaItems {
			items[i] = api.AddToLineupRequest{MediaID: m.ID.String(), Position: i}
		}
		w = doJSON(t, stack.Router, http.MethodPost, "/api/channels/"+created.ID+"/lineup/bulk", api.BulkAddToLineupRequest{Items: items})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	return created.ID
}
