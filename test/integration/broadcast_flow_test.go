//go:build integration
// +build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carousel-tv/carousel/internal/api"
	"github.com/carousel-tv/carousel/internal/broadcast"
	"github.com/carousel-tv/carousel/internal/guide"
	"github.com/carousel-tv/carousel/internal/media"
	"github.com/carousel-tv/carousel/internal/models"
)

func seedLibrary(t *testing.T, stack *testStack, count int) []*models.Media {
	t.Helper()

	items := make([]*models.Media, count)
	for i := 0; i < count; i++ {
		title := fmt.Sprintf("Episode %02d", i+1)
		path := fmt.Sprintf("/library/show/episode-%02d.mp4", i+1)
		items[i] = createTestMediaInDB(t, stack.Repos, path, title, int64(20+i)*60*1000)
	}
	return items
}

// TestBroadcastFlow walks the full path from catalog to live playback: seed
// media, build a channel, read its guide, tune, and verify the guide and the
// live session agree on what is airing.
func TestBroadcastFlow(t *testing.T) {
	stack := setupStack(t)
	items := seedLibrary(t, stack, 4)

	channelID := createChannelWithLineup(t, stack, api.CreateChannelRequest{
		Name:   "Prime",
		Number: 1,
	}, items)

	// The guide knows what is on right now
	w := doJSON(t, stack.Router, http.MethodGet, "/api/channels/"+channelID+"/now", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var nowNext guide.NowNext
	decode(t, w, &nowNext)
	require.NotEmpty(t, nowNext.Now.Item.ID)
	assert.Equal(t, nowNext.Now.EndMs, nowNext.Next.StartMs)

	// Tuning derives the same schedule the guide shows
	w = doJSON(t, stack.Router, http.MethodPost, "/api/tuner/tune", api.TuneRequest{ChannelID: channelID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var status broadcast.Status
	decode(t, w, &status)
	require.True(t, status.Tuned)
	require.NotNil(t, status.Current)

	assert.Equal(t, nowNext.Now.Item.ID, status.Current.Item.ID)
	assert.Equal(t, nowNext.Now.StartMs, status.Current.StartMs)
	assert.Equal(t, nowNext.Now.EndMs, status.Current.EndMs)
}

// TestGuideWindowMatchesLineup verifies a derived window only contains lineup
// items and tiles the requested window without gaps
func TestGuideWindowMatchesLineup(t *testing.T) {
	stack := setupStack(t)
	items := seedLibrary(t, stack, 3)

	channelID := createChannelWithLineup(t, stack, api.CreateChannelRequest{
		Name:   "Loop",
		Number: 2,
	}, items)

	known := make(map[string]bool, len(items))
	for _, m := range items {
		known[m.ID.String()] = true
	}

	from := time.Now().UnixMilli()
	to := from + (4 * time.Hour).Milliseconds()
	w := doJSON(t, stack.Router, http.MethodGet,
		fmt.Sprintf("/api/channels/%s/guide?from=%d&to=%d", channelID, from, to), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp api.ChannelGuideResponse
	decode(t, w, &resp)
	require.NotEmpty(t, resp.Programs)

	assert.LessOrEqual(t, resp.Programs[0].StartMs, from)
	for i, prog := range resp.Programs {
		assert.True(t, known[prog.Item.ID], "program %d is not a lineup item", i)
		if i > 0 {
			assert.Equal(t, resp.Programs[i-1].EndMs, prog.StartMs, "gap at index %d", i)
		}
	}
	assert.GreaterOrEqual(t, resp.Programs[len(resp.Programs)-1].EndMs, to)
}

// TestGuideIsDeterministic verifies repeated derivations of the same window
// return identical listings, shuffle mode included
func TestGuideIsDeterministic(t *testing.T) {
	stack := setupStack(t)
	items := seedLibrary(t, stack, 6)

	channelID := createChannelWithLineup(t, stack, api.CreateChannelRequest{
		Name:        "Shuffled",
		Number:      3,
		Mode:        "shuffle",
		ShuffleSeed: 99,
		PhaseSeed:   7,
	}, items)

	from := time.Now().UnixMilli()
	to := from + (8 * time.Hour).Milliseconds()
	path := fmt.Sprintf("/api/channels/%s/guide?from=%d&to=%d", channelID, from, to)

	w := doJSON(t, stack.Router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var first api.ChannelGuideResponse
	decode(t, w, &first)

	w = doJSON(t, stack.Router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var second api.ChannelGuideResponse
	decode(t, w, &second)

	require.Equal(t, len(first.Programs), len(second.Programs))
	for i := range first.Programs {
		assert.Equal(t, first.Programs[i].Item.ID, second.Programs[i].Item.ID)
		assert.Equal(t, first.Programs[i].StartMs, second.Programs[i].StartMs)
	}
}

// TestLineupChangeReflectsInGuide verifies removing a lineup entry changes
// the derived schedule
func TestLineupChangeReflectsInGuide(t *testing.T) {
	stack := setupStack(t)
	items := seedLibrary(t, stack, 2)

	channelID := createChannelWithLineup(t, stack, api.CreateChannelRequest{
		Name:   "Mutable",
		Number: 4,
	}, items)

	w := doJSON(t, stack.Router, http.MethodGet, "/api/channels/"+channelID+"/lineup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var lineup api.LineupResponse
	decode(t, w, &lineup)
	require.Len(t, lineup.Entries, 2)

	// Drop the first entry; the remaining item now fills the whole loop
	w = doJSON(t, stack.Router, http.MethodDelete, "/api/channels/"+channelID+"/lineup/"+lineup.Entries[0].ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, stack.Router, http.MethodGet, "/api/channels/"+channelID+"/now", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var nowNext guide.NowNext
	decode(t, w, &nowNext)

	remaining := lineup.Entries[1].MediaID
	assert.Equal(t, remaining, nowNext.Now.Item.ID)
	assert.Equal(t, remaining, nowNext.Next.Item.ID)
}

// TestScanToBroadcast drives the scanner through the API and airs what it
// found
func TestScanToBroadcast(t *testing.T) {
	stack := setupStack(t)

	require.NoError(t, stack.FS.MkdirAll("/incoming", 0o755))
	for _, name := range []string{"Show - S01E01.mp4", "Show - S01E02.mp4"} {
		require.NoError(t, afero.WriteFile(stack.FS, "/incoming/"+name, []byte("video"), 0o644))
	}

	w := doJSON(t, stack.Router, http.MethodPost, "/api/media/scan", api.ScanRequest{Path: "/incoming"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var scan api.ScanResponse
	decode(t, w, &scan)

	// Poll until the scan settles
	deadline := time.Now().Add(5 * time.Second)
	var progress struct {
		Status       media.ScanStatus `json:"status"`
		SuccessCount int              `json:"success_count"`
	}
	for {
		w = doJSON(t, stack.Router, http.MethodGet, "/api/media/scan/"+scan.ScanID+"/status", nil)
		require.Equal(t, http.StatusOK, w.Code)
		decode(t, w, &progress)
		if progress.Status != media.ScanStatusRunning {
			break
		}
		require.True(t, time.Now().Before(deadline), "scan did not finish in time")
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, media.ScanStatusCompleted, progress.Status)
	require.Equal(t, 2, progress.SuccessCount)

	w = doJSON(t, stack.Router, http.MethodGet, "/api/media", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list api.MediaListResponse
	decode(t, w, &list)
	require.Len(t, list.Items, 2)

	channelID := createChannelWithLineup(t, stack, api.CreateChannelRequest{
		Name:   "Scanned",
		Number: 5,
	}, list.Items)

	w = doJSON(t, stack.Router, http.MethodPost, "/api/tuner/tune", api.TuneRequest{ChannelID: channelID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var status broadcast.Status
	decode(t, w, &status)
	assert.True(t, status.Tuned)
	require.NotNil(t, status.Current)
	assert.Contains(t, []string{list.Items[0].ID.String(), list.Items[1].ID.String()}, status.Current.Item.ID)
}

// TestFailureGuardOverAPI exercises failure reporting until the guard trips
func TestFailureGuardOverAPI(t *testing.T) {
	stack := setupStack(t)
	items := seedLibrary(t, stack, 3)

	channelID := createChannelWithLineup(t, stack, api.CreateChannelRequest{
		Name:   "Flaky",
		Number: 6,
	}, items)

	w := doJSON(t, stack.Router, http.MethodPost, "/api/tuner/tune", api.TuneRequest{ChannelID: channelID})
	require.Equal(t, http.StatusOK, w.Code)

	for i := 0; i < 2; i++ {
		w = doJSON(t, stack.Router, http.MethodPost, "/api/tuner/failure", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = doJSON(t, stack.Router, http.MethodPost, "/api/tuner/failure", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	// A successful playback report clears the guard and failure count
	w = doJSON(t, stack.Router, http.MethodPost, "/api/tuner/playing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status broadcast.Status
	decode(t, w, &status)
	assert.False(t, status.GuardTripped)
	assert.Equal(t, 0, status.Failures)
}
