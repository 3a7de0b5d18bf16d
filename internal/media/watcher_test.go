package media

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rescanRecorder collects rescan invocations across goroutines
type rescanRecorder struct {
	mu    sync.Mutex
	roots []string
}

func (r *rescanRecorder) record(root string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots = append(r.roots, root)
}

func (r *rescanRecorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.roots...)
}

// waitForRescans polls until at least n rescans fired or the deadline passes
func (r *rescanRecorder) waitFor(t *testing.T, n int, timeout time.Duration) []string {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if calls := r.calls(); len(calls) >= n {
			return calls
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected at least %d rescans, got %d", n, len(r.calls()))
	return nil
}

func setupTestWatcher(t *testing.T, roots []string) (*rescanRecorder, Watcher) {
	t.Helper()

	recorder := &rescanRecorder{}
	w, err := NewWatcher(roots, []string{"mp4", "mkv"}, recorder.record)
	require.NoError(t, err)

	// Short quiet period keeps the test fast
	w.(*libraryWatcher).quietPeriod = 100 * time.Millisecond

	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })

	return recorder, w
}

func TestWatcherValidation(t *testing.T) {
	_, err := NewWatcher(nil, nil, func(string) {})
	assert.Error(t, err)

	_, err = NewWatcher([]string{t.TempDir()}, nil, nil)
	assert.Error(t, err)
}

func TestWatcherTriggersRescanOnNewVideoFile(t *testing.T) {
	root := t.TempDir()
	recorder, _ := setupTestWatcher(t, []string{root})

	require.NoError(t, os.WriteFile(filepath.Join(root, "new_show.s01e01.mp4"), []byte("video"), 0o644))

	calls := recorder.waitFor(t, 1, 5*time.Second)
	assert.Equal(t, root, calls[0])
}

func TestWatcherIgnoresNonVideoFiles(t *testing.T) {
	root := t.TempDir()
	recorder, _ := setupTestWatcher(t, []string{root})

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("text"), 0o644))

	time.Sleep(1 * time.Second)
	assert.Empty(t, recorder.calls())
}

func TestWatcherDebouncesBurstIntoSingleRescan(t *testing.T) {
	root := t.TempDir()
	recorder, _ := setupTestWatcher(t, []string{root})

	// A batch copy produces many events in quick succession
	for i := 0; i < 5; i++ {
		name := filepath.Join(root, "ep"+string(rune('a'+i))+".s01e01.mkv")
		require.NoError(t, os.WriteFile(name, []byte("video"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	recorder.waitFor(t, 1, 5*time.Second)

	// Give the debounce loop time to fire again if it were going to
	time.Sleep(1 * time.Second)
	assert.Len(t, recorder.calls(), 1)
}

func TestWatcherMapsEventToOwningRoot(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	recorder, _ := setupTestWatcher(t, []string{rootA, rootB})

	require.NoError(t, os.WriteFile(filepath.Join(rootB, "film.mp4"), []byte("video"), 0o644))

	calls := recorder.waitFor(t, 1, 5*time.Second)
	assert.Equal(t, rootB, calls[0])
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	_, w := setupTestWatcher(t, []string{root})

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
