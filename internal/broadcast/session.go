// Package broadcast runs the live side of the scheduling engine: a per-tuner
// channel session with a periodic sync timer, the daily schedule composer
// that rolls the schedule over at calendar-day boundaries, and the failure
// guard that stops runaway skip loops.
package broadcast

import (
	"sync"
	"time"

	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/schedule"
)

const defaultSyncInterval = 2 * time.Second

// Session is a stateful single-channel scheduler session. It holds the
// currently loaded index and anchor, re-resolves "now" on a recurring timer,
// and raises programStart notifications when the airing item changes.
//
// All engine state is replaced atomically under the session mutex, so a
// loadChannel racing a pending timer tick always resolves against either the
// old index or the new one, never a torn mix. Observers are dispatched
// outside the mutex and may re-enter the session.
type Session struct {
	syncInterval time.Duration

	mu         sync.Mutex
	channelID  string
	idx        *schedule.Index
	anchorMs   int64
	current    *schedule.Program
	lastItemID string
	hasLast    bool
	paused     bool
	nowFn      func() int64

	onProgramStart []func(schedule.Program)
	onScheduleSync []func()

	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}
	started  bool
	stopped  bool
}

// NewSession creates a new unloaded session with the given sync cadence.
// A non-positive interval falls back to the default.
func NewSession(syncInterval time.Duration) *Session {
	if syncInterval <= 0 {
		syncInterval = defaultSyncInterval
	}
	return &Session{
		syncInterval: syncInterval,
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
		nowFn:        func() int64 { return time.Now().UnixMilli() },
	}
}

// SetClock overrides the wall-clock source. Tests use this to drive virtual
// time instead of waiting on real timers.
func (s *Session) SetClock(nowFn func() int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = nowFn
}

// OnProgramStart registers an observer invoked whenever the airing item
// changes. Register before Start.
func (s *Session) OnProgramStart(fn func(schedule.Program)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onProgramStart = append(s.onProgramStart, fn)
}

// OnScheduleSync registers an observer invoked on every sync tick regardless
// of whether the item changed. Register before Start.
func (s *Session) OnScheduleSync(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onScheduleSync = append(s.onScheduleSync, fn)
}

// Load builds a new schedule index from the config and installs it, replacing
// any prior channel atomically. The last-notified item marker is cleared so
// the next sync always raises programStart, even if the same item happens to
// be airing. Structural errors leave the previous state untouched.
func (s *Session) Load(cfg schedule.Config) error {
	idx, err := schedule.BuildIndex(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.channelID = cfg.ChannelID
	s.idx = idx
	s.anchorMs = cfg.AnchorMs
	s.current = nil
	s.lastItemID = ""
	s.hasLast = false
	s.mu.Unlock()

	logger.Log.Info().
		Str("channel_id", cfg.ChannelID).
		Int("item_count", idx.Len()).
		Int64("loop_duration_ms", idx.LoopDuration()).
		Int64("anchor_ms", cfg.AnchorMs).
		Str("mode", string(cfg.Mode)).
		Msg("Channel loaded into session")

	return nil
}

// Unload clears the loaded channel. The sync timer keeps running and becomes
// a no-op until the next Load.
func (s *Session) Unload() {
	s.mu.Lock()
	channelID := s.channelID
	s.channelID = ""
	s.idx = nil
	s.anchorMs = 0
	s.current = nil
	s.lastItemID = ""
	s.hasLast = false
	s.mu.Unlock()

	if channelID != "" {
		logger.Log.Info().
			Str("channel_id", channelID).
			Msg("Channel unloaded from session")
	}
}

// Loaded reports whether a channel is currently loaded
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx != nil
}

// ChannelID returns the id of the loaded channel, or empty when unloaded
func (s *Session) ChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID
}

// Sync resolves the program airing right now. If the item differs from the
// previously notified one (by identity, not recomputed timing) a programStart
// notification is raised; a scheduleSync notification is raised on every call.
func (s *Session) Sync() (schedule.Program, error) {
	s.mu.Lock()
	if s.idx == nil {
		s.mu.Unlock()
		return schedule.Program{}, ErrNotLoaded
	}

	prog := schedule.Locate(s.idx, s.anchorMs, s.nowFn())
	changed := !s.hasLast || prog.Item.ID != s.lastItemID
	s.current = &prog
	s.lastItemID = prog.Item.ID
	s.hasLast = true
	channelID := s.channelID
	starts, syncs := s.observersLocked()
	s.mu.Unlock()

	if changed {
		logger.Log.Debug().
			Str("channel_id", channelID).
			Str("item_id", prog.Item.ID).
			Str("title", prog.Item.Title).
			Int64("elapsed_ms", prog.ElapsedMs).
			Int64("loop", prog.Loop).
			Msg("Program change detected")

		for _, fn := range starts {
			fn(prog)
		}
	}

	for _, fn := range syncs {
		fn()
	}

	return prog, nil
}

// Current returns the program airing now. It prefers the last-resolved state
// and falls back to a fresh resolution before the first sync; either way it
// raises no notifications.
func (s *Session) Current() (schedule.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx == nil {
		return schedule.Program{}, ErrNotLoaded
	}
	if s.current != nil {
		return *s.current, nil
	}
	return schedule.Locate(s.idx, s.anchorMs, s.nowFn()), nil
}

// Resolve resolves the program airing right now, bypassing the last-resolved
// state entirely and raising no notifications. The composer uses this when a
// deferred rollover timer fires, where the cached current program may predate
// the program's end.
func (s *Session) Resolve() (schedule.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx == nil {
		return schedule.Program{}, ErrNotLoaded
	}
	return schedule.Locate(s.idx, s.anchorMs, s.nowFn()), nil
}

// Next returns the program immediately following the current one in index
// order, independent of the sync timer.
func (s *Session) Next() (schedule.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx == nil {
		return schedule.Program{}, ErrNotLoaded
	}

	cur := s.current
	if cur == nil {
		prog := schedule.Locate(s.idx, s.anchorMs, s.nowFn())
		cur = &prog
	}
	return schedule.Locate(s.idx, s.anchorMs, cur.EndMs), nil
}

// SkipNext forces the following item in the loop to become current regardless
// of wall-clock time, wrapping past the end to position zero on the next loop.
func (s *Session) SkipNext() (schedule.Program, error) {
	return s.skip(1)
}

// SkipPrevious forces the preceding item in the loop to become current,
// wrapping before position zero to the last item of the previous loop.
func (s *Session) SkipPrevious() (schedule.Program, error) {
	return s.skip(-1)
}

// skip synthesizes a new anchor so that "now" falls exactly at the start of
// the item delta positions away, then notifies the new program. This is the
// deliberate escape from pure time-driven resolution used by manual seek and
// by the failure-skip path.
func (s *Session) skip(delta int) (schedule.Program, error) {
	s.mu.Lock()
	if s.idx == nil {
		s.mu.Unlock()
		return schedule.Program{}, ErrNotLoaded
	}

	now := s.nowFn()
	cur := schedule.Locate(s.idx, s.anchorMs, now)

	n := s.idx.Len()
	pos := cur.Position + delta
	loop := cur.Loop
	if pos >= n {
		pos = 0
		loop++
	}
	if pos < 0 {
		pos = n - 1
		loop--
	}

	s.anchorMs = now - (loop*s.idx.LoopDuration() + s.idx.StartOffset(pos))
	prog := schedule.Locate(s.idx, s.anchorMs, now)
	s.current = &prog
	s.lastItemID = prog.Item.ID
	s.hasLast = true
	channelID := s.channelID
	starts, _ := s.observersLocked()
	s.mu.Unlock()

	logger.Log.Info().
		Str("channel_id", channelID).
		Str("item_id", prog.Item.ID).
		Int("position", prog.Position).
		Int("delta", delta).
		Msg("Skipped to adjacent program")

	// Skips always notify, even when the target item id matches
	for _, fn := range starts {
		fn(prog)
	}

	return prog, nil
}

// Start launches the recurring sync goroutine. Start is one-shot; use
// Pause/Resume to gate ticks without losing loaded state.
func (s *Session) Start() {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ticker = time.NewTicker(s.syncInterval)
	s.mu.Unlock()

	go s.run()

	logger.Log.Info().
		Dur("sync_interval", s.syncInterval).
		Msg("Session sync timer started")
}

// Stop terminates the sync goroutine and waits for it to exit
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	close(s.stopChan)
	if started {
		<-s.done
		s.ticker.Stop()
	}

	logger.Log.Info().Msg("Session sync timer stopped")
}

// Pause suspends tick processing without unloading the channel. Used when
// the embedding application is backgrounded or the failure guard trips.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume re-enables tick processing. Callers should follow with an explicit
// Sync to reconcile drift accumulated while paused.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// Paused reports whether tick processing is suspended
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// run is the sync timer loop
func (s *Session) run() {
	defer close(s.done)

	for {
		select {
		case <-s.stopChan:
			return
		case <-s.ticker.C:
			if s.Paused() {
				continue
			}
			if _, err := s.Sync(); err != nil && !IsNotLoaded(err) {
				logger.Log.Error().
					Err(err).
					Msg("Session sync tick failed")
			}
		}
	}
}

// observersLocked snapshots the observer lists (must hold lock)
func (s *Session) observersLocked() ([]func(schedule.Program), []func()) {
	starts := make([]func(schedule.Program), len(s.onProgramStart))
	copy(starts, s.onProgramStart)
	syncs := make([]func(), len(s.onScheduleSync))
	copy(syncs, s.onScheduleSync)
	return starts, syncs
}
