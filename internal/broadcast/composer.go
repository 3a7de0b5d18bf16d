package broadcast

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/schedule"
)

// rolloverGrace is how long after the midnight-spanning program's scheduled
// end the deferred rollover fires, leaving room for clock jitter.
const rolloverGrace = 500 * time.Millisecond

// Plan is a channel's static scheduling configuration. The effective
// per-day schedule.Config is derived from it by DeriveDay.
type Plan struct {
	ChannelID string
	Name      string
	BaseSeed  uint32
	PhaseSeed uint32
	Mode      schedule.PlaybackMode
	Items     []schedule.Item
	Location  *time.Location
}

func (p Plan) location() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.Local
}

// DayKeyAt encodes the local calendar day of the given instant as
// year*10000 + month*100 + day. The key is both the rollover-detection token
// and the daily shuffle-seed salt.
func DayKeyAt(ms int64, loc *time.Location) int64 {
	y, m, d := time.UnixMilli(ms).In(loc).Date()
	return int64(y)*10000 + int64(m)*100 + int64(d)
}

// localMidnightMs returns the local midnight preceding the given instant
func localMidnightMs(ms int64, loc *time.Location) int64 {
	y, m, d := time.UnixMilli(ms).In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).UnixMilli()
}

// DeriveDay derives the effective schedule config for the calendar day
// containing refMs. Pure function of (plan, day): re-deriving for the same
// day always yields an identical config, which is what lets guide precompute
// and live playback agree without sharing state.
//
// The anchor is local midnight shifted back by a per-channel constant phase
// offset, so channels with identical content do not all transition items at
// the same instant. In shuffle mode the seed is salted with the day key so
// every day gets a distinct but reproducible order.
func DeriveDay(plan Plan, refMs int64) (schedule.Config, int64) {
	loc := plan.location()
	dayKey := DayKeyAt(refMs, loc)
	dayStart := localMidnightMs(refMs, loc)

	var loopDur int64
	for _, item := range plan.Items {
		loopDur += item.DurationMs
	}

	var phaseOffset int64
	if plan.PhaseSeed != 0 {
		// RandomInRange returns 0 for a non-positive loop duration, so a
		// degenerate content list cannot produce a bad anchor
		phaseOffset = schedule.RandomInRange(plan.PhaseSeed, loopDur)
	}

	seed := plan.BaseSeed
	if plan.Mode == schedule.ModeShuffle {
		seed = plan.BaseSeed ^ uint32(dayKey)
	}

	return schedule.Config{
		ChannelID: plan.ChannelID,
		AnchorMs:  dayStart - phaseOffset,
		Items:     plan.Items,
		Mode:      plan.Mode,
		Seed:      seed,
	}, dayKey
}

// Composer re-derives a channel's schedule once per local calendar day and
// applies it at the correct moment: immediately when the day key changes, or
// deferred until the current program ends when that program spans midnight.
// It is driven by the session's scheduleSync notifications.
type Composer struct {
	session *Session

	mu            sync.Mutex
	plan          Plan
	hasPlan       bool
	activeDayKey  int64
	pendingDayKey int64
	rolloverTimer *time.Timer
	nowFn         func() int64
	onRollover    []func(dayKey int64)

	// gen invalidates any armed deferred timer when the plan changes or the
	// composer shuts down; a stale timer firing discards itself silently
	gen *atomic.Int64
}

// NewComposer creates a composer driven by the given session's sync ticks
func NewComposer(session *Session) *Composer {
	c := &Composer{
		session: session,
		gen:     atomic.NewInt64(0),
		nowFn:   func() int64 { return time.Now().UnixMilli() },
	}
	session.OnScheduleSync(c.evaluate)
	return c
}

// SetClock overrides the wall-clock source for tests
func (c *Composer) SetClock(nowFn func() int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowFn = nowFn
}

// OnRollover registers an observer invoked after a day rollover has been
// applied, carrying the new day key. Guide precompute uses this to refresh
// prebuilt windows.
func (c *Composer) OnRollover(fn func(dayKey int64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRollover = append(c.onRollover, fn)
}

// SetPlan installs a new channel plan and resets rollover tracking. Any
// pending deferred rollover for the previous plan is cancelled.
func (c *Composer) SetPlan(plan Plan) {
	c.gen.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	c.plan = plan
	c.hasPlan = true
	c.activeDayKey = 0
	c.pendingDayKey = 0
}

// Cancel drops the current plan and cancels any pending deferred rollover.
// Safe to call on channel switch, content change, or shutdown.
func (c *Composer) Cancel() {
	c.gen.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	c.hasPlan = false
	c.activeDayKey = 0
	c.pendingDayKey = 0
}

// ActiveDayKey returns the day key the currently loaded schedule was derived
// for, or 0 before the first tick
func (c *Composer) ActiveDayKey() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeDayKey
}

// evaluate runs on every scheduleSync tick and on deferred timer fire. It
// adopts the day key on first run, no-ops while the day is unchanged, and
// otherwise applies or defers the rollover.
func (c *Composer) evaluate() {
	c.mu.Lock()
	if !c.hasPlan {
		c.mu.Unlock()
		return
	}

	plan := c.plan
	loc := plan.location()
	now := c.nowFn()
	dayKey := DayKeyAt(now, loc)

	if c.activeDayKey == 0 {
		// First tick after a load: the loaded schedule was derived for this
		// day already, adopt without reloading
		c.activeDayKey = dayKey
		c.mu.Unlock()
		return
	}
	if dayKey == c.activeDayKey {
		c.mu.Unlock()
		return
	}

	gen := c.gen.Load()
	c.mu.Unlock()

	midnight := localMidnightMs(now, loc)
	prog, err := c.session.Resolve()
	if err == nil && prog.StartMs < midnight && prog.EndMs > midnight {
		c.deferRollover(dayKey, gen, prog.EndMs-now)
		return
	}

	c.applyRollover(gen)
}

// deferRollover arms a one-shot timer shortly after the midnight-spanning
// program's scheduled end. Re-detections of the same pending day are no-ops.
func (c *Composer) deferRollover(dayKey int64, gen int64, untilEndMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pendingDayKey == dayKey {
		return
	}
	c.cancelTimerLocked()
	c.pendingDayKey = dayKey

	delay := time.Duration(untilEndMs)*time.Millisecond + rolloverGrace
	if delay < rolloverGrace {
		delay = rolloverGrace
	}

	c.rolloverTimer = time.AfterFunc(delay, func() {
		if c.gen.Load() != gen {
			return
		}
		c.mu.Lock()
		c.pendingDayKey = 0
		c.mu.Unlock()
		// Re-check: a skip or failure may have changed the current program
		// while the timer was armed
		c.evaluate()
	})

	logger.Log.Info().
		Str("channel_id", c.plan.ChannelID).
		Int64("pending_day_key", dayKey).
		Dur("delay", delay).
		Msg("Program spans midnight, rollover deferred until it ends")
}

// applyRollover derives the new day's config and reloads the session. On
// load failure the active day key is left unchanged so the next sync tick
// retries instead of crashing the session.
func (c *Composer) applyRollover(gen int64) {
	if c.gen.Load() != gen {
		return
	}

	c.mu.Lock()
	if !c.hasPlan {
		c.mu.Unlock()
		return
	}
	plan := c.plan
	now := c.nowFn()
	cfg, dayKey := DeriveDay(plan, now)

	prev := c.activeDayKey
	// Mark the target day active before reloading so the Sync below does not
	// recurse back into another rollover
	c.activeDayKey = dayKey
	c.pendingDayKey = 0
	c.cancelTimerLocked()
	callbacks := make([]func(int64), len(c.onRollover))
	copy(callbacks, c.onRollover)
	c.mu.Unlock()

	if err := c.session.Load(cfg); err != nil {
		c.mu.Lock()
		c.activeDayKey = prev
		c.mu.Unlock()

		logger.Log.Warn().
			Err(err).
			Str("channel_id", plan.ChannelID).
			Int64("day_key", dayKey).
			Msg("Day rollover load failed, will retry on next sync")
		return
	}

	if _, err := c.session.Sync(); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", plan.ChannelID).
			Msg("Sync after day rollover failed")
	}

	logger.Log.Info().
		Str("channel_id", plan.ChannelID).
		Int64("day_key", dayKey).
		Msg("Day rollover applied")

	for _, fn := range callbacks {
		fn(dayKey)
	}
}

// cancelTimerLocked stops any armed deferred timer (must hold lock)
func (c *Composer) cancelTimerLocked() {
	if c.rolloverTimer != nil {
		c.rolloverTimer.Stop()
		c.rolloverTimer = nil
	}
}
