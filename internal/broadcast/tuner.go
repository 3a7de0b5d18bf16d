package broadcast

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/schedule"
)

// PlanResolver resolves a channel id into its static scheduling plan.
// Implemented by the channel service; the tuner does not touch storage itself.
type PlanResolver interface {
	ResolvePlan(ctx context.Context, channelID string) (Plan, error)
}

// Tuner owns the single live session, its composer, and the failure guard,
// and serializes full channel-switch sequences. A switch arriving while one
// is in flight is rejected outright rather than queued, so two rapid switches
// can never leave the session loaded with mismatched channel state.
type Tuner struct {
	session  *Session
	composer *Composer
	guard    *FailureGuard
	resolver PlanResolver

	switching *atomic.Bool
	channelID *atomic.String
	nowFn     func() int64

	onGuardTripped []func()
}

// Status is a point-in-time snapshot of the tuner for the status API
type Status struct {
	ChannelID    string            `json:"channel_id,omitempty"`
	Tuned        bool              `json:"tuned"`
	Paused       bool              `json:"paused"`
	GuardTripped bool              `json:"guard_tripped"`
	Failures     int               `json:"failures"`
	Current      *schedule.Program `json:"current,omitempty"`
	Next         *schedule.Program `json:"next,omitempty"`
}

// NewTuner creates a tuner around an existing session, composer, and guard
func NewTuner(session *Session, composer *Composer, guard *FailureGuard, resolver PlanResolver) *Tuner {
	return &Tuner{
		session:   session,
		composer:  composer,
		guard:     guard,
		resolver:  resolver,
		switching: atomic.NewBool(false),
		channelID: atomic.NewString(""),
		nowFn:     func() int64 { return time.Now().UnixMilli() },
	}
}

// SetClock overrides the wall-clock source for tests
func (t *Tuner) SetClock(nowFn func() int64) {
	t.nowFn = nowFn
}

// OnGuardTripped registers an observer invoked when the failure guard trips.
// Register before the tuner is used.
func (t *Tuner) OnGuardTripped(fn func()) {
	t.onGuardTripped = append(t.onGuardTripped, fn)
}

// Tune switches the live session to the given channel: resolve the plan,
// derive today's schedule, load, and sync, as one serialized sequence.
// Returns ErrSwitchInProgress if another switch is in flight.
func (t *Tuner) Tune(ctx context.Context, channelID string) error {
	if !t.switching.CompareAndSwap(false, true) {
		logger.Log.Warn().
			Str("channel_id", channelID).
			Msg("Channel switch rejected, another switch in progress")
		return ErrSwitchInProgress
	}
	defer t.switching.Store(false)

	t.composer.Cancel()
	t.guard.Reset()

	plan, err := t.resolver.ResolvePlan(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to resolve channel %s: %w", channelID, err)
	}

	cfg, dayKey := DeriveDay(plan, t.nowFn())
	if err := t.session.Load(cfg); err != nil {
		return fmt.Errorf("failed to load channel %s: %w", channelID, err)
	}

	t.composer.SetPlan(plan)
	t.session.Resume()
	t.channelID.Store(channelID)

	if _, err := t.session.Sync(); err != nil {
		return fmt.Errorf("failed to sync after tune: %w", err)
	}

	logger.Log.Info().
		Str("channel_id", channelID).
		Str("name", plan.Name).
		Int64("day_key", dayKey).
		Msg("Tuned to channel")

	return nil
}

// Detune unloads the live channel and cancels any pending rollover
func (t *Tuner) Detune() {
	t.composer.Cancel()
	t.guard.Reset()
	t.session.Unload()
	t.channelID.Store("")
}

// SkipNext advances the live session to the next program
func (t *Tuner) SkipNext() (schedule.Program, error) {
	return t.session.SkipNext()
}

// SkipPrevious rewinds the live session to the previous program
func (t *Tuner) SkipPrevious() (schedule.Program, error) {
	return t.session.SkipPrevious()
}

// Pause suspends the session's sync timer (app backgrounded)
func (t *Tuner) Pause() {
	t.session.Pause()
}

// Resume re-enables the sync timer and immediately reconciles drift
func (t *Tuner) Resume() error {
	t.session.Resume()
	if !t.session.Loaded() {
		return nil
	}
	_, err := t.session.Sync()
	return err
}

// ReportFailure records a playback failure. Below the trip threshold it
// auto-skips to the next program; at or above it the guard trips, the sync
// timer is paused to stop background churn, and ErrGuardTripped is returned
// so the caller surfaces a persistent error instead of looping.
func (t *Tuner) ReportFailure() (schedule.Program, error) {
	if !t.session.Loaded() {
		return schedule.Program{}, ErrNotLoaded
	}

	if t.guard.RecordFailure() {
		t.session.Pause()

		logger.Log.Warn().
			Str("channel_id", t.channelID.Load()).
			Int("failures", t.guard.Failures()).
			Msg("Failure guard tripped, auto-skip suspended")

		for _, fn := range t.onGuardTripped {
			fn()
		}
		return schedule.Program{}, ErrGuardTripped
	}

	logger.Log.Info().
		Str("channel_id", t.channelID.Load()).
		Int("failures", t.guard.Failures()).
		Msg("Playback failure reported, skipping to next program")

	return t.session.SkipNext()
}

// ReportPlaybackStarted clears the failure guard after a successful start
func (t *Tuner) ReportPlaybackStarted() {
	t.guard.Reset()
}

// Status returns a snapshot of the tuner state
func (t *Tuner) Status() Status {
	st := Status{
		ChannelID:    t.channelID.Load(),
		Tuned:        t.session.Loaded(),
		Paused:       t.session.Paused(),
		GuardTripped: t.guard.Tripped(),
		Failures:     t.guard.Failures(),
	}

	if cur, err := t.session.Current(); err == nil {
		st.Current = &cur
	}
	if next, err := t.session.Next(); err == nil {
		st.Next = &next
	}

	return st
}
