// Package guide precomputes program listings by deriving channel schedules
// directly from their plans, without touching any live playback session. The
// same derivation the live path uses guarantees the listings and playback
// agree.
package guide

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/atomic"

	"github.com/carousel-tv/carousel/internal/broadcast"
	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/schedule"
)

// ErrStaleBuild is returned when lineup changes invalidated a grid build too
// many times in a row
var ErrStaleBuild = errors.New("guide build invalidated by concurrent changes")

// IsStaleBuild checks if the error is a stale build error
func IsStaleBuild(err error) bool {
	return errors.Is(err, ErrStaleBuild)
}

const maxBuildAttempts = 3

// PlanSource supplies channel plans for guide derivation
type PlanSource interface {
	Plans(ctx context.Context) ([]broadcast.Plan, error)
	ResolvePlan(ctx context.Context, channelID string) (broadcast.Plan, error)
}

// ChannelListing is one channel's slice of a guide grid
type ChannelListing struct {
	ChannelID string             `json:"channel_id"`
	Name      string             `json:"name"`
	Programs  []schedule.Program `json:"programs"`
}

// NowNext pairs the currently airing program with the one that follows
type NowNext struct {
	ChannelID string           `json:"channel_id"`
	Now       schedule.Program `json:"now"`
	Next      schedule.Program `json:"next"`
}

// Service builds guide grids concurrently with a bounded worker pool
type Service struct {
	source  PlanSource
	workers int
	nowFn   func() int64

	// gen invalidates in-flight grid builds when lineups change; a build that
	// observes a bumped generation discards its result and starts over
	gen *atomic.Int64
}

// NewService creates a guide service with the given worker bound
func NewService(source PlanSource, workers int) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		source:  source,
		workers: workers,
		gen:     atomic.NewInt64(0),
		nowFn:   func() int64 { return time.Now().UnixMilli() },
	}
}

// SetClock overrides the wall-clock source for tests
func (s *Service) SetClock(nowFn func() int64) {
	s.nowFn = nowFn
}

// Invalidate marks all in-flight grid builds stale. Call on any lineup or
// channel mutation.
func (s *Service) Invalidate() {
	s.gen.Inc()
}

// Grid computes the listings of every channel over [fromMs, toMs). Channels
// are built concurrently; a lineup change during the build silently restarts
// it so the caller never observes a half-old, half-new grid.
func (s *Service) Grid(ctx context.Context, fromMs, toMs int64) ([]ChannelListing, error) {
	for attempt := 0; attempt < maxBuildAttempts; attempt++ {
		gen := s.gen.Load()

		listings, err := s.buildGrid(ctx, fromMs, toMs)
		if err != nil {
			return nil, err
		}

		if s.gen.Load() == gen {
			return listings, nil
		}

		logger.Log.Debug().
			Int("attempt", attempt+1).
			Msg("Guide grid invalidated during build, retrying")
	}

	return nil, ErrStaleBuild
}

// buildGrid derives every channel's window with a bounded worker pool
func (s *Service) buildGrid(ctx context.Context, fromMs, toMs int64) ([]ChannelListing, error) {
	plans, err := s.source.Plans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build guide grid: %w", err)
	}

	listings := make([]ChannelListing, len(plans))

	p := pool.New().WithMaxGoroutines(s.workers).WithContext(ctx).WithCancelOnError()
	for i, plan := range plans {
		i, plan := i, plan
		p.Go(func(ctx context.Context) error {
			programs, err := windowForPlan(plan, fromMs, toMs)
			if err != nil {
				// An empty or invalid lineup means no listings, not a failed grid
				if schedule.IsEmptyContent(err) || schedule.IsInvalidDuration(err) {
					listings[i] = ChannelListing{ChannelID: plan.ChannelID, Name: plan.Name}
					return nil
				}
				return fmt.Errorf("channel %s: %w", plan.ChannelID, err)
			}
			listings[i] = ChannelListing{
				ChannelID: plan.ChannelID,
				Name:      plan.Name,
				Programs:  programs,
			}
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build guide grid: %w", err)
	}

	return listings, nil
}

// ChannelWindow computes one channel's listings over [fromMs, toMs)
func (s *Service) ChannelWindow(ctx context.Context, channelID string, fromMs, toMs int64) ([]schedule.Program, error) {
	plan, err := s.source.ResolvePlan(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return windowForPlan(plan, fromMs, toMs)
}

// NowNext resolves the current and next program for a channel without any
// session state. Crossing midnight follows the live rollover rule: the next
// program comes from the new day's schedule only once the current one ends.
func (s *Service) NowNext(ctx context.Context, channelID string) (NowNext, error) {
	plan, err := s.source.ResolvePlan(ctx, channelID)
	if err != nil {
		return NowNext{}, err
	}

	now := s.nowFn()
	cfg, _ := broadcast.DeriveDay(plan, now)
	idx, err := schedule.BuildIndex(cfg)
	if err != nil {
		return NowNext{}, err
	}

	cur := schedule.Locate(idx, cfg.AnchorMs, now)

	loc := planLocation(plan)
	dayEnd := nextLocalMidnight(now, loc)

	var next schedule.Program
	if cur.EndMs >= dayEnd {
		// The current program outlives today's schedule; its successor comes
		// from the next day's derivation
		nextCfg, _ := broadcast.DeriveDay(plan, cur.EndMs)
		nextIdx, err := schedule.BuildIndex(nextCfg)
		if err != nil {
			return NowNext{}, err
		}
		next = schedule.Locate(nextIdx, nextCfg.AnchorMs, cur.EndMs)
	} else {
		next = schedule.Locate(idx, cfg.AnchorMs, cur.EndMs)
	}

	return NowNext{ChannelID: channelID, Now: cur, Next: next}, nil
}

// windowForPlan stitches per-day derived schedules across [fromMs, toMs).
// Each local calendar day resolves against that day's own derived config. A
// program spanning midnight appears once and plays to its end before the new
// day's schedule takes over, matching the live deferred-rollover rule; the
// program joined mid-way at that handover is clamped to start there, keeping
// the stitched window gap-free and non-overlapping.
func windowForPlan(plan broadcast.Plan, fromMs, toMs int64) ([]schedule.Program, error) {
	if fromMs >= toMs {
		return nil, nil
	}

	loc := planLocation(plan)

	var out []schedule.Program
	cursor := fromMs
	for cursor < toMs {
		cfg, _ := broadcast.DeriveDay(plan, cursor)
		idx, err := schedule.BuildIndex(cfg)
		if err != nil {
			return nil, err
		}

		segEnd := nextLocalMidnight(cursor, loc)
		if segEnd > toMs {
			segEnd = toMs
		}

		for _, prog := range schedule.Window(idx, cfg.AnchorMs, cursor, segEnd) {
			if prog.EndMs <= cursor {
				continue
			}
			if prog.StartMs < cursor && len(out) > 0 {
				// Handover after a midnight-spanning predecessor: the new
				// day's current program is joined in progress
				prog.StartMs = cursor
			}
			out = append(out, prog)
		}

		// A spanning program defers the next day's schedule until it ends
		cursor = segEnd
		if n := len(out); n > 0 && out[n-1].EndMs > cursor {
			cursor = out[n-1].EndMs
		}
	}

	return out, nil
}

// planLocation resolves the plan's timezone, defaulting like the live path
func planLocation(plan broadcast.Plan) *time.Location {
	if plan.Location != nil {
		return plan.Location
	}
	return time.Local
}

// nextLocalMidnight returns the first local midnight strictly after ms
func nextLocalMidnight(ms int64, loc *time.Location) int64 {
	y, m, d := time.UnixMilli(ms).In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc).UnixMilli()
}
