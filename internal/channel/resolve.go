package channel

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carousel-tv/carousel/internal/broadcast"
	"github.com/carousel-tv/carousel/internal/db"
	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/models"
	"github.com/carousel-tv/carousel/internal/schedule"
)

// Resolver turns persisted channels and lineups into scheduling inputs. It is
// the only bridge between the catalog store and the scheduling engine; the
// engine itself never touches the database.
type Resolver struct {
	repos *db.Repositories
}

// NewResolver creates a new resolver instance
func NewResolver(repos *db.Repositories) *Resolver {
	return &Resolver{repos: repos}
}

// ResolveItems loads a channel's lineup with media metadata and converts it
// into the ordered content list the scheduler consumes. Entries whose media
// is missing or has a non-positive duration are dropped with a warning; the
// index builder re-validates what remains.
func (r *Resolver) ResolveItems(ctx context.Context, channelID uuid.UUID) ([]schedule.Item, error) {
	entries, err := r.repos.Lineup.GetWithMedia(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve lineup items: %w", err)
	}

	items := make([]schedule.Item, 0, len(entries))
	for _, entry := range entries {
		if entry.Media == nil {
			logger.Log.Warn().
				Str("channel_id", channelID.String()).
				Str("entry_id", entry.ID.String()).
				Msg("Lineup entry has no media, skipping")
			continue
		}
		if entry.Media.DurationMs <= 0 {
			logger.Log.Warn().
				Str("channel_id", channelID.String()).
				Str("media_id", entry.MediaID.String()).
				Int64("duration_ms", entry.Media.DurationMs).
				Msg("Media has non-positive duration, skipping")
			continue
		}

		meta := map[string]string{"file_path": entry.Media.FilePath}
		if entry.Media.ShowName != nil {
			meta["show_name"] = *entry.Media.ShowName
		}

		items = append(items, schedule.Item{
			ID:         entry.MediaID.String(),
			Title:      entry.Media.Title,
			DurationMs: entry.Media.DurationMs,
			Meta:       meta,
		})
	}

	return items, nil
}

// BuildPlan assembles the static scheduling plan for a channel
func (r *Resolver) BuildPlan(ctx context.Context, ch *models.Channel) (broadcast.Plan, error) {
	items, err := r.ResolveItems(ctx, ch.ID)
	if err != nil {
		return broadcast.Plan{}, err
	}

	mode := schedule.ModeSequential
	if ch.Mode == models.ModeShuffle {
		mode = schedule.ModeShuffle
	}

	return broadcast.Plan{
		ChannelID: ch.ID.String(),
		Name:      ch.Name,
		BaseSeed:  ch.ShuffleSeed,
		PhaseSeed: ch.PhaseSeed,
		Mode:      mode,
		Items:     items,
		Location:  ch.Location(),
	}, nil
}

// ResolvePlan loads a channel by ID and assembles its plan. Implements the
// plan resolution the tuner needs during a channel switch.
func (r *Resolver) ResolvePlan(ctx context.Context, channelID string) (broadcast.Plan, error) {
	id, err := uuid.Parse(channelID)
	if err != nil {
		return broadcast.Plan{}, fmt.Errorf("failed to resolve plan: invalid channel id %q: %w", channelID, err)
	}

	ch, err := r.repos.Channels.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return broadcast.Plan{}, ErrChannelNotFound
		}
		return broadcast.Plan{}, fmt.Errorf("failed to resolve plan: %w", err)
	}

	return r.BuildPlan(ctx, ch)
}

// Plans assembles plans for every channel, used by guide precompute
func (r *Resolver) Plans(ctx context.Context) ([]broadcast.Plan, error) {
	channels, err := r.repos.Channels.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels for plans: %w", err)
	}

	plans := make([]broadcast.Plan, 0, len(channels))
	for _, ch := range channels {
		plan, err := r.BuildPlan(ctx, ch)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
