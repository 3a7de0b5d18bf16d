package schedule

import "fmt"

// BuildIndex builds the immutable time-addressable index for a content loop.
// Sequential mode keeps the input order; shuffle mode applies the seeded
// permutation. Cumulative offsets are built in a single pass, O(n) time and
// space.
//
// Returns ErrEmptyContent for an empty content list and ErrInvalidDuration if
// any item has a non-positive duration. A malformed item fails the whole build
// rather than being silently skipped, so a load never half-succeeds.
func BuildIndex(cfg Config) (*Index, error) {
	if len(cfg.Items) == 0 {
		return nil, ErrEmptyContent
	}

	for _, item := range cfg.Items {
		if item.DurationMs <= 0 {
			return nil, fmt.Errorf("item %q has duration %dms: %w", item.ID, item.DurationMs, ErrInvalidDuration)
		}
	}

	items := cfg.Items
	if cfg.Mode == ModeShuffle {
		items = Permute(cfg.Items, cfg.Seed)
	} else {
		// Copy so the index never aliases caller-owned memory
		items = make([]Item, len(cfg.Items))
		copy(items, cfg.Items)
	}

	starts := make([]int64, len(items))
	var total int64
	for i, item := range items {
		starts[i] = total
		total += item.DurationMs
	}

	return &Index{
		items:          items,
		starts:         starts,
		loopDurationMs: total,
	}, nil
}
