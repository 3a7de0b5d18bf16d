package guide

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carousel-tv/carousel/internal/broadcast"
	"github.com/carousel-tv/carousel/internal/schedule"
)

// fakeSource serves plans from memory
type fakeSource struct {
	plans  []broadcast.Plan
	onList func()
}

func (f *fakeSource) Plans(_ context.Context) ([]broadcast.Plan, error) {
	if f.onList != nil {
		f.onList()
	}
	return f.plans, nil
}

func (f *fakeSource) ResolvePlan(_ context.Context, channelID string) (broadcast.Plan, error) {
	for _, p := range f.plans {
		if p.ChannelID == channelID {
			return p, nil
		}
	}
	return broadcast.Plan{}, schedule.ErrEmptyContent
}

func msAt(y int, m time.Month, d, hh, mm, ss int) int64 {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC).UnixMilli()
}

func testItems() []schedule.Item {
	return []schedule.Item{
		{ID: "a", Title: "Alpha", DurationMs: 30 * 60 * 1000},
		{ID: "b", Title: "Bravo", DurationMs: 45 * 60 * 1000},
		{ID: "c", Title: "Charlie", DurationMs: 60 * 60 * 1000},
	}
}

func testPlan(id string) broadcast.Plan {
	return broadcast.Plan{
		ChannelID: id,
		Name:      "Channel " + id,
		Mode:      schedule.ModeSequential,
		Items:     testItems(),
		Location:  time.UTC,
	}
}

func TestChannelWindow_GapFree(t *testing.T) {
	source := &fakeSource{plans: []broadcast.Plan{testPlan("ch-1")}}
	svc := NewService(source, 4)

	from := msAt(2024, time.March, 15, 6, 0, 0)
	to := msAt(2024, time.March, 15, 12, 0, 0)

	programs, err := svc.ChannelWindow(context.Background(), "ch-1", from, to)
	require.NoError(t, err)
	require.NotEmpty(t, programs)

	assert.Less(t, programs[0].StartMs, from+1)
	for i := 1; i < len(programs); i++ {
		assert.Equal(t, programs[i-1].EndMs, programs[i].StartMs, "gap at index %d", i)
	}
	last := programs[len(programs)-1]
	assert.Less(t, last.StartMs, to)
	assert.GreaterOrEqual(t, last.EndMs, to)
}

func TestChannelWindow_StitchesAcrossMidnight(t *testing.T) {
	plan := testPlan("ch-1")
	plan.Mode = schedule.ModeShuffle
	plan.BaseSeed = 1234
	source := &fakeSource{plans: []broadcast.Plan{plan}}
	svc := NewService(source, 4)

	from := msAt(2024, time.March, 15, 22, 0, 0)
	to := msAt(2024, time.March, 16, 2, 0, 0)
	midnight := msAt(2024, time.March, 16, 0, 0, 0)

	programs, err := svc.ChannelWindow(context.Background(), "ch-1", from, to)
	require.NoError(t, err)
	require.NotEmpty(t, programs)

	// Still gap-free and non-overlapping across the seam
	for i := 1; i < len(programs); i++ {
		assert.Equal(t, programs[i-1].EndMs, programs[i].StartMs, "seam at index %d", i)
	}

	// Programs starting after midnight must come from the next day's
	// derivation, which for shuffle mode means a day-salted seed
	nextCfg, _ := broadcast.DeriveDay(plan, midnight)
	idx, err := schedule.BuildIndex(nextCfg)
	require.NoError(t, err)

	for _, prog := range programs {
		if prog.StartMs >= midnight {
			located := schedule.Locate(idx, nextCfg.AnchorMs, prog.StartMs)
			assert.Equal(t, located.Item.ID, prog.Item.ID)
		}
	}
}

func TestChannelWindow_DeterministicAcrossCalls(t *testing.T) {
	plan := testPlan("ch-1")
	plan.Mode = schedule.ModeShuffle
	plan.BaseSeed = 42
	plan.PhaseSeed = 7
	source := &fakeSource{plans: []broadcast.Plan{plan}}

	from := msAt(2024, time.March, 15, 0, 0, 0)
	to := msAt(2024, time.March, 17, 0, 0, 0)

	first, err := NewService(source, 2).ChannelWindow(context.Background(), "ch-1", from, to)
	require.NoError(t, err)
	second, err := NewService(source, 8).ChannelWindow(context.Background(), "ch-1", from, to)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGrid_AllChannels(t *testing.T) {
	source := &fakeSource{plans: []broadcast.Plan{
		testPlan("ch-1"),
		testPlan("ch-2"),
		testPlan("ch-3"),
	}}
	svc := NewService(source, 2)

	from := msAt(2024, time.March, 15, 6, 0, 0)
	to := msAt(2024, time.March, 15, 18, 0, 0)

	listings, err := svc.Grid(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, listings, 3)

	// Pool workers must not scramble channel order
	assert.Equal(t, "ch-1", listings[0].ChannelID)
	assert.Equal(t, "ch-2", listings[1].ChannelID)
	assert.Equal(t, "ch-3", listings[2].ChannelID)
	for _, l := range listings {
		assert.NotEmpty(t, l.Programs)
	}
}

func TestGrid_EmptyChannelYieldsEmptyListing(t *testing.T) {
	empty := testPlan("ch-empty")
	empty.Items = nil
	source := &fakeSource{plans: []broadcast.Plan{testPlan("ch-1"), empty}}
	svc := NewService(source, 2)

	from := msAt(2024, time.March, 15, 6, 0, 0)
	to := msAt(2024, time.March, 15, 12, 0, 0)

	listings, err := svc.Grid(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.NotEmpty(t, listings[0].Programs)
	assert.Empty(t, listings[1].Programs)
}

func TestGrid_InvalidatedBuildRetriesThenFails(t *testing.T) {
	source := &fakeSource{plans: []broadcast.Plan{testPlan("ch-1")}}
	svc := NewService(source, 2)

	// Every plan listing invalidates the build in flight
	source.onList = svc.Invalidate

	from := msAt(2024, time.March, 15, 6, 0, 0)
	to := msAt(2024, time.March, 15, 12, 0, 0)

	_, err := svc.Grid(context.Background(), from, to)
	require.Error(t, err)
	assert.True(t, IsStaleBuild(err))
}

func TestNowNext(t *testing.T) {
	source := &fakeSource{plans: []broadcast.Plan{testPlan("ch-1")}}
	svc := NewService(source, 2)
	svc.SetClock(func() int64 { return msAt(2024, time.March, 15, 12, 34, 56) })

	nn, err := svc.NowNext(context.Background(), "ch-1")
	require.NoError(t, err)

	assert.Equal(t, "ch-1", nn.ChannelID)
	assert.Equal(t, nn.Now.EndMs, nn.Next.StartMs)
	assert.Greater(t, nn.Now.RemainingMs, int64(0))
}

func TestNowNext_AcrossMidnightUsesNextDaySchedule(t *testing.T) {
	// Single long item: the program airing at 23:30 spans midnight
	plan := testPlan("ch-1")
	plan.Mode = schedule.ModeShuffle
	plan.BaseSeed = 99
	plan.Items = []schedule.Item{
		{ID: "x", Title: "X", DurationMs: 7 * 60 * 60 * 1000},
		{ID: "y", Title: "Y", DurationMs: 5 * 60 * 60 * 1000},
	}
	source := &fakeSource{plans: []broadcast.Plan{plan}}
	svc := NewService(source, 2)

	now := msAt(2024, time.March, 15, 23, 30, 0)
	svc.SetClock(func() int64 { return now })

	nn, err := svc.NowNext(context.Background(), "ch-1")
	require.NoError(t, err)

	if nn.Now.EndMs >= msAt(2024, time.March, 16, 0, 0, 0) {
		nextCfg, _ := broadcast.DeriveDay(plan, nn.Now.EndMs)
		idx, err := schedule.BuildIndex(nextCfg)
		require.NoError(t, err)
		located := schedule.Locate(idx, nextCfg.AnchorMs, nn.Now.EndMs)
		assert.Equal(t, located.Item.ID, nn.Next.Item.ID)
	} else {
		assert.Equal(t, nn.Now.EndMs, nn.Next.StartMs)
	}
}
