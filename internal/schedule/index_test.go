package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIndex_EmptyContent(t *testing.T) {
	idx, err := BuildIndex(Config{Mode: ModeSequential})

	assert.Nil(t, idx)
	assert.ErrorIs(t, err, ErrEmptyContent)
	assert.True(t, IsEmptyContent(err))
}

func TestBuildIndex_InvalidDuration(t *testing.T) {
	tests := []struct {
		name       string
		durationMs int64
	}{
		{"zero duration", 0},
		{"negative duration", -5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := []Item{
				{ID: "ok", Title: "Fine", DurationMs: 1000},
				{ID: "bad", Title: "Broken", DurationMs: tt.durationMs},
			}

			idx, err := BuildIndex(Config{Items: items, Mode: ModeSequential})

			assert.Nil(t, idx)
			assert.ErrorIs(t, err, ErrInvalidDuration)
			assert.True(t, IsInvalidDuration(err))
		})
	}
}

func TestBuildIndex_SequentialKeepsOrder(t *testing.T) {
	items := []Item{
		{ID: "a", Title: "A", DurationMs: 10000},
		{ID: "b", Title: "B", DurationMs: 5000},
		{ID: "c", Title: "C", DurationMs: 15000},
	}

	idx, err := BuildIndex(Config{Items: items, Mode: ModeSequential})

	require.NoError(t, err)
	require.Equal(t, 3, idx.Len())

	assert.Equal(t, "a", idx.ItemAt(0).ID)
	assert.Equal(t, "b", idx.ItemAt(1).ID)
	assert.Equal(t, "c", idx.ItemAt(2).ID)

	assert.Equal(t, int64(0), idx.StartOffset(0))
	assert.Equal(t, int64(10000), idx.StartOffset(1))
	assert.Equal(t, int64(15000), idx.StartOffset(2))
	assert.Equal(t, int64(30000), idx.LoopDuration())
}

func TestBuildIndex_ShuffleUsesSeededPermutation(t *testing.T) {
	items := makeItems(12)

	idx, err := BuildIndex(Config{Items: items, Mode: ModeShuffle, Seed: 77})
	require.NoError(t, err)

	expected := Permute(items, 77)
	for i := 0; i < idx.Len(); i++ {
		assert.Equal(t, expected[i].ID, idx.ItemAt(i).ID)
	}
}

func TestBuildIndex_Deterministic(t *testing.T) {
	items := makeItems(25)
	cfg := Config{Items: items, Mode: ModeShuffle, Seed: 31337}

	first, err := BuildIndex(cfg)
	require.NoError(t, err)
	second, err := BuildIndex(cfg)
	require.NoError(t, err)

	require.Equal(t, first.Len(), second.Len())
	for i := 0; i < first.Len(); i++ {
		assert.Equal(t, first.ItemAt(i).ID, second.ItemAt(i).ID)
		assert.Equal(t, first.StartOffset(i), second.StartOffset(i))
	}
	assert.Equal(t, first.LoopDuration(), second.LoopDuration())
}

func TestBuildIndex_OffsetsAreCumulativeDurations(t *testing.T) {
	items := makeItems(8)

	idx, err := BuildIndex(Config{Items: items, Mode: ModeShuffle, Seed: 5})
	require.NoError(t, err)

	var running int64
	for i := 0; i < idx.Len(); i++ {
		assert.Equal(t, running, idx.StartOffset(i))
		running += idx.ItemAt(i).DurationMs
	}
	assert.Equal(t, running, idx.LoopDuration())
}

func BenchmarkBuildIndex_1000Items(b *testing.B) {
	items := make([]Item, 1000)
	for i := range items {
		items[i] = Item{ID: "item", Title: "Item", DurationMs: 60000}
	}
	cfg := Config{Items: items, Mode: ModeShuffle, Seed: 1}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = BuildIndex(cfg)
	}
}
