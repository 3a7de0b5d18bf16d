// Package schedule implements the virtual broadcast scheduling engine: a
// deterministic shuffle, a time-addressable index over a looping content list,
// and pure resolvers that map wall-clock instants onto scheduled programs.
// All time arithmetic is in epoch milliseconds using int64 only.
package schedule

// PlaybackMode determines how a channel orders its content loop
type PlaybackMode string

// Playback mode constants
const (
	// ModeSequential plays content in the order it was supplied
	ModeSequential PlaybackMode = "sequential"

	// ModeShuffle plays content in a seeded deterministic permutation
	ModeShuffle PlaybackMode = "shuffle"
)

// Valid reports whether the playback mode is a known value
func (m PlaybackMode) Valid() bool {
	return m == ModeSequential || m == ModeShuffle
}

// Item is a single playable entry in a channel's content loop.
// The engine treats it as read-only and passes Meta through untouched.
type Item struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	DurationMs int64             `json:"duration_ms"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// Config describes one channel load: the content loop, how it is ordered,
// and the absolute instant at which loop position zero starts.
type Config struct {
	ChannelID string
	AnchorMs  int64
	Items     []Item
	Mode      PlaybackMode
	Seed      uint32
}

// Index is the immutable time-addressable form of a content loop: the
// effective item order, each item's cumulative start offset within one loop
// pass, and the total loop duration. Built once per load by BuildIndex and
// never mutated afterwards, so it is safe for concurrent readers.
type Index struct {
	items          []Item
	starts         []int64
	loopDurationMs int64
}

// Len returns the number of items in the loop
func (x *Index) Len() int {
	return len(x.items)
}

// ItemAt returns the item at the given loop position
func (x *Index) ItemAt(i int) Item {
	return x.items[i]
}

// StartOffset returns the cumulative start offset of the item at position i,
// in milliseconds from the start of one loop pass
func (x *Index) StartOffset(i int) int64 {
	return x.starts[i]
}

// LoopDuration returns the total duration of one loop pass in milliseconds
func (x *Index) LoopDuration() int64 {
	return x.loopDurationMs
}

// Program is one resolved airing of an item: absolute start/end instants,
// the viewer's position within it, and where it sits in the loop.
// Produced per query and never persisted.
type Program struct {
	Item        Item  `json:"item"`
	StartMs     int64 `json:"start_ms"`
	EndMs       int64 `json:"end_ms"`
	ElapsedMs   int64 `json:"elapsed_ms"`
	RemainingMs int64 `json:"remaining_ms"`
	Position    int   `json:"position"`
	Loop        int64 `json:"loop"`
}
