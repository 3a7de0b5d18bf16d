package schedule

import "sort"

// floorDiv divides a by b rounding toward negative infinity. Go's integer
// division truncates toward zero, which would put a query before the anchor
// into the wrong loop; the floor convention keeps position-in-loop in
// [0, loopDuration) for any sign of a.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Locate resolves which program is airing at the instant atMs against an
// index anchored at anchorMs. Pure function: no state, safe for concurrent
// use. Instants before the anchor resolve into negative loop numbers with the
// position still inside the loop.
func Locate(idx *Index, anchorMs, atMs int64) Program {
	loopDur := idx.LoopDuration()
	elapsed := atMs - anchorMs

	loop := floorDiv(elapsed, loopDur)
	posInLoop := elapsed - loop*loopDur

	// First position whose start offset exceeds posInLoop, minus one, is the
	// item containing it. starts[0] == 0 so i >= 0 always.
	n := idx.Len()
	i := sort.Search(n, func(k int) bool {
		return idx.StartOffset(k) > posInLoop
	}) - 1

	return programAt(idx, anchorMs, loop, i, atMs)
}

// Window returns every program whose interval intersects [fromMs, toMs), in
// chronological order, wrapping across loop boundaries as needed. The result
// is gap-free and non-overlapping; concatenating adjacent windows yields the
// same sequence as one spanning call. Returns nil for an empty range.
func Window(idx *Index, anchorMs, fromMs, toMs int64) []Program {
	if fromMs >= toMs {
		return nil
	}

	first := Locate(idx, anchorMs, fromMs)

	n := idx.Len()
	loop := first.Loop
	pos := first.Position

	var out []Program
	for {
		prog := programAt(idx, anchorMs, loop, pos, fromMs)
		if prog.StartMs >= toMs {
			break
		}
		out = append(out, prog)

		pos++
		if pos == n {
			pos = 0
			loop++
		}
	}

	return out
}

// programAt builds the Program for loop/position, computing elapsed and
// remaining relative to atMs clamped to [0, duration].
func programAt(idx *Index, anchorMs, loop int64, pos int, atMs int64) Program {
	item := idx.ItemAt(pos)
	startMs := anchorMs + loop*idx.LoopDuration() + idx.StartOffset(pos)
	endMs := startMs + item.DurationMs

	elapsed := atMs - startMs
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > item.DurationMs {
		elapsed = item.DurationMs
	}

	return Program{
		Item:        item,
		StartMs:     startMs,
		EndMs:       endMs,
		ElapsedMs:   elapsed,
		RemainingMs: item.DurationMs - elapsed,
		Position:    pos,
		Loop:        loop,
	}
}
