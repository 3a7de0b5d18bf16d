package schedule

// Seeded deterministic shuffle. Two independent computations (live playback
// and guide precompute, possibly in different processes) must agree on the
// exact same item order for a given seed, so the generator uses pure integer
// arithmetic only; nothing here may depend on floating point or on
// platform-specific behavior.

const (
	splitmixGamma = 0x9E3779B97F4A7C15
	splitmixMulA  = 0xBF58476D1CE4E5B9
	splitmixMulB  = 0x94D049BB133111EB
)

// prng is a SplitMix64 stream seeded from a 32-bit seed
type prng struct {
	state uint64
}

func newPRNG(seed uint32) *prng {
	return &prng{state: uint64(seed)}
}

// next returns the next 64-bit value in the stream
func (p *prng) next() uint64 {
	p.state += splitmixGamma
	z := p.state
	z = (z ^ (z >> 30)) * splitmixMulA
	z = (z ^ (z >> 27)) * splitmixMulB
	return z ^ (z >> 31)
}

// intn returns a value in [0, n). n must be positive.
func (p *prng) intn(n int) int {
	return int(p.next() % uint64(n))
}

// Permute returns a new slice containing a deterministic permutation of items.
// For a fixed input length and seed the output order is always identical; the
// input slice is never modified.
func Permute(items []Item, seed uint32) []Item {
	out := make([]Item, len(items))
	copy(out, items)

	if len(out) < 2 {
		return out
	}

	// Fisher-Yates driven by the seeded stream
	rng := newPRNG(seed)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}

	return out
}

// RandomInRange returns a deterministic value in [0, maxExclusive) for the
// given seed, or 0 if maxExclusive is not positive. Used to derive per-channel
// phase offsets.
func RandomInRange(seed uint32, maxExclusive int64) int64 {
	if maxExclusive <= 0 {
		return 0
	}
	return int64(newPRNG(seed).next() % uint64(maxExclusive))
}
