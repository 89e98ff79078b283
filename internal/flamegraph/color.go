package flamegraph

import (
	"math"

	"github.com/rerun-io/tracepipe/internal/wire"
)

// splitmix64 is a small, fast, well-distributed PRNG used only to turn a
// CallsiteId into a handful of deterministic uniform draws. It has no
// relation to the wire codec; it exists purely so the same callsite always
// paints the same colour across runs and processes.
type splitmix64 struct {
	state uint64
}

func newSplitmix64(seed uint64) *splitmix64 {
	return &splitmix64{state: seed}
}

func (s *splitmix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z = z ^ (z >> 31)
	return z
}

// nextUnitFloat draws a uniform value in [0, 1).
func (s *splitmix64) nextUnitFloat() float64 {
	// Use the top 53 bits for a float64 with full mantissa precision.
	return float64(s.next()>>11) / float64(1<<53)
}

// ColorForCallsite deterministically derives an HSVA colour from a
// CallsiteId: hue uniform [0,1), saturation sqrt of uniform [0.35,0.55],
// value cbrt of uniform [0.55,0.80], alpha 1.
func ColorForCallsite(id wire.CallsiteId) Color {
	rng := newSplitmix64(uint64(id))

	hue := rng.nextUnitFloat()

	satLo, satHi := 0.35, 0.55
	sat := math.Sqrt(satLo + rng.nextUnitFloat()*(satHi-satLo))

	valLo, valHi := 0.55, 0.80
	val := math.Cbrt(valLo + rng.nextUnitFloat()*(valHi-valLo))

	return Color{H: hue, S: sat, V: val, A: 1}
}
