// Package rng provides the seeded random stream that drives maze carving.
//
// The stream is SplitMix64, and each random choice consumes exactly one
// 64-bit output: the chosen index is Uint64() % k. Both the generator and the
// consumption pattern are fixed so that a seed reproduces the same maze in any
// port that follows them.
package rng

const (
	golden = 0x9e3779b97f4a7c15
	mix1   = 0xbf58476d1ce4e5b9
	mix2   = 0x94d049bb133111eb
)

// Stream is a SplitMix64 generator. It satisfies math/rand.Source64.
type Stream struct {
	state uint64
}

// New returns a stream seeded with seed.
func New(seed int64) *Stream {
	return &Stream{state: uint64(seed)}
}

// Seed resets the stream to seed.
func (s *Stream) Seed(seed int64) {
	s.state = uint64(seed)
}

// Uint64 returns the next 64-bit output.
func (s *Stream) Uint64() uint64 {
	s.state += golden
	z := s.state
	z = (z ^ (z >> 30)) * mix1
	z = (z ^ (z >> 27)) * mix2
	return z ^ (z >> 31)
}

// Int63 returns a non-negative 63-bit value.
func (s *Stream) Int63() int64 {
	return int64(s.Uint64() >> 1)
}

// Choose returns an index in [0, k). It panics if k < 1.
func (s *Stream) Choose(k int) int {
	if k < 1 {
		panic("rng: Choose called with k < 1")
	}
	return int(s.Uint64() % uint64(k))
}
