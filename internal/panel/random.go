package panel

import (
	"math/rand/v2"
	"sync"
)

// RandomSource yields uniform values in [0,1). Implementations must be safe
// for concurrent use.
type RandomSource interface {
	Float64() float64
}

type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSource returns a seeded PCG generator. A zero seed picks a random
// one, so only non-zero seeds are reproducible.
func NewRandomSource(seed int64) RandomSource {
	s := uint64(seed)
	if seed == 0 {
		s = rand.Uint64()
	}
	return &lockedSource{rng: rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))}
}

func (l *lockedSource) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64()
}

// FixedSource always returns the same value. 0.5 yields zero noise.
type FixedSource float64

func (f FixedSource) Float64() float64 { return float64(f) }

// SequenceSource replays values in order and wraps around.
type SequenceSource struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequenceSource creates a source that cycles through values
func NewSequenceSource(values ...float64) *SequenceSource {
	return &SequenceSource{values: values}
}

func (s *SequenceSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0.5
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}
