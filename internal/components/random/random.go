package random

import (
	"math/rand"
	"sync"

	gorandom "github.com/mazen160/go-random"
)

// API is the source of randomness for delays, jitter and header rotation.
//
// note: fault injection point
type API interface {
	// Float64 returns a number in [0, 1).
	Float64() float64
}

type StandardImpl struct{}

func (StandardImpl) Float64() float64 {
	return rand.Float64()
}

// Fixed always returns the same value, it is meant for tests.
type Fixed float64

func (f Fixed) Float64() float64 {
	return float64(f)
}

// Sequence returns its values in order and then repeats the last one.
type Sequence struct {
	mutex  sync.Mutex
	values []float64
	idx    int
}

func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.idx]
	if s.idx < len(s.values)-1 {
		s.idx++
	}
	return v
}

// ID returns a short random alphanumeric identifier for correlating the logs of a
// single run, falling back to a fixed id if the system random source fails.
func ID() string {
	id, err := gorandom.String(8)
	if err != nil {
		return "00000000"
	}
	return id
}
