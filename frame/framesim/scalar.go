package framesim

import (
	"math"
	"sync"
	"sync/atomic"
)

// Scalar is a float64 input with change subscribers. It implements frame.Scalar.
type Scalar struct {
	bits atomic.Uint64

	mu   sync.Mutex
	subs map[uint64]func()
	seq  uint64
}

// NewScalar returns a scalar holding v.
func NewScalar(v float64) *Scalar {
	s := &Scalar{subs: make(map[uint64]func())}
	s.bits.Store(math.Float64bits(v))
	return s
}

func (s *Scalar) Value() float64 { return math.Float64frombits(s.bits.Load()) }

// Set stores v and notifies subscribers synchronously, in no particular order.
func (s *Scalar) Set(v float64) {
	s.bits.Store(math.Float64bits(v))
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Subscribe registers fn for change notifications.
func (s *Scalar) Subscribe(fn func()) func() {
	s.mu.Lock()
	s.seq++
	id := s.seq
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Subscribers returns the number of active subscriptions.
func (s *Scalar) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
