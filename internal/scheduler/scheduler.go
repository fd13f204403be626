package scheduler

import (
	"sync"
	"sync/atomic"
)

// Scheduler picks the next target index for an upstream with n targets.
// It returns -1 when there is nothing to pick.
type Scheduler interface {
	Next(upstream string, n int) int
}

// RoundRobin rotates through targets, keeping one counter per upstream so
// that platforms sharing the scheduler do not skew each other.
type RoundRobin struct {
	counters sync.Map // upstream name -> *atomic.Uint64
}

func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (r *RoundRobin) Next(upstream string, n int) int {
	if n <= 0 {
		return -1
	}
	c, _ := r.counters.LoadOrStore(upstream, new(atomic.Uint64))
	v := c.(*atomic.Uint64).Add(1)
	return int(v % uint64(n))
}
