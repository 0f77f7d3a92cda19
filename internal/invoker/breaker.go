package invoker

import (
	"sort"
	"sync"
)

type BreakerState struct {
	FailureCount int  `json:"failure_count"`
	IsOpen       bool `json:"is_open"`
}

// Breaker counts consecutive failed calls for one operation and opens once the
// count reaches the threshold. There is no half-open timer: an open breaker
// closes only through Reset or a recorded success.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	failures  int
	open      bool
}

func NewBreaker(threshold int) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{threshold: threshold}
}

func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.open
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.open = true
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerState{FailureCount: b.failures, IsOpen: b.open}
}

func (b *Breaker) Reset() {
	b.RecordSuccess()
}

// Registry holds one breaker per operation name.
type Registry struct {
	mu        sync.Mutex
	threshold int
	breakers  map[string]*Breaker
}

func NewRegistry(threshold int) *Registry {
	return &Registry{
		threshold: threshold,
		breakers:  make(map[string]*Breaker),
	}
}

func (r *Registry) Breaker(op string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[op]
	if !ok {
		b = NewBreaker(r.threshold)
		r.breakers[op] = b
	}
	return b
}

func (r *Registry) Operations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]string, 0, len(r.breakers))
	for op := range r.breakers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

func (r *Registry) Snapshot() map[string]BreakerState {
	out := make(map[string]BreakerState)
	for _, op := range r.Operations() {
		out[op] = r.Breaker(op).State()
	}
	return out
}

func (r *Registry) ResetAll() {
	for _, op := range r.Operations() {
		r.Breaker(op).Reset()
	}
}
