package pool

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultGateCapacity is the number of jobs admitted at once when no capacity is configured.
const DefaultGateCapacity = 5

// Gate is a counting admission gate bounding how many jobs run at the same time.
// Acquire blocks until a slot is free or ctx is done; there is no acquisition timeout of its own.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int

	inFlight atomic.Int64
	waiting  atomic.Int64
	admitted atomic.Int64
}

// GateStats is a point-in-time view of a Gate.
type GateStats struct {
	Capacity int   `json:"capacity"`
	InFlight int64 `json:"in_flight"`
	Waiting  int64 `json:"waiting"`
	Admitted int64 `json:"admitted"`
}

// NewGate creates a gate with the given capacity (DefaultGateCapacity when <= 0).
func NewGate(capacity int) *Gate {
	if capacity <= 0 {
		capacity = DefaultGateCapacity
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Capacity returns the configured slot count.
func (g *Gate) Capacity() int { return g.capacity }

// Acquire takes one slot, suspending the caller while the gate is full.
func (g *Gate) Acquire(ctx context.Context) error {
	g.waiting.Add(1)
	err := g.sem.Acquire(ctx, 1)
	g.waiting.Add(-1)
	if err != nil {
		return err
	}
	g.inFlight.Add(1)
	g.admitted.Add(1)
	return nil
}

// Release returns a slot taken by Acquire.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// Do runs fn while holding a slot. The slot is returned on every exit path, panics included.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()
	return fn(ctx)
}

// Stats returns the current gate statistics.
func (g *Gate) Stats() GateStats {
	return GateStats{
		Capacity: g.capacity,
		InFlight: g.inFlight.Load(),
		Waiting:  g.waiting.Load(),
		Admitted: g.admitted.Load(),
	}
}
