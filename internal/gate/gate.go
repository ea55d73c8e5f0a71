// Package gate provides a bounded concurrency gate: a fixed number of
// permits handed out to callers, with a way to wait for every permit
// to come back. It is a direct translation of the Python original's
// JoinableSemaphore (app/limiter.py) into the buffered-channel +
// sync.WaitGroup idiom planet-pulse's ftpmachine package used for its
// own connection limiter.
package gate

import (
	"context"
	"sync"
)

// Gate hands out at most capacity concurrent permits.
type Gate struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// New returns a Gate that allows up to capacity permits outstanding at
// once. capacity must be at least 1.
func New(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{sem: make(chan struct{}, capacity)}
}

// Acquire blocks until a permit is available or ctx is done. Every
// successful Acquire must be paired with exactly one Release.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		g.wg.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit acquired via Acquire.
func (g *Gate) Release() {
	<-g.sem
	g.wg.Done()
}

// Join blocks until every acquired permit has been released. Callers
// must stop acquiring before calling Join, or it may never return.
func (g *Gate) Join() {
	g.wg.Wait()
}
