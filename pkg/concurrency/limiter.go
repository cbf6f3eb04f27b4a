package concurrency

import (
	"context"
	"sync/atomic"
	"time"
)

// Metrics reports limiter activity.
type Metrics struct {
	Acquired       int64
	Rejected       int64
	PeakConcurrent int64
	TotalWait      time.Duration
}

// Limiter bounds the number of in-flight collaborator calls and trips a
// circuit breaker on repeated failures.
type Limiter struct {
	sem     chan struct{}
	active  int64
	breaker *CircuitBreaker

	acquired int64
	rejected int64
	peak     int64
	waitNs   int64
}

// NewLimiter creates a limiter allowing maxConcurrent calls. A nil breaker
// disables tripping.
func NewLimiter(maxConcurrent int, breaker *CircuitBreaker) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Limiter{
		sem:     make(chan struct{}, maxConcurrent),
		breaker: breaker,
	}
}

// Do runs fn once a slot is free. It fails fast with ErrCircuitOpen while
// the breaker is open and with ctx.Err() if the context ends first.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.breaker != nil {
		if err := l.breaker.Allow(); err != nil {
			atomic.AddInt64(&l.rejected, 1)
			return err
		}
	}

	start := time.Now()
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		atomic.AddInt64(&l.rejected, 1)
		return ctx.Err()
	}
	atomic.AddInt64(&l.waitNs, int64(time.Since(start)))
	atomic.AddInt64(&l.acquired, 1)
	l.updatePeak(atomic.AddInt64(&l.active, 1))

	defer func() {
		atomic.AddInt64(&l.active, -1)
		<-l.sem
	}()

	err := fn(ctx)
	if l.breaker != nil {
		l.breaker.Record(err)
	}
	return err
}

// CurrentActive returns the number of calls in flight.
func (l *Limiter) CurrentActive() int64 {
	return atomic.LoadInt64(&l.active)
}

// Metrics returns a snapshot of the counters.
func (l *Limiter) Metrics() Metrics {
	return Metrics{
		Acquired:       atomic.LoadInt64(&l.acquired),
		Rejected:       atomic.LoadInt64(&l.rejected),
		PeakConcurrent: atomic.LoadInt64(&l.peak),
		TotalWait:      time.Duration(atomic.LoadInt64(&l.waitNs)),
	}
}

func (l *Limiter) updatePeak(current int64) {
	for {
		peak := atomic.LoadInt64(&l.peak)
		if current <= peak || atomic.CompareAndSwapInt64(&l.peak, peak, current) {
			return
		}
	}
}
