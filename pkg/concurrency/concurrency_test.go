package concurrency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/process"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DAEDALUS_RUNNER_WORKERS", "3")
	t.Setenv("DAEDALUS_MAX_INFLIGHT", "9")
	t.Setenv("DAEDALUS_BREAKER_FAILURES", "2")

	cfg := LoadConfig()
	assert.Equal(t, 3, cfg.RunnerWorkers)
	assert.Equal(t, 9, cfg.MaxInFlight)
	assert.Equal(t, 2, cfg.BreakerFailures)
	assert.Equal(t, ConfigSourceEnvVar, cfg.Source)
	assert.Contains(t, cfg.String(), "RunnerWorkers: 3")
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()
	assert.GreaterOrEqual(t, cfg.RunnerWorkers, 4)
	assert.Equal(t, cfg.RunnerWorkers*4, cfg.MaxInFlight)
	assert.Equal(t, 5, cfg.BreakerFailures)
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }
	boom := errors.New("boom")

	require.NoError(t, cb.Allow())
	cb.Record(boom)
	assert.Equal(t, StateClosed, cb.State())
	cb.Record(boom)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.Record(boom)
	assert.Equal(t, StateOpen, cb.State(), "a half-open failure reopens")

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	cb.Record(nil)
	cb.Record(nil)
	assert.Equal(t, StateClosed, cb.State())

	cb.Record(boom)
	cb.Reset()
	cb.Record(boom)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}

func TestLimiter_BoundsConcurrency(t *testing.T) {
	l := NewLimiter(2, nil)
	release := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func(context.Context) error {
				<-release
				return nil
			})
		}()
	}

	require.Eventually(t, func() bool { return l.CurrentActive() == 2 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	m := l.Metrics()
	assert.Equal(t, int64(5), m.Acquired)
	assert.Equal(t, int64(2), m.PeakConcurrent)
	assert.Zero(t, l.CurrentActive())
}

func TestLimiter_ContextAndBreaker(t *testing.T) {
	l := NewLimiter(1, NewCircuitBreaker(1, time.Hour))
	boom := errors.New("boom")

	assert.ErrorIs(t, l.Do(context.Background(), func(context.Context) error { return boom }), boom)
	assert.ErrorIs(t, l.Do(context.Background(), func(context.Context) error { return nil }), ErrCircuitOpen)

	l = NewLimiter(1, nil)
	hold := make(chan struct{})
	go func() {
		_ = l.Do(context.Background(), func(context.Context) error {
			<-hold
			return nil
		})
	}()
	require.Eventually(t, func() bool { return l.CurrentActive() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Do(ctx, func(context.Context) error { return nil }), context.Canceled)
	assert.Equal(t, int64(1), l.Metrics().Rejected)
	close(hold)
}

type fetcherFunc func(context.Context, process.FetchRequest) (*process.FetchResponse, error)

func (f fetcherFunc) Fetch(ctx context.Context, req process.FetchRequest) (*process.FetchResponse, error) {
	return f(ctx, req)
}

type checkerFunc func(context.Context, process.UniqueQuery) (bool, error)

func (f checkerFunc) IsUnique(ctx context.Context, q process.UniqueQuery) (bool, error) {
	return f(ctx, q)
}

func TestGuards(t *testing.T) {
	l := NewLimiter(1, NewCircuitBreaker(1, time.Hour))

	f := GuardedFetcher{Limiter: l, Fetcher: fetcherFunc(func(context.Context, process.FetchRequest) (*process.FetchResponse, error) {
		return &process.FetchResponse{StatusCode: 500}, nil
	})}
	resp, err := f.Fetch(context.Background(), process.FetchRequest{})
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)

	c := GuardedUniqueChecker{Limiter: l, Checker: checkerFunc(func(context.Context, process.UniqueQuery) (bool, error) {
		return false, errors.New("down")
	})}
	_, err = c.IsUnique(context.Background(), process.UniqueQuery{})
	require.Error(t, err)

	_, err = f.Fetch(context.Background(), process.FetchRequest{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
