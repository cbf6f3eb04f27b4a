package concurrency

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/process"
)

// GuardedFetcher routes Fetch calls through a Limiter.
type GuardedFetcher struct {
	Fetcher process.Fetcher
	Limiter *Limiter
}

// Fetch implements process.Fetcher. Transport errors count against the
// breaker; error statuses do not.
func (g GuardedFetcher) Fetch(ctx context.Context, req process.FetchRequest) (*process.FetchResponse, error) {
	var resp *process.FetchResponse
	err := g.Limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = g.Fetcher.Fetch(ctx, req)
		return err
	})
	return resp, err
}

// GuardedUniqueChecker routes IsUnique calls through a Limiter.
type GuardedUniqueChecker struct {
	Checker process.UniqueChecker
	Limiter *Limiter
}

// IsUnique implements process.UniqueChecker.
func (g GuardedUniqueChecker) IsUnique(ctx context.Context, q process.UniqueQuery) (bool, error) {
	var unique bool
	err := g.Limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		unique, err = g.Checker.IsUnique(ctx, q)
		return err
	})
	return unique, err
}
