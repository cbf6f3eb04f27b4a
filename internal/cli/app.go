package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/internal/config"
	"github.com/wehubfusion/Daedalus/internal/reporting"
	"github.com/wehubfusion/Daedalus/internal/tracing"
	"github.com/wehubfusion/Daedalus/pkg/client"
	"github.com/wehubfusion/Daedalus/pkg/concurrency"
	"github.com/wehubfusion/Daedalus/pkg/evaluator"
	"github.com/wehubfusion/Daedalus/pkg/fetcher"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

// app holds the collaborators built from one configuration.
type app struct {
	cfg         *config.Config
	concurrency *concurrency.Config
	logger      *zap.Logger
	evaluator   *evaluator.Evaluator
	client      *client.Client
	reporter    *reporting.Reporter
	options     process.Options
	shutdown    func(context.Context) error
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := cfg.BuildLogger()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, concurrency: concurrency.LoadConfig()}

	a.shutdown, err = tracing.SetupTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	if a.reporter, err = reporting.New(cfg.Reporting, logger.Named("reporting")); err != nil {
		a.close()
		return nil, err
	}

	ec, err := cfg.EvaluatorConfig()
	if err != nil {
		a.close()
		return nil, err
	}
	if a.evaluator, err = evaluator.New(ec, logger.Named("evaluator")); err != nil {
		a.close()
		return nil, err
	}

	if cfg.UsesNATS() {
		a.client = client.NewClientWithConfig(&cfg.NATS, cfg.Subject)
		a.client.SetLogger(logger.Named("nats"))
		if err := a.client.Connect(ctx); err != nil {
			a.close()
			return nil, err
		}
	}

	limiter := concurrency.NewLimiter(a.concurrency.MaxInFlight,
		concurrency.NewCircuitBreaker(a.concurrency.BreakerFailures, 0))

	a.options = process.Options{
		Server:    cfg.Process.Server,
		Language:  cfg.Process.Language,
		FormID:    cfg.Process.FormID,
		Logger:    logger,
		Evaluator: a.evaluator,
	}
	switch cfg.Fetch {
	case config.BackendHTTP:
		a.options.Fetcher = concurrency.GuardedFetcher{
			Fetcher: fetcher.NewHTTP(nil, cfg.HTTP, logger.Named("fetcher")),
			Limiter: limiter,
		}
	case config.BackendNATS:
		a.options.Fetcher = concurrency.GuardedFetcher{Fetcher: a.client, Limiter: limiter}
	}
	if cfg.Unique == config.BackendNATS {
		a.options.UniqueChecker = concurrency.GuardedUniqueChecker{Checker: a.client, Limiter: limiter}
	}

	logger.Debug("Configuration loaded",
		zap.String("fetch", cfg.Fetch),
		zap.String("unique", cfg.Unique),
		zap.String("policy", cfg.Evaluator.Policy),
		zap.Stringer("concurrency", a.concurrency))
	return a, nil
}

func (a *app) close() {
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.logger.Warn("Error closing NATS client", zap.Error(err))
		}
	}
	if a.evaluator != nil {
		_ = a.evaluator.Close()
	}
	if !a.reporter.Flush(2 * time.Second) {
		a.logger.Warn("Timed out flushing error reports")
	}
	_ = tracing.ShutdownTracing(a.shutdown, a.logger)
	_ = a.logger.Sync()
}
