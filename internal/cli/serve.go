package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/internal/nats"
	"github.com/wehubfusion/Daedalus/pkg/client"
	"github.com/wehubfusion/Daedalus/pkg/concurrency"
	"github.com/wehubfusion/Daedalus/pkg/runner"
)

type serveOptions struct {
	cfgPath string
	subject string
	queue   string
	workers int
	timeout time.Duration
}

func newServeCmd() *cobra.Command {
	opts := serveOptions{subject: runner.DefaultSubject, queue: "formproc", timeout: 30 * time.Second}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pipeline runs over NATS request/reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.cfgPath, "config", "", "config yaml path")
	fs.StringVar(&opts.subject, "subject", runner.DefaultSubject, "request subject")
	fs.StringVar(&opts.queue, "queue", "formproc", "queue group")
	fs.IntVar(&opts.workers, "workers", 0, "worker count (default from DAEDALUS_RUNNER_WORKERS or CPUs)")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-run timeout")
	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts.cfgPath)
	if err != nil {
		return err
	}
	defer a.close()

	undo := concurrency.InitializeForKubernetes(a.logger)
	defer undo()

	if a.client == nil {
		if a.cfg.NATS.URL == "" {
			return errors.New("serve requires nats.url")
		}
		a.client = client.NewClientWithConfig(&a.cfg.NATS, a.cfg.Subject)
		a.client.SetLogger(a.logger.Named("nats"))
		if err := a.client.Connect(ctx); err != nil {
			return err
		}
	}
	if !nats.IsConnected(a.client.Connection()) {
		return errors.New("NATS connection is not available")
	}

	workers := opts.workers
	if workers <= 0 {
		workers = a.concurrency.RunnerWorkers
	}
	r, err := runner.NewRunner(a.client.Connection(), runner.Config{
		Subject:        opts.subject,
		Queue:          opts.queue,
		Workers:        workers,
		ProcessTimeout: opts.timeout,
	}, a.options, a.logger.Named("runner"))
	if err != nil {
		return err
	}
	if a.reporter.Enabled() {
		r.SetReporter(a.reporter)
	}

	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("Shutting down", zap.Any("stats", a.client.Stats()))
	return nil
}
