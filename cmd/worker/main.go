// The worker binary drains the assessment request topics and executes the
// runs the apiserver enqueued.  It shares the full service graph with the
// apiserver but exposes no HTTP surface; operational visibility comes from
// structured logs.
//
// Besides consuming, the worker owns the similarity-match retention sweep:
// matches older than the configured window are archived on a fixed interval.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/EquityLens/internal/bootstrap"
	"github.com/turtacn/EquityLens/internal/config"
	"github.com/turtacn/EquityLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file; environment variables are used when empty")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}

	log, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: init logger: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.Error("worker exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logging.Logger) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation,
			"worker requires kafka.brokers; inline deployments do not need a worker process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log, bootstrap.Options{EnqueueOnSubmit: false})
	if err != nil {
		return err
	}
	defer app.Close()

	handler := func(ctx context.Context, reportID common.ID, reassess bool) error {
		_, err := app.Service.RunAssessment(ctx, reportID)
		return err
	}

	concurrency := cfg.Worker.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	consumers := make([]*kafka.Consumer, 0, concurrency)
	for i := 0; i < concurrency; i++ {
		c, err := kafka.NewConsumer(cfg.Kafka, cfg.Worker, handler, app.Producer, log.Named(fmt.Sprintf("consumer-%d", i)))
		if err != nil {
			return err
		}
		consumers = append(consumers, c)
	}

	log.Info("worker started",
		logging.Int("concurrency", concurrency),
		logging.String("group_id", cfg.Kafka.GroupID),
		logging.Duration("match_retention", cfg.Worker.MatchRetention),
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range consumers {
		c := c
		g.Go(func() error {
			defer c.Close()
			return c.Run(gctx)
		})
	}
	g.Go(func() error {
		return retentionSweep(gctx, app, cfg.Worker, log)
	})

	err = g.Wait()
	if ctx.Err() != nil {
		log.Info("shutdown signal received, worker stopped")
		return nil
	}
	return err
}

// retentionSweep periodically archives similarity matches older than the
// retention window.  Failures are logged and retried on the next tick; they
// never bring the worker down.
func retentionSweep(ctx context.Context, app *bootstrap.App, cfg config.WorkerConfig, log logging.Logger) error {
	if cfg.MatchRetention < 0 {
		log.Info("similarity-match retention sweep disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	interval := cfg.RetentionInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-cfg.MatchRetention)
			archived, err := app.Matches.ArchiveOlderThan(ctx, cutoff)
			if err != nil {
				log.Error("similarity-match retention sweep failed", logging.Err(err))
				continue
			}
			if archived > 0 {
				log.Info("archived similarity matches past retention",
					logging.Int64("archived", archived),
					logging.String("cutoff", cutoff.UTC().Format(time.RFC3339)),
				)
			}
		}
	}
}
