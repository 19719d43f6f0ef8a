// The apiserver binary serves the EquityLens HTTP API.  It wires the full
// assessment stack from configuration, runs database migrations on startup
// and shuts down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/EquityLens/internal/bootstrap"
	"github.com/turtacn/EquityLens/internal/config"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	httpiface "github.com/turtacn/EquityLens/internal/interfaces/http"
)

const defaultShutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the configuration file; environment variables are used when empty")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}

	log, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: init logger: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.Error("apiserver exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log, bootstrap.Options{EnqueueOnSubmit: true})
	if err != nil {
		return err
	}
	defer app.Close()

	router := httpiface.NewRouter(cfg.Server, httpiface.RouterDeps{
		Service:        app.Service,
		Logger:         log,
		Observer:       app.Metrics,
		MetricsHandler: app.Metrics.Handler(),
		HealthChecks:   app.HealthChecks(),
	})
	srv := httpiface.NewServer(cfg.Server, router, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info("apiserver started",
		logging.Int("port", cfg.Server.Port),
		logging.String("mode", cfg.Server.Mode),
		logging.Bool("queued_assessments", len(cfg.Kafka.Brokers) > 0),
		logging.Bool("milvus", cfg.Milvus.Enabled),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining connections")
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
