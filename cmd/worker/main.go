package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wolfman30/medtour-booking/cmd/mainconfig"
	"github.com/wolfman30/medtour-booking/internal/app/bootstrap"
	appconfig "github.com/wolfman30/medtour-booking/internal/config"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

// The worker runs the outbox deliverer and intake reminder worker without
// serving HTTP, for deployments that keep the API stateless.
func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting medtour-booking worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsClients, err := mainconfig.BuildAWSClients(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.BuildApp(cfg, bootstrap.Clients{
		Pool: pool,
		S3:   awsClients.S3,
		SES:  awsClients.SES,
		SQS:  awsClients.SQS,
	}, logger)
	if err != nil {
		logger.Error("failed to build app", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	app.StartWorkers(ctx).Wait()
	logger.Info("worker stopped")
}
