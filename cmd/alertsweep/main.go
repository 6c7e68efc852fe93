// Command alertsweep scans every approved pharmacy for inventory alerts. It is
// meant to run from a scheduler, e.g. once a day.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"geopharm/internal/config"
	"geopharm/internal/database"
	"geopharm/internal/logger"
	"geopharm/internal/repository"
	"geopharm/internal/server"
	"geopharm/internal/service"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Alert sweep failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Alerts.SweepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Alerts.SweepTimeout)
		defer cancel()
	}

	dbService, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	defer dbService.Close()

	notifier, err := server.NewNotifier(cfg.RabbitMQ, log)
	if err != nil {
		return err
	}
	if c, ok := notifier.(io.Closer); ok {
		defer c.Close()
	}

	db := dbService.DB()
	engine := service.NewAlertEngine(
		repository.NewInventoryRepository(db),
		repository.NewAlertRepository(db),
		notifier,
		cfg.Alerts.ExpiryWindowDays,
		log,
	)
	sweeper := service.NewAlertSweeper(repository.NewPharmacyRepository(db), engine, log)

	_, err = sweeper.Run(ctx)
	return err
}
