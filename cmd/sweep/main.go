// Команда sweep разово понижает просроченные подписки и сверяет счётчики отзывов.
// Запускается из cron, когда фоновые воркеры сервера выключены.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"reviewhub_backend/database"
	"reviewhub_backend/internal/config"
	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/services"
)

func main() {
	reconcile := flag.Bool("reconcile", true, "also recompute per-shop review counters")
	flag.Parse()

	cfg := config.GetConfig()
	logger.Init(cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	sweep := services.NewServiceContainer(services.Dependencies{}).BillingSweepService

	res, err := sweep.SweepExpired(ctx, db, time.Now().UTC())
	if err != nil {
		logger.Fatal("Sweep failed", "error", err)
	}
	logger.Info("Sweep finished", "downgraded", res.Downgraded)

	if *reconcile {
		rec, err := sweep.ReconcileCounters(ctx, db)
		if err != nil {
			logger.Fatal("Reconcile failed", "error", err)
		}
		logger.Info("Reconcile finished", "repaired", rec.Repaired)
	}
}
