package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"crmsync_backend/internal/scheduler"
	"crmsync_backend/internal/syncrun"
	"crmsync_backend/platform/config"
	"crmsync_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if err := cfg.ValidateScheduler(); err != nil {
		log.Error("invalid configuration", "error", err)
		panic("invalid configuration: " + err.Error())
	}
	if err := cfg.ValidateSync(); err != nil {
		log.Error("invalid configuration", "error", err)
		panic("invalid configuration: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := syncrun.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize runner", "error", err)
		panic("failed to initialize runner: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, runner.Jobs(), log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}
	go func() {
		<-ctx.Done()
		periodic.Shutdown()
	}()
	go func() {
		if err := periodic.Run(); err != nil {
			log.Error("periodic scheduler stopped", "error", err)
		}
	}()

	worker, err := scheduler.NewWorker(cfg, runner, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}
