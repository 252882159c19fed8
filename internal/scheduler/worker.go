package scheduler

import (
	"context"
	"fmt"

	"crmsync_backend/internal/syncrun"
	"crmsync_backend/platform/apperr"
	"crmsync_backend/platform/config"
	"crmsync_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner *syncrun.Runner
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner *syncrun.Runner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 1
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		runner: runner,
		log:    log,
	}

	mux.HandleFunc(TaskSyncRun, w.handleSyncRun)

	return w, nil
}

func (w *Worker) handleSyncRun(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSyncRunPayload(task)
	if err != nil {
		return err
	}

	result, err := w.runner.RunJob(ctx, payload.Job, payload.SinceDate)
	if err != nil {
		// Another process holds the lock for this scope; the next tick
		// will pick the work up. Not a task failure.
		if apperr.Is(err, apperr.KindLockBusy) {
			w.log.Info("sync run skipped, lock busy", "job", payload.Job)
			return nil
		}
		w.log.Error("sync run failed", "job", payload.Job, "error", err)
		return err
	}

	w.log.Info("sync run finished",
		"job", payload.Job,
		"changes_found", result.ChangesFound,
		"updates_done", result.UpdatesDone,
		"errors_target", result.ErrorsTarget,
		"elapsed_ms", result.ElapsedMs)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
