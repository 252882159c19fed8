package scheduler

import (
	"fmt"

	"crmsync_backend/platform/config"
	"crmsync_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic registers one recurring sync task per configured job and runs
// the asynq cron scheduler. The worker side still takes the per-scope run
// lock, so overlapping ticks degrade to no-ops instead of double runs.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, jobs []string, log *logger.Logger) (*Periodic, error) {
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

	sched := asynq.NewScheduler(opt, nil)

	for _, job := range jobs {
		task, err := NewSyncRunTask(SyncRunPayload{Job: job})
		if err != nil {
			return nil, err
		}
		entryID, err := sched.Register(cfg.GetSyncCronSpec(), task, asynq.Queue(queue))
		if err != nil {
			return nil, fmt.Errorf("register periodic sync for %s: %w", job, err)
		}
		log.Info("periodic sync registered", "job", job, "cron", cfg.GetSyncCronSpec(), "entry_id", entryID)
	}

	return &Periodic{scheduler: sched, log: log}, nil
}

// Run starts the cron scheduler and blocks until it stops.
func (p *Periodic) Run() error {
	return p.scheduler.Run()
}

// Shutdown stops the cron scheduler.
func (p *Periodic) Shutdown() {
	p.scheduler.Shutdown()
}
