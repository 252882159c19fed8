package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"crmsync_backend/internal/syncrun"
	"crmsync_backend/platform/apperr"
	"crmsync_backend/platform/config"
	"crmsync_backend/platform/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	job := flag.String("job", "", "tenant job name from the tenants file")
	projectID := flag.Int("proyecto_id", 0, "source CRM project id, must match the job's configured id")
	sinceDate := flag.String("since_date", "", "only consider records created on or after this date (YYYY-MM-DD)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 1
	}

	// Logs go to stderr so the run summary on stdout stays parseable.
	log := logger.NewStderr(cfg.Env)

	if *job == "" {
		log.Error("missing required flag --job")
		return 1
	}
	if err := cfg.ValidateSync(); err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	runner, err := syncrun.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize runner", "error", err)
		return 1
	}

	tenant, err := runner.Tenant(*job)
	if err != nil {
		log.Error("unknown job", "job", *job, "error", err)
		return 1
	}

	// The project id is fixed per job; requiring it on the command line
	// guards against calling the wrong job from a cron entry.
	if *projectID != 0 && *projectID != tenant.ProjectID {
		log.Error("proyecto_id does not match job configuration",
			"job", *job, "got", *projectID, "want", tenant.ProjectID)
		return 1
	}

	result, err := runner.RunJob(context.Background(), *job, *sinceDate)
	if err != nil {
		if apperr.Is(err, apperr.KindLockBusy) {
			log.Info("sync already running for this lock scope", "job", *job)
			printJSON(map[string]any{"ok": true, "skipped": "lock_busy", "job": *job})
			return 0
		}
		log.Error("sync run failed", "job", *job, "error", err)
		printJSON(map[string]any{"ok": false, "error": err.Error(), "job": *job})
		return apperr.GetExitCode(err)
	}

	printJSON(result)
	if !result.OK {
		log.Warn("sync finished with target errors",
			"job", *job, "errors_target", result.ErrorsTarget)
	}
	return 0
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
