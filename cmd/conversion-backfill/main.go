package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"crmsync_backend/internal/adsync"
	"crmsync_backend/internal/engage"
	"crmsync_backend/platform/config"
	"crmsync_backend/platform/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	log := logger.NewStderr(cfg.Env)

	if err := cfg.ValidateAds(); err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	token := cfg.GetEngageToken(cfg.GetAdsEngageTokenEnv())
	if token == "" {
		log.Error("no engagement token configured for the backfill")
		return 1
	}

	log.Info("starting conversion backfill",
		"project_id", cfg.GetAdsProjectID(),
		"pipeline_id", cfg.GetAdsPipelineID(),
		"days_back", cfg.GetAdsDaysBack())

	reader := engage.New(cfg, token, cfg.GetAdsLocationID(), log)
	sender := adsync.NewClient(cfg, log)
	registry := adsync.LoadRegistry(cfg.GetStateDir(), registryName(cfg.GetAdsProjectName()))

	backfill := adsync.NewBackfill(cfg, reader, sender, registry, log)
	summary, err := backfill.Run(context.Background())
	if err != nil {
		log.Error("backfill failed", "error", err)
		printJSON(map[string]any{"ok": false, "error": err.Error()})
		return 1
	}

	log.Info("backfill finished",
		"sent", summary.Sent, "skipped", summary.Skipped, "failed", summary.Failed)
	printJSON(map[string]any{
		"ok":      summary.Failed == 0,
		"sent":    summary.Sent,
		"skipped": summary.Skipped,
		"failed":  summary.Failed,
	})
	return 0
}

func registryName(projectName string) string {
	name := strings.ToLower(strings.TrimSpace(projectName))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" {
		return "default"
	}
	return name
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
