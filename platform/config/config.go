// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// SourceCRMConfig provides settings for the source CRM read API.
type SourceCRMConfig interface {
	GetSourceBaseURL() string
	GetSourceToken() string
	GetSourceTimeout() time.Duration
}

// EngagementConfig provides settings for the engagement platform API.
type EngagementConfig interface {
	GetEngageBaseURL() string
	GetEngageAPIVersion() string
	GetEngageToken(tokenEnv string) string
	GetEngageTimeout() time.Duration
}

// StateConfig provides settings for snapshot and lock files.
type StateConfig interface {
	GetStateDir() string
	GetTenantsFile() string
}

// HTTPConfig provides settings for the webhook forwarder HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// WebhookConfig provides settings for forwarding inbound leads onward.
type WebhookConfig interface {
	GetSourceCatchURL() string
	GetSourceToken() string
	GetWebhookSecret() string
	GetRoutingFile() string
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSyncCronSpec() string
}

// AdPlatformConfig provides settings for the conversion backfill.
type AdPlatformConfig interface {
	GetAdsGraphURL() string
	GetAdsDatasetID() string
	GetAdsToken() string
	GetAdsDaysBack() int
	GetAdsPipelineID() string
	GetAdsAppointmentStageID() string
	GetAdsVisitStageID() string
	GetAdsLocationID() string
	GetAdsEngageTokenEnv() string
	GetAdsProjectID() int
	GetAdsProjectName() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env string

	SourceBaseURL  string
	SourceToken    string
	SourceCatchURL string
	SourceTimeout  time.Duration

	EngageBaseURL    string
	EngageAPIVersion string
	EngageToken      string
	EngageTimeout    time.Duration

	StateDir    string
	TenantsFile string

	HTTPAddr     string
	CORSAllowAll bool
	CORSOrigins  []string

	WebhookSecret string
	RoutingFile   string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	SyncCronSpec     string

	AdsGraphURL           string
	AdsDatasetID          string
	AdsToken              string
	AdsDaysBack           int
	AdsPipelineID         string
	AdsAppointmentStageID string
	AdsVisitStageID       string
	AdsLocationID         string
	AdsEngageTokenEnv     string
	AdsProjectID          int
	AdsProjectName        string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// SourceCRMConfig implementation
func (c *Config) GetSourceBaseURL() string         { return c.SourceBaseURL }
func (c *Config) GetSourceToken() string           { return c.SourceToken }
func (c *Config) GetSourceTimeout() time.Duration  { return c.SourceTimeout }

// EngagementConfig implementation
func (c *Config) GetEngageBaseURL() string        { return c.EngageBaseURL }
func (c *Config) GetEngageAPIVersion() string     { return c.EngageAPIVersion }
func (c *Config) GetEngageTimeout() time.Duration { return c.EngageTimeout }

// GetEngageToken resolves a per-tenant token env var, falling back to the
// shared ENGAGE_TOKEN when the tenant does not name its own.
func (c *Config) GetEngageToken(tokenEnv string) string {
	if tokenEnv != "" {
		if val := os.Getenv(tokenEnv); val != "" {
			return val
		}
	}
	return c.EngageToken
}

// StateConfig implementation
func (c *Config) GetStateDir() string    { return c.StateDir }
func (c *Config) GetTenantsFile() string { return c.TenantsFile }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// WebhookConfig implementation
func (c *Config) GetSourceCatchURL() string { return c.SourceCatchURL }
func (c *Config) GetWebhookSecret() string  { return c.WebhookSecret }
func (c *Config) GetRoutingFile() string    { return c.RoutingFile }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetSyncCronSpec() string   { return c.SyncCronSpec }

// AdPlatformConfig implementation
func (c *Config) GetAdsGraphURL() string           { return c.AdsGraphURL }
func (c *Config) GetAdsDatasetID() string          { return c.AdsDatasetID }
func (c *Config) GetAdsToken() string              { return c.AdsToken }
func (c *Config) GetAdsDaysBack() int              { return c.AdsDaysBack }
func (c *Config) GetAdsPipelineID() string         { return c.AdsPipelineID }
func (c *Config) GetAdsAppointmentStageID() string { return c.AdsAppointmentStageID }
func (c *Config) GetAdsVisitStageID() string       { return c.AdsVisitStageID }
func (c *Config) GetAdsLocationID() string         { return c.AdsLocationID }
func (c *Config) GetAdsEngageTokenEnv() string     { return c.AdsEngageTokenEnv }
func (c *Config) GetAdsProjectID() int             { return c.AdsProjectID }
func (c *Config) GetAdsProjectName() string        { return c.AdsProjectName }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),

		SourceBaseURL:  getEnv("SOURCE_CRM_BASE_URL", ""),
		SourceToken:    getEnv("SOURCE_CRM_TOKEN", ""),
		SourceCatchURL: getEnv("SOURCE_CRM_CATCH_URL", ""),
		SourceTimeout:  mustDuration(getEnv("SOURCE_CRM_TIMEOUT", "25s")),

		EngageBaseURL:    getEnv("ENGAGE_BASE_URL", "https://services.leadconnectorhq.com"),
		EngageAPIVersion: getEnv("ENGAGE_API_VERSION", "2021-07-28"),
		EngageToken:      getEnv("ENGAGE_TOKEN", ""),
		EngageTimeout:    mustDuration(getEnv("ENGAGE_TIMEOUT", "25s")),

		StateDir:    getEnv("STATE_DIR", "storage"),
		TenantsFile: getEnv("TENANTS_FILE", "tenants.json"),

		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		CORSAllowAll: strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true"),
		CORSOrigins:  splitCSV(getEnv("CORS_ORIGINS", "")),

		WebhookSecret: getEnv("WEBHOOK_SHARED_SECRET", ""),
		RoutingFile:   getEnv("ROUTING_FILE", "routing.json"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "sync"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "1")),
		SyncCronSpec:     getEnv("SYNC_CRON_SPEC", "*/15 * * * *"),

		AdsGraphURL:           getEnv("ADS_GRAPH_URL", "https://graph.facebook.com/v18.0"),
		AdsDatasetID:          getEnv("ADS_DATASET_ID", ""),
		AdsToken:              getEnv("ADS_TOKEN", ""),
		AdsDaysBack:           mustInt(getEnv("ADS_DAYS_BACK", "7")),
		AdsPipelineID:         getEnv("ADS_PIPELINE_ID", ""),
		AdsAppointmentStageID: getEnv("ADS_STAGE_APPOINTMENT_ID", ""),
		AdsVisitStageID:       getEnv("ADS_STAGE_VISIT_ID", ""),
		AdsLocationID:         getEnv("ADS_LOCATION_ID", ""),
		AdsEngageTokenEnv:     getEnv("ADS_ENGAGE_TOKEN_ENV", ""),
		AdsProjectID:          mustInt(getEnv("ADS_PROJECT_ID", "0")),
		AdsProjectName:        getEnv("ADS_PROJECT_NAME", ""),
	}

	if cfg.SourceTimeout <= 0 || cfg.EngageTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be positive durations")
	}

	return cfg, nil
}

// ValidateSync checks the settings a stage-sync run cannot start without.
func (c *Config) ValidateSync() error {
	if c.SourceBaseURL == "" {
		return fmt.Errorf("SOURCE_CRM_BASE_URL is required")
	}
	return nil
}

// ValidateWebhook checks the settings the webhook forwarder requires.
func (c *Config) ValidateWebhook() error {
	if c.SourceCatchURL == "" {
		return fmt.Errorf("SOURCE_CRM_CATCH_URL is required")
	}
	return nil
}

// ValidateScheduler checks the settings the scheduler requires.
func (c *Config) ValidateScheduler() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	return nil
}

// ValidateAds checks the settings the conversion backfill requires.
func (c *Config) ValidateAds() error {
	switch {
	case c.AdsDatasetID == "":
		return fmt.Errorf("ADS_DATASET_ID is required")
	case c.AdsToken == "":
		return fmt.Errorf("ADS_TOKEN is required")
	case c.AdsPipelineID == "":
		return fmt.Errorf("ADS_PIPELINE_ID is required")
	case c.AdsAppointmentStageID == "" || c.AdsVisitStageID == "":
		return fmt.Errorf("ADS_STAGE_APPOINTMENT_ID and ADS_STAGE_VISIT_ID are required")
	case c.AdsLocationID == "":
		return fmt.Errorf("ADS_LOCATION_ID is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
