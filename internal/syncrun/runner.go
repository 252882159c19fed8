// Package syncrun orchestrates one tenant sync run end to end: lock, state
// load, source fetch, reconciliation, state save. Both the CLI and the
// scheduled worker go through it.
package syncrun

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"crmsync_backend/internal/engage"
	"crmsync_backend/internal/reconcile"
	"crmsync_backend/internal/sourcecrm"
	"crmsync_backend/internal/statestore"
	"crmsync_backend/platform/apperr"
	"crmsync_backend/platform/config"
	"crmsync_backend/platform/logger"
)

var sinceDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Runner executes sync runs for configured tenants.
type Runner struct {
	cfg     *config.Config
	tenants map[string]reconcile.TenantConfig
	log     *logger.Logger
}

// New loads the tenant table and builds a runner.
func New(cfg *config.Config, log *logger.Logger) (*Runner, error) {
	tenants, err := reconcile.LoadTenants(cfg.GetTenantsFile())
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, tenants: tenants, log: log}, nil
}

// Tenant returns the tenant config for a job name.
func (r *Runner) Tenant(job string) (reconcile.TenantConfig, error) {
	tenant, ok := r.tenants[job]
	if !ok {
		return reconcile.TenantConfig{}, apperr.Config(fmt.Sprintf("unknown job %q", job))
	}
	return tenant, nil
}

// Jobs lists the configured job names.
func (r *Runner) Jobs() []string {
	jobs := make([]string, 0, len(r.tenants))
	for job := range r.tenants {
		jobs = append(jobs, job)
	}
	return jobs
}

// RunJob performs one full sync run for the named job. sinceDate must be
// YYYY-MM-DD or empty; when empty the run falls back to the date of the
// previous run, then to today. A concurrently held lock returns
// apperr.LockBusy without touching anything.
func (r *Runner) RunJob(ctx context.Context, job, sinceDate string) (reconcile.RunResult, error) {
	tenant, err := r.Tenant(job)
	if err != nil {
		return reconcile.RunResult{}, err
	}

	if sinceDate != "" && !sinceDateRe.MatchString(sinceDate) {
		return reconcile.RunResult{}, apperr.Config(fmt.Sprintf("since_date %q must be YYYY-MM-DD", sinceDate))
	}

	lock, err := statestore.AcquireRunLock(r.cfg.GetStateDir(), tenant.LockScope)
	if err != nil {
		return reconcile.RunResult{}, err
	}
	defer lock.Release()

	store := statestore.NewStore(r.cfg.GetStateDir(), tenant.Job)
	state := store.Load()

	since, err := resolveSince(sinceDate, state.LastRunAt)
	if err != nil {
		return reconcile.RunResult{}, err
	}

	log := r.log.WithTenant(tenant.Job, tenant.ProjectID)

	source := sourcecrm.New(r.cfg, log)
	records, err := source.FetchOpportunities(ctx, tenant.ProjectID)
	if err != nil {
		return reconcile.RunResult{}, err
	}

	token := r.cfg.GetEngageToken(tenant.TokenEnv)
	if token == "" {
		return reconcile.RunResult{}, apperr.Config(fmt.Sprintf("no engagement token for job %q", tenant.Job))
	}
	client := engage.New(r.cfg, token, tenant.LocationID, log)

	result := reconcile.New(tenant, client, r.log).Run(ctx, records, since, state.ByClave)
	result.APICalls = client.Stats()
	result.OK = result.ErrorsTarget == 0

	now := time.Now().UTC().Format(time.RFC3339)
	state.LastRunAt = &now
	if err := store.Save(state); err != nil {
		log.Error("state save failed", "path", store.Path(), "error", err)
		result.OK = false
	}

	return result, nil
}

func resolveSince(sinceDate string, lastRunAt *string) (time.Time, error) {
	if sinceDate != "" {
		t, err := time.Parse("2006-01-02", sinceDate)
		if err != nil {
			return time.Time{}, apperr.Config(fmt.Sprintf("invalid since_date %q", sinceDate))
		}
		return t, nil
	}

	if lastRunAt != nil {
		if t, err := time.Parse(time.RFC3339, *lastRunAt); err == nil {
			return t.UTC().Truncate(24 * time.Hour), nil
		}
	}

	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
}
