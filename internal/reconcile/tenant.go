package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// IntKeyMap is a map keyed by integer stage codes. JSON object keys are
// strings, so decoding parses each key back to its numeric form.
type IntKeyMap map[int]string

func (m *IntKeyMap) UnmarshalJSON(data []byte) error {
	raw := map[string]string{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(IntKeyMap, len(raw))
	for key, value := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("stage map key %q is not an integer", key)
		}
		out[id] = value
	}

	*m = out
	return nil
}

// TenantConfig parameterizes one sync job: which source project it reads,
// which engagement pipeline it writes, its mapping tables and its
// write-decision variants. The jobs differ only in this struct; there is a
// single reconciler code path.
type TenantConfig struct {
	// Job is the registry key, also used in log scoping.
	Job string `json:"-"`

	ProjectID  int    `json:"project_id"`
	LocationID string `json:"location_id"`
	PipelineID string `json:"pipeline_id"`

	// TokenEnv names the env var holding this tenant's engagement token.
	TokenEnv string `json:"token_env"`

	StageMap  IntKeyMap `json:"stage_map"`
	StatusMap IntKeyMap `json:"status_map"`

	// DefaultOpenStatus gives every mapped non-terminal stage an implicit
	// "open" status so terminal statuses are reverted when a lead moves back.
	DefaultOpenStatus bool `json:"default_open_status"`

	// CustomFieldID is the contact field echoing "project|stageId|stageLabel"
	// for audit. Empty disables the tag write entirely.
	CustomFieldID string `json:"custom_field_id"`

	// TagChecksAligned controls whether an already-aligned opportunity still
	// gets an unconditional tag write (false) or only when the contact's
	// cached tag value differs (true). Both behaviors exist in production
	// tenants; the intended semantics were never unified, so it stays a flag.
	TagChecksAligned bool `json:"tag_checks_aligned"`

	// PhoneFallback enables the phone-keyed contact search after an email
	// search finds nothing.
	PhoneFallback bool `json:"phone_fallback"`

	// OppSearchFallback enables the contactId+pipelineId opportunity search
	// when the contact carries no embedded opportunity in the pipeline.
	OppSearchFallback bool `json:"opp_search_fallback"`

	// LockScope names the lock file. Jobs that write the same pipeline share
	// a scope so a stage job and a terminal-status job never overlap.
	LockScope string `json:"lock_scope"`
}

// Mapper builds the tenant's stage mapper.
func (t TenantConfig) Mapper() *StageMapper {
	return NewStageMapper(t.StageMap, t.StatusMap, t.DefaultOpenStatus)
}

// WritesTag reports whether this tenant maintains the audit tag field.
func (t TenantConfig) WritesTag() bool {
	return t.CustomFieldID != ""
}

// TagValue is the audit value written to the contact custom field.
func (t TenantConfig) TagValue(stageID int, stageLabel string) string {
	return fmt.Sprintf("%d|%d|%s", t.ProjectID, stageID, stageLabel)
}

// Validate checks a tenant entry for the invariants the reconciler assumes.
func (t TenantConfig) Validate() error {
	switch {
	case t.ProjectID <= 0:
		return fmt.Errorf("tenant %s: project_id must be positive", t.Job)
	case t.LocationID == "":
		return fmt.Errorf("tenant %s: location_id is required", t.Job)
	case t.PipelineID == "":
		return fmt.Errorf("tenant %s: pipeline_id is required", t.Job)
	case len(t.StageMap) == 0 && len(t.StatusMap) == 0:
		return fmt.Errorf("tenant %s: at least one of stage_map or status_map is required", t.Job)
	}
	return nil
}

type tenantsFile struct {
	Tenants map[string]TenantConfig `json:"tenants"`
}

// LoadTenants reads the tenant registry from a JSON file. Lock scopes default
// to "project_<id>", which is what makes two jobs on the same project
// mutually exclusive unless a tenant opts out explicitly.
func LoadTenants(path string) (map[string]TenantConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenants file: %w", err)
	}

	var file tenantsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse tenants file: %w", err)
	}
	if len(file.Tenants) == 0 {
		return nil, fmt.Errorf("tenants file %s defines no tenants", path)
	}

	out := make(map[string]TenantConfig, len(file.Tenants))
	for job, tenant := range file.Tenants {
		tenant.Job = job
		if tenant.LockScope == "" {
			tenant.LockScope = fmt.Sprintf("project_%d", tenant.ProjectID)
		}
		if err := tenant.Validate(); err != nil {
			return nil, err
		}
		out[job] = tenant
	}

	return out, nil
}
