package reconcile

import (
	"context"
	"sort"
	"strconv"
	"time"

	"crmsync_backend/platform/logger"
	"crmsync_backend/platform/phone"
)

// Reconciler drives one tenant's sync run. For every known record it decides
// whether the engagement platform needs corrective writes and issues them.
// The target converges toward the source's mapped state on every run,
// regardless of why it drifted.
type Reconciler struct {
	tenant  TenantConfig
	mapper  *StageMapper
	matcher *Matcher
	api     EngagementAPI
	log     *logger.Logger
}

// New builds a reconciler for one tenant.
func New(tenant TenantConfig, api EngagementAPI, log *logger.Logger) *Reconciler {
	scoped := log.WithTenant(tenant.Job, tenant.ProjectID)
	return &Reconciler{
		tenant:  tenant,
		mapper:  tenant.Mapper(),
		matcher: NewMatcher(api, tenant, scoped),
		api:     api,
		log:     scoped,
	}
}

// Run processes the full source dataset against the snapshot map. byClave is
// mutated in place; every evaluated record advances its snapshot no matter
// how its reconciliation went, so the same transition is never re-alerted.
// Records are processed in ascending clave order to keep audit output and
// snapshot diffs deterministic across runs.
func (r *Reconciler) Run(ctx context.Context, records []SourceRecord, since time.Time, byClave map[string]Snapshot) RunResult {
	startedAt := time.Now()

	result := RunResult{
		OK:                 true,
		ProjectID:          r.tenant.ProjectID,
		SinceDate:          since.Format("2006-01-02"),
		TotalSource:        len(records),
		StateEntriesBefore: len(byClave),
		Changes:            []Change{},
	}

	sorted := make([]SourceRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return claveOrdinal(sorted[i].Clave) < claveOrdinal(sorted[j].Clave)
	})

	for _, rec := range sorted {
		createdAt, ok := ParseSourceTime(rec.CreatedAt)
		if !ok || createdAt.Before(since) {
			continue
		}
		result.ObservedCreatedSince++

		if rec.Clave == "" {
			continue
		}

		r.reconcileRecord(ctx, rec, byClave, &result)
	}

	result.StateEntriesAfter = len(byClave)
	result.ElapsedMs = time.Since(startedAt).Milliseconds()
	return result
}

func (r *Reconciler) reconcileRecord(ctx context.Context, rec SourceRecord, byClave map[string]Snapshot, result *RunResult) {
	clave := rec.Clave
	cur := SnapshotOf(rec)

	// The snapshot always advances to the latest observed value, even when
	// this record's reconciliation is skipped or fails partway.
	defer func() {
		byClave[clave] = cur
	}()

	var prev *Snapshot
	if p, seen := byClave[clave]; seen {
		prev = &p
	}

	class := Classify(prev, rec)
	if class == ClassNew {
		// First sighting: record it, act next run. Avoids a write burst
		// when a historical backlog enters the state file.
		return
	}

	mapping := r.mapper.Map(int(cur.StageID))
	changed := class == ClassChanged

	if changed {
		result.ChangesFound++
		change := Change{
			Clave:          clave,
			SourceRecordID: cur.SourceRecordID,
			From:           StageRef{StageID: &prev.StageID, StageLabel: prev.StageLabel},
			To:             StageRef{StageID: &cur.StageID, StageLabel: cur.StageLabel},
			Email:          cur.Email,
			Phone:          cur.Phone,
		}
		if mapping.StageID == "" && mapping.Status != "" {
			change.TargetStatus = mapping.Status
		}
		result.Changes = append(result.Changes, change)
	}

	if mapping.Empty() {
		if changed {
			result.SkippedNoMap++
			r.log.SkipRecord(clave, "no_map",
				"stage_id", int(cur.StageID), "stage", cur.StageLabel)
		}
		return
	}

	// Reconciliation is attempted for every known record with a mapping,
	// not only when the source changed: a manual edit in the target system
	// must be reverted on the very next run.
	res := r.matcher.Resolve(ctx, clave, cur.Email, phone.NormalizeLegacy(cur.Phone))

	if res.Contact == nil {
		result.SkippedNoContact++
		r.log.SkipRecord(clave, "no_contact", "detail", res.Reason, "email", cur.Email)
		return
	}
	if res.Contact.ID == "" {
		result.SkippedNoContact++
		r.log.SkipRecord(clave, "no_contact_id", "email", cur.Email)
		return
	}
	if res.Opportunity == nil {
		result.SkippedNoOpp++
		r.log.SkipRecord(clave, "no_opp",
			"contact_id", res.Contact.ID, "pipeline_id", r.tenant.PipelineID)
		return
	}
	if res.Opportunity.ID == "" {
		result.SkippedNoOpp++
		r.log.SkipRecord(clave, "no_opp_id", "contact_id", res.Contact.ID)
		return
	}

	opp := res.Opportunity
	needsStage := mapping.StageID != "" && opp.PipelineStageID != mapping.StageID
	needsStatus := mapping.Status != "" && opp.Status != mapping.Status
	tagValue := r.tenant.TagValue(int(cur.StageID), cur.StageLabel)

	if !needsStage && !needsStatus {
		result.SkippedAligned++

		if !r.tenant.WritesTag() {
			return
		}
		if r.tenant.TagChecksAligned && res.Contact.CustomFieldValue(r.tenant.CustomFieldID) == tagValue {
			// Fully aligned, nothing to write at all.
			return
		}

		r.writeTag(ctx, clave, res.Contact.ID, tagValue, result)
		return
	}

	// Stage and status writes are independent; a failure in one never
	// suppresses the other. Retry is implicit via the next scheduled run.
	if needsStage {
		if err := r.api.UpdateOpportunityStage(ctx, opp.ID, mapping.StageID); err != nil {
			result.ErrorsTarget++
		} else {
			result.UpdatesDone++
			r.log.Info("opportunity stage reconciled",
				"clave", clave, "opp_id", opp.ID, "stage_id", mapping.StageID)
		}
	}

	if needsStatus {
		if err := r.api.UpdateOpportunityStatus(ctx, opp.ID, mapping.Status); err != nil {
			result.ErrorsTarget++
		} else {
			result.UpdatesDone++
			r.log.Info("opportunity status reconciled",
				"clave", clave, "opp_id", opp.ID, "status", mapping.Status)
		}
	}

	if r.tenant.WritesTag() {
		r.writeTag(ctx, clave, res.Contact.ID, tagValue, result)
	}
}

func (r *Reconciler) writeTag(ctx context.Context, clave, contactID, tagValue string, result *RunResult) {
	if err := r.api.UpdateContactCustomField(ctx, contactID, r.tenant.CustomFieldID, tagValue); err != nil {
		result.ErrorsTarget++
		return
	}
	result.UpdatesDone++
	r.log.Info("contact stage tag updated",
		"clave", clave, "contact_id", contactID, "value", tagValue)
}

func claveOrdinal(clave string) int {
	n, err := strconv.Atoi(clave)
	if err != nil {
		return 0
	}
	return n
}

var sourceTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseSourceTime parses the timestamp formats the source CRM emits.
func ParseSourceTime(value string) (time.Time, bool) {
	for _, layout := range sourceTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
