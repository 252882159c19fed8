package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse date %s: %v", value, err)
	}
	return parsed
}

func TestReconciler_StageChangeWritesStageAndTag(t *testing.T) {
	api := &fakeAPI{
		contactsByField: contactWithOpp("c1", "o1", "pipe-1", "stage-a", "open"),
	}
	r := New(testTenant(), api, testLogger())

	state := map[string]Snapshot{
		"100": {StageID: 31, StageLabel: "CONTACTADO"},
	}
	records := []SourceRecord{{
		Clave:      "100",
		StageID:    32,
		StageLabel: "VISITADO",
		CreatedAt:  "2026-08-10 12:00:00",
		Email:      "a@b.mx",
	}}

	result := r.Run(context.Background(), records, mustDate(t, "2026-08-01"), state)

	if result.ChangesFound != 1 {
		t.Fatalf("expected 1 change, got %d", result.ChangesFound)
	}
	if len(api.stageWrites) != 1 || api.stageWrites[0] != "o1:stage-b" {
		t.Fatalf("expected stage write o1:stage-b, got %v", api.stageWrites)
	}
	if len(api.statusWrites) != 0 {
		t.Fatalf("expected no status writes, got %v", api.statusWrites)
	}
	if len(api.tagWrites) != 1 || api.tagWrites[0] != "c1=3|32|VISITADO" {
		t.Fatalf("expected tag write, got %v", api.tagWrites)
	}
	if result.UpdatesDone != 2 {
		t.Fatalf("expected 2 updates (stage + tag), got %d", result.UpdatesDone)
	}
	if state["100"].StageID != 32 {
		t.Fatalf("expected snapshot advanced to 32, got %d", state["100"].StageID)
	}
	if len(result.Changes) != 1 || result.Changes[0].Clave != "100" {
		t.Fatalf("expected audit entry for clave 100, got %+v", result.Changes)
	}
}

func TestReconciler_FirstSightIsSuppressed(t *testing.T) {
	api := &fakeAPI{
		contactsByField: contactWithOpp("c1", "o1", "pipe-1", "stage-a", "open"),
	}
	r := New(testTenant(), api, testLogger())

	state := map[string]Snapshot{}
	records := []SourceRecord{{
		Clave:      "100",
		StageID:    32,
		StageLabel: "VISITADO",
		CreatedAt:  "2026-08-10 12:00:00",
		Email:      "a@b.mx",
	}}

	result := r.Run(context.Background(), records, mustDate(t, "2026-08-01"), state)

	if result.ChangesFound != 0 || len(api.stageWrites) != 0 || len(api.tagWrites) != 0 {
		t.Fatalf("expected no action on first sight, got %+v writes %v/%v",
			result, api.stageWrites, api.tagWrites)
	}
	if _, ok := state["100"]; !ok {
		t.Fatal("expected snapshot recorded on first sight")
	}
	if result.StateEntriesAfter != 1 {
		t.Fatalf("expected 1 state entry after, got %d", result.StateEntriesAfter)
	}
}

func TestReconciler_SecondRunIsIdempotent(t *testing.T) {
	// Remote already aligned and the cached tag matches: nothing to write.
	tenant := testTenant()
	tenant.TagChecksAligned = true

	api := &fakeAPI{
		contactsByField: contactWithOppAndTag("c1", "o1", "pipe-1", "stage-b", "open",
			"field-1", "3|32|VISITADO"),
	}
	r := New(tenant, api, testLogger())

	state := map[string]Snapshot{
		"100": {StageID: 32, StageLabel: "VISITADO"},
	}
	records := []SourceRecord{{
		Clave:      "100",
		StageID:    32,
		StageLabel: "VISITADO",
		CreatedAt:  "2026-08-10 12:00:00",
		Email:      "a@b.mx",
	}}

	result := r.Run(context.Background(), records, mustDate(t, "2026-08-01"), state)

	if result.SkippedAligned != 1 {
		t.Fatalf("expected aligned skip, got %+v", result)
	}
	if len(api.stageWrites)+len(api.statusWrites)+len(api.tagWrites) != 0 {
		t.Fatalf("expected zero writes, got %v/%v/%v",
			api.stageWrites, api.statusWrites, api.tagWrites)
	}
}

func TestReconciler_RevertsManualRemoteEdit(t *testing.T) {
	// Source unchanged since last run, but someone moved the remote
	// opportunity by hand. The run pushes it back.
	api := &fakeAPI{
		contactsByField: contactWithOpp("c1", "o1", "pipe-1", "stage-a", "open"),
	}
	r := New(testTenant(), api, testLogger())

	state := map[string]Snapshot{
		"100": {StageID: 32, StageLabel: "VISITADO"},
	}
	records := []SourceRecord{{
		Clave:      "100",
		StageID:    32,
		StageLabel: "VISITADO",
		CreatedAt:  "2026-08-10 12:00:00",
		Email:      "a@b.mx",
	}}

	result := r.Run(context.Background(), records, mustDate(t, "2026-08-01"), state)

	if result.ChangesFound != 0 {
		t.Fatalf("expected no source change, got %d", result.ChangesFound)
	}
	if len(api.stageWrites) != 1 || api.stageWrites[0] != "o1:stage-b" {
		t.Fatalf("expected corrective stage write, got %v", api.stageWrites)
	}
}

func TestReconciler_UnmappedStageIsAuditOnly(t *testing.T) {
	api := &fakeAPI{}
	r := New(testTenant(), api, testLogger())

	state := map[string]Snapshot{
		"100": {StageID: 31, StageLabel: "CONTACTADO"},
	}
	records := []SourceRecord{{
		Clave:      "100",
		StageID:    99,
		StageLabel: "RARO",
		CreatedAt:  "2026-08-10 12:00:00",
		Email:      "a@b.mx",
	}}

	result := r.Run(context.Background(), records, mustDate(t, "2026-08-01"), state)

	if result.ChangesFound != 1 || result.SkippedNoMap != 1 {
		t.Fatalf("expected audited no-map skip, got %+v", result)
	}
	if len(result.Changes) != 1 {
		t.Fatalf("expected audit entry, got %+v", result.Changes)
	}
	if len(api.searchCalls) != 0 {
		t.Fatal("expected no remote lookups for unmapped stage")
	}
	if state["100"].StageID != 99 {
		t.Fatal("expected snapshot advanced even without action")
	}
}

func TestReconciler_StageFailureDoesNotBlockStatusWrite(t *testing.T) {
	tenant := testTenant()
	tenant.StageMap = IntKeyMap{40: "stage-won"}
	tenant.StatusMap = IntKeyMap{40: "won"}
	tenant.CustomFieldID = ""

	api := &fakeAPI{
		contactsByField: contactWithOpp("c1", "o1", "pipe-1", "stage-a", "open"),
		stageWriteErr:   errors.New("boom"),
	}
	r := New(tenant, api, testLogger())

	state := map[string]Snapshot{
		"100": {StageID: 31, StageLabel: "CONTACTADO"},
	}
	records := []SourceRecord{{
		Clave:      "100",
		StageID:    40,
		StageLabel: "GANADO",
		CreatedAt:  "2026-08-10 12:00:00",
		Email:      "a@b.mx",
	}}

	result := r.Run(context.Background(), records, mustDate(t, "2026-08-01"), state)

	if result.ErrorsTarget != 1 {
		t.Fatalf("expected 1 target error, got %d", result.ErrorsTarget)
	}
	if len(api.statusWrites) != 1 || api.statusWrites[0] != "o1:won" {
		t.Fatalf("expected status write despite stage failure, got %v", api.statusWrites)
	}
	if result.UpdatesDone != 1 {
		t.Fatalf("expected 1 successful update, got %d", result.UpdatesDone)
	}
	if state["100"].StageID != 40 {
		t.Fatal("expected snapshot advanced despite partial failure")
	}
}

func TestReconciler_SinceFilterAndOrdering(t *testing.T) {
	api := &fakeAPI{}
	r := New(testTenant(), api, testLogger())

	state := map[string]Snapshot{}
	records := []SourceRecord{
		{Clave: "200", StageID: 31, CreatedAt: "2026-08-10 12:00:00"},
		{Clave: "90", StageID: 31, CreatedAt: "2026-08-10 12:00:00"},
		{Clave: "old", StageID: 31, CreatedAt: "2020-01-01 00:00:00"},
	}

	result := r.Run(context.Background(), records, mustDate(t, "2026-08-01"), state)

	if result.ObservedCreatedSince != 2 {
		t.Fatalf("expected 2 records inside window, got %d", result.ObservedCreatedSince)
	}
	if _, ok := state["old"]; ok {
		t.Fatal("expected pre-window record to be ignored")
	}
	if result.TotalSource != 3 {
		t.Fatalf("expected total_source 3, got %d", result.TotalSource)
	}
}

func TestReconciler_NoContactSkip(t *testing.T) {
	api := &fakeAPI{}
	r := New(testTenant(), api, testLogger())

	state := map[string]Snapshot{
		"100": {StageID: 31, StageLabel: "CONTACTADO"},
	}
	records := []SourceRecord{{
		Clave:      "100",
		StageID:    32,
		StageLabel: "VISITADO",
		CreatedAt:  "2026-08-10 12:00:00",
		Email:      "a@b.mx",
	}}

	result := r.Run(context.Background(), records, mustDate(t, "2026-08-01"), state)

	if result.SkippedNoContact != 1 {
		t.Fatalf("expected no-contact skip, got %+v", result)
	}
	if state["100"].StageID != 32 {
		t.Fatal("expected snapshot advanced on skip")
	}
}
