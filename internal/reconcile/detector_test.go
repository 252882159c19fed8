package reconcile

import (
	"encoding/json"
	"testing"
)

func TestClassify_NewWhenNoSnapshot(t *testing.T) {
	rec := SourceRecord{Clave: "100", StageID: 31}
	if got := Classify(nil, rec); got != ClassNew {
		t.Fatalf("expected new, got %s", got)
	}
}

func TestClassify_UnchangedAcrossNumericStringStageID(t *testing.T) {
	// A snapshot written by an older version stored etapa_id as a string.
	// That must not read as a stage change against numeric source data.
	var snap Snapshot
	if err := json.Unmarshal([]byte(`{"etapa_id":"31","etapa":"CONTACTADO"}`), &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}

	var rec SourceRecord
	if err := json.Unmarshal([]byte(`{"clave":"100","etapa_id":31,"etapa":"CONTACTADO"}`), &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}

	if got := Classify(&snap, rec); got != ClassUnchanged {
		t.Fatalf("expected unchanged, got %s", got)
	}
}

func TestClassify_ChangedOnStageID(t *testing.T) {
	snap := Snapshot{StageID: 31, StageLabel: "CONTACTADO"}
	rec := SourceRecord{Clave: "100", StageID: 32, StageLabel: "CONTACTADO"}

	if got := Classify(&snap, rec); got != ClassChanged {
		t.Fatalf("expected changed, got %s", got)
	}
}

func TestClassify_ChangedOnLabelOnly(t *testing.T) {
	snap := Snapshot{StageID: 31, StageLabel: "CONTACTADO"}
	rec := SourceRecord{Clave: "100", StageID: 31, StageLabel: "VISITADO"}

	if got := Classify(&snap, rec); got != ClassChanged {
		t.Fatalf("expected changed on label drift, got %s", got)
	}
}

func TestFlexInt_Decoding(t *testing.T) {
	cases := []struct {
		in   string
		want FlexInt
	}{
		{`31`, 31},
		{`"31"`, 31},
		{`" 31 "`, 31},
		{`""`, 0},
	}

	for _, tc := range cases {
		var got FlexInt
		if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("unmarshal %s: expected %d, got %d", tc.in, tc.want, got)
		}
	}

	var bad FlexInt
	if err := json.Unmarshal([]byte(`"abc"`), &bad); err == nil {
		t.Fatal("expected error for non-numeric string")
	}
}

func TestSnapshotOf_UpdatedAtFallsBackToCreatedAt(t *testing.T) {
	rec := SourceRecord{Clave: "1", CreatedAt: "2026-08-01 10:00:00"}
	snap := SnapshotOf(rec)
	if snap.UpdatedAt != rec.CreatedAt {
		t.Fatalf("expected updated_at fallback to created_at, got %q", snap.UpdatedAt)
	}
}
