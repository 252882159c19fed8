// Package reconcile implements the stage reconciliation engine: it diffs the
// source CRM's current pipeline state against the last persisted snapshot,
// maps stage codes to the engagement platform's representation, resolves the
// remote contact/opportunity pair and issues corrective writes.
package reconcile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"crmsync_backend/internal/engage"
)

// FlexInt decodes JSON values that arrive as either a number or a numeric
// string. Snapshot files written by earlier versions serialized stage ids as
// strings, so both sides of a comparison must pass through this type.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var num int
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexInt(num)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		str = strings.TrimSpace(str)
		if str == "" {
			*f = 0
			return nil
		}
		parsed, err := strconv.Atoi(str)
		if err != nil {
			return err
		}
		*f = FlexInt(parsed)
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexInt", string(data))
}

// SourceRecord is one lead/opportunity row as fetched from the source CRM.
// Identity is Clave; the record is immutable once fetched and superseded by
// the next run's fetch.
type SourceRecord struct {
	Clave          string  `json:"clave"`
	StageID        FlexInt `json:"etapa_id"`
	StageLabel     string  `json:"etapa"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
	UpdatedBy      string  `json:"updated_by"`
	OwnerLabel     string  `json:"responsable"`
	Email          string  `json:"emails"`
	Phone          string  `json:"telefonos"`
	SourceRecordID FlexInt `json:"id"`
}

// Snapshot is the persisted last-observed projection of a source record,
// keyed by clave in the state file.
type Snapshot struct {
	StageID        FlexInt `json:"etapa_id"`
	StageLabel     string  `json:"etapa"`
	UpdatedBy      string  `json:"updated_by"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
	OwnerLabel     string  `json:"responsable"`
	Email          string  `json:"emails"`
	Phone          string  `json:"telefonos"`
	SourceRecordID FlexInt `json:"id"`
}

// SnapshotOf projects a freshly fetched record into its snapshot form.
func SnapshotOf(rec SourceRecord) Snapshot {
	updatedAt := rec.UpdatedAt
	if updatedAt == "" {
		updatedAt = rec.CreatedAt
	}
	return Snapshot{
		StageID:        rec.StageID,
		StageLabel:     rec.StageLabel,
		UpdatedBy:      rec.UpdatedBy,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      updatedAt,
		OwnerLabel:     rec.OwnerLabel,
		Email:          rec.Email,
		Phone:          rec.Phone,
		SourceRecordID: rec.SourceRecordID,
	}
}

// StageRef is a from/to stage reference in a change audit entry.
type StageRef struct {
	StageID    *FlexInt `json:"etapa_id"`
	StageLabel string   `json:"etapa"`
}

// Change is one audited source-side transition. Changes are recorded only
// when the source CRM itself moved, never for target-side drift corrections.
type Change struct {
	Clave          string   `json:"clave"`
	SourceRecordID FlexInt  `json:"source_record_id"`
	From           StageRef `json:"from"`
	To             StageRef `json:"to"`
	Email          string   `json:"email"`
	Phone          string   `json:"tel"`
	TargetStatus   string   `json:"target,omitempty"`
}

// RunResult is the run summary emitted as a single JSON object on stdout.
type RunResult struct {
	OK                   bool             `json:"ok"`
	ProjectID            int              `json:"proyecto_id"`
	SinceDate            string           `json:"since_date"`
	TotalSource          int              `json:"total_source"`
	ObservedCreatedSince int              `json:"observed_created_since"`
	StateEntriesBefore   int              `json:"state_entries_before"`
	StateEntriesAfter    int              `json:"state_entries_after"`
	ChangesFound         int              `json:"changes_found"`
	UpdatesDone          int              `json:"updates_done"`
	SkippedNoMap         int              `json:"skipped_no_map"`
	SkippedNoContact     int              `json:"skipped_no_contact"`
	SkippedNoOpp         int              `json:"skipped_no_opp"`
	SkippedAligned       int              `json:"skipped_aligned"`
	ErrorsTarget         int              `json:"errors_target"`
	ElapsedMs            int64            `json:"elapsed_ms"`
	Changes              []Change         `json:"changes"`
	APICalls             engage.CallStats `json:"api_calls"`
}
