package reconcile

// StatusOpen is the implicit status for mapped non-terminal stages when the
// tenant derives a default status.
const StatusOpen = "open"

// MappingResult is the target representation of a source stage code. Either
// field may be empty; both empty means the stage is not actionable.
type MappingResult struct {
	StageID string
	Status  string
}

// Empty reports whether the stage has no target representation at all.
func (m MappingResult) Empty() bool {
	return m.StageID == "" && m.Status == ""
}

// StageMapper maps source stage codes to engagement-platform stage ids and
// terminal statuses. Mapping tables are static per-tenant configuration.
type StageMapper struct {
	stages      map[int]string
	statuses    map[int]string
	defaultOpen bool
}

// NewStageMapper builds a mapper from a tenant's mapping tables. When
// defaultOpen is set, any stage with a mapped target stage and no explicit
// status is given status "open", so a lead moved back from a terminal stage
// is reopened on the next run.
func NewStageMapper(stages map[int]string, statuses map[int]string, defaultOpen bool) *StageMapper {
	return &StageMapper{stages: stages, statuses: statuses, defaultOpen: defaultOpen}
}

// Map returns the target representation for a stage code. Pure and total:
// unmapped codes yield an empty result.
func (m *StageMapper) Map(stageID int) MappingResult {
	result := MappingResult{
		StageID: m.stages[stageID],
		Status:  m.statuses[stageID],
	}

	if m.defaultOpen && result.StageID != "" && result.Status == "" {
		result.Status = StatusOpen
	}

	return result
}
