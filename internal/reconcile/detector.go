package reconcile

// Classification is the change detector's verdict for one record.
type Classification int

const (
	// ClassNew means the clave has never been seen: record the snapshot,
	// take no reconciling action. This suppresses a burst of writes the
	// first time a historical backlog is fetched.
	ClassNew Classification = iota
	// ClassUnchanged means the source stage did not move since last run.
	ClassUnchanged
	// ClassChanged means stage id or label differs from the snapshot.
	ClassChanged
)

func (c Classification) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassUnchanged:
		return "unchanged"
	case ClassChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// Classify compares a record against its persisted snapshot. Stage ids are
// compared through FlexInt so a snapshot that serialized "31" as a string does
// not read as a change against a numeric 31.
func Classify(prev *Snapshot, cur SourceRecord) Classification {
	if prev == nil {
		return ClassNew
	}

	if prev.StageID != cur.StageID || prev.StageLabel != cur.StageLabel {
		return ClassChanged
	}

	return ClassUnchanged
}
