// Package engage provides the HTTP client for the engagement platform's
// REST API (contacts, opportunities, custom fields).
package engage

// SearchField selects the contact search filter key.
type SearchField string

const (
	// FieldEmail searches contacts by exact email match.
	FieldEmail SearchField = "email"
	// FieldPhone searches contacts by exact phone match.
	FieldPhone SearchField = "phone"
)

// Opportunity is a remote opportunity. It belongs to exactly one pipeline;
// PipelineStageID and Status are the two orthogonal state dimensions the
// reconciler corrects.
type Opportunity struct {
	ID              string `json:"id"`
	PipelineID      string `json:"pipelineId"`
	PipelineStageID string `json:"pipelineStageId"`
	Status          string `json:"status"`
	ContactID       string `json:"contactId"`
	LastStageChange string `json:"lastStageChangeAt"`
	UpdatedAt       string `json:"updatedAt"`
}

// CustomField is one id/value pair on a contact.
type CustomField struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Contact is a remote contact with its embedded opportunity list as the
// search endpoint returns it.
type Contact struct {
	ID            string        `json:"id"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	Source        string        `json:"source"`
	Opportunities []Opportunity `json:"opportunities"`
	CustomFields  []CustomField `json:"customFields"`

	AttributionSource struct {
		Source string `json:"source"`
		Medium string `json:"medium"`
	} `json:"attributionSource"`
}

// CustomFieldValue returns the cached value of a custom field, or "" when the
// contact does not carry it.
func (c Contact) CustomFieldValue(fieldID string) string {
	for _, cf := range c.CustomFields {
		if cf.ID == fieldID {
			return cf.Value
		}
	}
	return ""
}

// OpportunityInPipeline returns the first embedded opportunity belonging to
// the given pipeline, in the order the remote system returned them.
func (c Contact) OpportunityInPipeline(pipelineID string) *Opportunity {
	for i := range c.Opportunities {
		if c.Opportunities[i].PipelineID == pipelineID {
			return &c.Opportunities[i]
		}
	}
	return nil
}

// CallStats counts remote calls per kind during a single client lifetime.
// Clients are constructed per run, so the counters are run-scoped.
type CallStats struct {
	ContactsSearch int `json:"contacts_search"`
	OppsSearch     int `json:"opps_search"`
	PutOpp         int `json:"put_opp"`
	PutContact     int `json:"put_contact"`
}
