package webhook

import "strings"

// LeadPayload is the inbound webhook body sent by the engagement platform's
// workflow automation when a new lead is captured.
type LeadPayload struct {
	ContactID     string `json:"contact_id"`
	FullName      string `json:"full_name" validate:"required,min=1,max=200"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone"`
	Platform      string `json:"platform"`
	ContactSource string `json:"contact_source"`
	UTMSource     string `json:"utm_source"`
	UTMMedium     string `json:"utm_medium"`
	UTMCampaign   string `json:"utm_campaign"`
	ClientType    string `json:"client_type"`
	ClientBudget  string `json:"client_budget"`
	ContactMethod string `json:"contact_method"`

	// Workflow-managed routing fields.
	ProjectIDRaw   string `json:"capisoft_id_project"`
	ManualPlatform string `json:"capisoft_platform"`
	ManualSource   string `json:"capisoft_manual_platform"`

	User    PayloadUser    `json:"user"`
	Contact PayloadContact `json:"contact"`
}

// PayloadUser carries the owning agent's identity.
type PayloadUser struct {
	Email string `json:"email"`
}

// PayloadContact carries the contact's first-touch attribution data.
type PayloadContact struct {
	AttributionSource struct {
		Source string `json:"source"`
		Medium string `json:"medium"`
	} `json:"attributionSource"`
}

// NormalizePlatform collapses the many spellings of an acquisition channel
// into a canonical value. Unrecognized non-empty values pass through
// lowercased so new channels show up in reports without a code change.
func NormalizePlatform(value string) string {
	s := strings.ToLower(strings.TrimSpace(value))

	switch s {
	case "fb", "facebook", "meta":
		return "facebook"
	case "ig", "insta", "instagram":
		return "instagram"
	case "google", "googleads", "gads":
		return "google"
	case "manual ghl", "manual_ghl", "ghl", "manual":
		return "Manual GHL"
	case "web", "landing":
		return s
	case "", "unknown":
		return "unknown"
	}
	return s
}

// DetectPlatform resolves the acquisition channel from the payload, in
// priority order: real first-touch attribution, then the workflow-managed
// fields, then explicit platform, then contact source.
func (p LeadPayload) DetectPlatform() string {
	candidates := []string{
		p.Contact.AttributionSource.Source,
		p.ManualPlatform,
		p.ManualSource,
		p.Platform,
		p.ContactSource,
	}
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return NormalizePlatform(c)
		}
	}
	return "unknown"
}
