package reconcile

import (
	"context"
	"errors"

	"crmsync_backend/internal/engage"
	"crmsync_backend/platform/logger"
)

// EngagementAPI is the slice of the engagement platform client the
// reconciler needs. Satisfied by *engage.Client.
type EngagementAPI interface {
	SearchContacts(ctx context.Context, field engage.SearchField, value string) ([]engage.Contact, error)
	SearchPipelineOpportunity(ctx context.Context, contactID, pipelineID string) (*engage.Opportunity, error)
	UpdateOpportunityStage(ctx context.Context, opportunityID, stageID string) error
	UpdateOpportunityStatus(ctx context.Context, opportunityID, status string) error
	UpdateContactCustomField(ctx context.Context, contactID, fieldID, value string) error
}

// NotFound reason codes reported when resolution exhausts every strategy.
const (
	ReasonNoEmailOrPhone = "no_email_or_phone"
	ReasonHTTPError      = "http_error"
	ReasonParseError     = "parse_error"
	ReasonEmpty          = "empty"
)

// Resolution is the outcome of matching a source record to its remote
// counterpart. Contact may be present while Opportunity is nil: the contact
// exists but carries nothing in the tenant's pipeline.
type Resolution struct {
	Contact     *engage.Contact
	Opportunity *engage.Opportunity
	// Reason explains a nil Contact.
	Reason string
}

// Matcher resolves a source record to a target contact/opportunity pair
// using ordered fallback strategies.
type Matcher struct {
	api    EngagementAPI
	tenant TenantConfig
	log    *logger.Logger
}

// NewMatcher builds a matcher for one tenant.
func NewMatcher(api EngagementAPI, tenant TenantConfig, log *logger.Logger) *Matcher {
	return &Matcher{api: api, tenant: tenant, log: log}
}

// Resolve runs the lookup strategies in strict priority order, stopping at
// the first success:
//
//  1. email contact search, taking the first embedded opportunity in the
//     tenant's pipeline
//  2. if a contact was found without an embedded opportunity and the tenant
//     enables it, a direct opportunity search by contactId+pipelineId
//  3. if email found nothing and the tenant enables it, the same contact
//     search keyed on the normalized phone
//
// phoneNorm must already be normalized; Resolve never touches raw phone input.
func (m *Matcher) Resolve(ctx context.Context, clave, email, phoneNorm string) Resolution {
	if email == "" && (phoneNorm == "" || !m.tenant.PhoneFallback) {
		return Resolution{Reason: ReasonNoEmailOrPhone}
	}

	type lookup struct {
		field engage.SearchField
		value string
	}

	lookups := make([]lookup, 0, 2)
	if email != "" {
		lookups = append(lookups, lookup{engage.FieldEmail, email})
	}
	if m.tenant.PhoneFallback && phoneNorm != "" {
		lookups = append(lookups, lookup{engage.FieldPhone, phoneNorm})
	}

	reason := ReasonEmpty

	for _, lk := range lookups {
		contacts, err := m.api.SearchContacts(ctx, lk.field, lk.value)
		if err != nil {
			if errors.Is(err, engage.ErrParse) {
				reason = ReasonParseError
			} else {
				reason = ReasonHTTPError
			}
			continue
		}
		if len(contacts) == 0 {
			continue
		}

		contact := contacts[0]
		opp := contact.OpportunityInPipeline(m.tenant.PipelineID)

		if opp == nil && m.tenant.OppSearchFallback && contact.ID != "" {
			found, err := m.api.SearchPipelineOpportunity(ctx, contact.ID, m.tenant.PipelineID)
			if err != nil {
				m.log.Debug("opportunity fallback search failed",
					"clave", clave, "contact_id", contact.ID, "error", err)
			} else {
				opp = found
			}
		}

		return Resolution{Contact: &contact, Opportunity: opp}
	}

	return Resolution{Reason: reason}
}
