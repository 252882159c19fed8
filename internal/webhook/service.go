package webhook

import (
	"context"
	"strconv"
	"strings"
	"time"

	"crmsync_backend/internal/sourcecrm"
	"crmsync_backend/platform/apperr"
	"crmsync_backend/platform/config"
	"crmsync_backend/platform/logger"
	"crmsync_backend/platform/phone"
)

// LeadForwarder forwards a lead to the source CRM. Satisfied by
// *sourcecrm.Client.
type LeadForwarder interface {
	CatchLead(ctx context.Context, catchURL string, lead sourcecrm.Lead) (sourcecrm.CatchLeadResult, error)
}

// ForwardResult is returned to the webhook caller on success.
type ForwardResult struct {
	ProjectID    int                       `json:"projectId"`
	ProjectName  string                    `json:"projectName"`
	Platform     string                    `json:"platform"`
	UpstreamCode int                       `json:"upstreamCode"`
	Upstream     sourcecrm.CatchLeadResult `json:"upstream"`
}

// Service validates inbound lead webhooks and forwards them onward.
type Service struct {
	forwarder LeadForwarder
	routing   *Routing
	catchURL  string
	log       *logger.Logger
}

// NewService creates a new webhook forwarding service.
func NewService(forwarder LeadForwarder, routing *Routing, cfg config.WebhookConfig, log *logger.Logger) *Service {
	return &Service{
		forwarder: forwarder,
		routing:   routing,
		catchURL:  cfg.GetSourceCatchURL(),
		log:       log,
	}
}

// ProcessLead validates a captured lead and forwards it to the source CRM.
// Validation failures return KindValidation with the full error list in
// Details, so the sender's workflow log shows every problem at once.
func (s *Service) ProcessLead(ctx context.Context, payload LeadPayload) (ForwardResult, error) {
	fullName := strings.TrimSpace(payload.FullName)
	email := strings.TrimSpace(payload.Email)
	rawPhone := strings.TrimSpace(payload.Phone)

	projectID, _ := strconv.Atoi(strings.TrimSpace(payload.ProjectIDRaw))
	projectName, projectKnown := s.routing.ProjectName(projectID)
	responsableID, responsableKnown := s.routing.ResponsableID(payload.User.Email)

	var errs []string
	if fullName == "" {
		errs = append(errs, "fullname missing")
	}
	if projectID == 0 {
		errs = append(errs, "proyecto_id missing")
	} else if !projectKnown {
		errs = append(errs, "proyecto_id not supported in routing table")
	}
	if !responsableKnown {
		errs = append(errs, "responsable_id missing (no mapping for owner email)")
	}
	if email == "" && rawPhone == "" {
		errs = append(errs, "email or phone required")
	}
	if len(errs) > 0 {
		s.log.Warn("lead rejected",
			"errors", strings.Join(errs, "; "),
			"owner_email", payload.User.Email,
			"project_id", projectID)
		return ForwardResult{}, apperr.Validation("lead payload failed validation").WithDetails(errs)
	}

	platform := payload.DetectPlatform()

	normPhone := rawPhone
	if rawPhone != "" {
		normPhone = phone.NormalizeE164(rawPhone)
	}

	lead := sourcecrm.Lead{
		FullName:      fullName,
		Email:         optional(email),
		Phone:         optional(normPhone),
		Project:       projectID,
		ResponsableID: responsableID,
		CreateTime:    time.Now().UTC().Format("2006-01-02 15:04:05"),
		Platform:      platform,
		UTMSource:     optional(payload.UTMSource),
		UTMMedium:     optional(payload.UTMMedium),
		UTMCampaign:   optional(payload.UTMCampaign),
		ClientProfile: optional(payload.ClientType),
		FirstContact:  optional(payload.ContactMethod),
		Budget:        optional(payload.ClientBudget),
	}

	s.log.Info("lead accepted",
		"contact_id", payload.ContactID,
		"project_id", projectID,
		"project_name", projectName,
		"platform", platform,
		"owner_email", payload.User.Email)

	upstream, err := s.forwarder.CatchLead(ctx, s.catchURL, lead)
	if err != nil {
		return ForwardResult{
			ProjectID:    projectID,
			ProjectName:  projectName,
			Platform:     platform,
			UpstreamCode: upstream.Status,
			Upstream:     upstream,
		}, err
	}

	return ForwardResult{
		ProjectID:    projectID,
		ProjectName:  projectName,
		Platform:     platform,
		UpstreamCode: upstream.Status,
		Upstream:     upstream,
	}, nil
}

func optional(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
