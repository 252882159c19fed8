// Package adsync backfills server-side conversion events to the ad platform
// for opportunities that reached appointment or visit stages, restricted to
// contacts the ad platform originally sourced.
package adsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"crmsync_backend/internal/engage"
	"crmsync_backend/internal/reconcile"
	"crmsync_backend/platform/config"
	"crmsync_backend/platform/logger"
)

const (
	eventName    = "Schedule"
	actionSource = "system_generated"
	pageLimit    = 100
	maxPages     = 50
)

// EngagementReader is the subset of the engagement client the backfill needs.
type EngagementReader interface {
	ListOpportunities(ctx context.Context, page, limit int) ([]engage.Opportunity, error)
	GetContact(ctx context.Context, contactID string) (*engage.Contact, error)
}

// EventSender posts conversion events. Satisfied by *Client.
type EventSender interface {
	SendEvent(ctx context.Context, event ConversionEvent) error
}

// Summary is the backfill run outcome.
type Summary struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// stageTarget pairs a conversion type with the pipeline stage that triggers it.
type stageTarget struct {
	Type    string
	StageID string
}

// Backfill walks recent opportunities and emits one conversion event per
// opportunity/stage pair that has not been sent before.
type Backfill struct {
	reader   EngagementReader
	sender   EventSender
	registry *Registry
	limiter  *rate.Limiter
	log      *logger.Logger

	pipelineID  string
	targets     []stageTarget
	daysBack    int
	projectID   int
	projectName string
	locationID  string
}

// NewBackfill wires a backfill run from configuration.
func NewBackfill(cfg config.AdPlatformConfig, reader EngagementReader, sender EventSender, registry *Registry, log *logger.Logger) *Backfill {
	return &Backfill{
		reader:   reader,
		sender:   sender,
		registry: registry,
		// Stay well under the Graph API burst limits.
		limiter:     rate.NewLimiter(rate.Limit(5), 1),
		log:         log,
		pipelineID:  cfg.GetAdsPipelineID(),
		daysBack:    cfg.GetAdsDaysBack(),
		projectID:   cfg.GetAdsProjectID(),
		projectName: cfg.GetAdsProjectName(),
		locationID:  cfg.GetAdsLocationID(),
		targets: []stageTarget{
			{Type: "cita", StageID: cfg.GetAdsAppointmentStageID()},
			{Type: "visita", StageID: cfg.GetAdsVisitStageID()},
		},
	}
}

// Run executes the backfill. The registry is saved after every page so a
// crash mid-run never resends what already went out.
func (b *Backfill) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	since := time.Now().Add(-time.Duration(b.daysBack) * 24 * time.Hour)

	for _, target := range b.targets {
		b.log.Info("backfill stage pass", "type", target.Type, "stage_id", target.StageID)

		for page := 1; page <= maxPages; page++ {
			opps, err := b.reader.ListOpportunities(ctx, page, pageLimit)
			if err != nil {
				summary.Failed++
				b.log.Error("opportunity listing failed", "page", page, "error", err)
				break
			}
			if len(opps) == 0 {
				break
			}

			for _, opp := range opps {
				b.processOpportunity(ctx, opp, target, since, &summary)
			}

			if err := b.registry.Save(); err != nil {
				return summary, err
			}
		}
	}

	err := b.registry.Save()
	return summary, err
}

func (b *Backfill) processOpportunity(ctx context.Context, opp engage.Opportunity, target stageTarget, since time.Time, summary *Summary) {
	if opp.ID == "" || opp.ContactID == "" {
		return
	}

	// The listing endpoint cannot filter server-side, so everything is
	// checked here.
	if opp.PipelineID != b.pipelineID || opp.PipelineStageID != target.StageID {
		return
	}

	eventTime, hasTime := stageEventTime(opp)
	if hasTime && eventTime.Before(since) {
		return
	}

	eventID := fmt.Sprintf("meta:%d:%s:%s", b.projectID, opp.ID, target.Type)
	if b.registry.Seen(eventID) {
		summary.Skipped++
		return
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	contact, err := b.reader.GetContact(ctx, opp.ContactID)
	if err != nil {
		b.registry.Record(eventID, StatusFailContact, opp.ID, opp.ContactID, err.Error())
		summary.Failed++
		return
	}

	if !isAdLead(*contact) {
		b.registry.Record(eventID, StatusSkipNotAdLead, opp.ID, opp.ContactID, "")
		summary.Skipped++
		return
	}

	userData := buildUserData(*contact)
	if len(userData.Email) == 0 && len(userData.Phone) == 0 {
		b.registry.Record(eventID, StatusSkipNoUser, opp.ID, opp.ContactID, "")
		summary.Skipped++
		return
	}
	userData.ExternalID = []string{opp.ContactID}

	if !hasTime {
		eventTime = time.Now()
	}
	// The platform rejects events older than the attribution window.
	if eventTime.Before(since) {
		eventTime = since.Add(time.Minute)
	}

	leadEvent := "appointment_scheduled"
	if target.Type == "visita" {
		leadEvent = "visit_scheduled"
	}

	event := ConversionEvent{
		EventName:    eventName,
		EventTime:    eventTime.Unix(),
		ActionSource: actionSource,
		EventID:      eventID,
		UserData:     userData,
		CustomData: map[string]any{
			"appointment_type":  target.Type,
			"lead_event":        leadEvent,
			"project_id":        b.projectID,
			"project_name":      b.projectName,
			"location_id":       b.locationID,
			"contact_id":        opp.ContactID,
			"opportunity_id":    opp.ID,
			"pipeline_id":       b.pipelineID,
			"pipeline_stage_id": target.StageID,
		},
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	if err := b.sender.SendEvent(ctx, event); err != nil {
		b.registry.Record(eventID, StatusFailSend, opp.ID, opp.ContactID, err.Error())
		summary.Failed++
		return
	}

	b.registry.Record(eventID, StatusSent, opp.ID, opp.ContactID, "")
	summary.Sent++
}

// stageEventTime picks the conversion moment: the last stage change when
// known, otherwise the opportunity's update time.
func stageEventTime(opp engage.Opportunity) (time.Time, bool) {
	if t, ok := reconcile.ParseSourceTime(opp.LastStageChange); ok {
		return t, true
	}
	if t, ok := reconcile.ParseSourceTime(opp.UpdatedAt); ok {
		return t, true
	}
	return time.Time{}, false
}

// isAdLead reports whether the ad platform originally sourced the contact.
func isAdLead(contact engage.Contact) bool {
	if strings.EqualFold(contact.Source, "facebook") {
		return true
	}
	return strings.EqualFold(contact.AttributionSource.Medium, "facebook")
}

func buildUserData(contact engage.Contact) UserData {
	var data UserData
	if h, ok := sha256Normalized(contact.Email); ok {
		data.Email = []string{h}
	}
	if digits := phoneDigits(contact.Phone); digits != "" {
		data.Phone = []string{sha256Hex(digits)}
	}
	return data
}

// sha256Normalized hashes a lowercased, trimmed value, matching the match-key
// normalization the ad platform requires.
func sha256Normalized(value string) (string, bool) {
	v := strings.TrimSpace(strings.ToLower(value))
	if v == "" {
		return "", false
	}
	return sha256Hex(v), true
}

// phoneDigits keeps digits and a leading plus only.
func phoneDigits(value string) string {
	var sb strings.Builder
	for i, r := range strings.TrimSpace(value) {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		} else if r == '+' && i == 0 {
			sb.WriteRune(r)
		}
	}
	s := sb.String()
	if s == "+" {
		return ""
	}
	return s
}

func sha256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
