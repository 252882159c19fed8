package webhook

import (
	"context"
	"errors"
	"testing"

	"crmsync_backend/internal/sourcecrm"
	"crmsync_backend/platform/apperr"
	"crmsync_backend/platform/logger"
)

type fakeForwarder struct {
	gotURL  string
	gotLead sourcecrm.Lead
	result  sourcecrm.CatchLeadResult
	err     error
	calls   int
}

func (f *fakeForwarder) CatchLead(_ context.Context, catchURL string, lead sourcecrm.Lead) (sourcecrm.CatchLeadResult, error) {
	f.calls++
	f.gotURL = catchURL
	f.gotLead = lead
	return f.result, f.err
}

type testWebhookConfig struct{}

func (testWebhookConfig) GetSourceCatchURL() string { return "https://crm.example.mx/lead-catch" }
func (testWebhookConfig) GetSourceToken() string    { return "crm-token" }
func (testWebhookConfig) GetWebhookSecret() string  { return "hook-secret" }
func (testWebhookConfig) GetRoutingFile() string    { return "testdata/routing.json" }

func testRouting() *Routing {
	return &Routing{
		Projects:          map[int]string{3: "Naos Towers", 4: "Wavve Living"},
		OwnerResponsables: map[string]int{"ana.garcia@example.mx": 9},
	}
}

func validPayload() LeadPayload {
	p := LeadPayload{
		ContactID:    "gc-1",
		FullName:     "  Carlos Prueba  ",
		Email:        "carlos@example.mx",
		Phone:        "664 123 4567",
		Platform:     "fb",
		ProjectIDRaw: "3",
	}
	p.User.Email = "ana.garcia@example.mx"
	return p
}

func newTestService(f *fakeForwarder) *Service {
	return NewService(f, testRouting(), testWebhookConfig{}, logger.NewStderr("development"))
}

func TestProcessLead_ForwardsNormalizedLead(t *testing.T) {
	forwarder := &fakeForwarder{result: sourcecrm.CatchLeadResult{Status: 201, Body: `{"id":1}`}}
	service := newTestService(forwarder)

	result, err := service.ProcessLead(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if forwarder.gotURL != "https://crm.example.mx/lead-catch" {
		t.Fatalf("unexpected catch url %q", forwarder.gotURL)
	}
	lead := forwarder.gotLead
	if lead.FullName != "Carlos Prueba" {
		t.Fatalf("expected trimmed name, got %q", lead.FullName)
	}
	if lead.Project != 3 || lead.ResponsableID != 9 {
		t.Fatalf("unexpected routing %d/%d", lead.Project, lead.ResponsableID)
	}
	if lead.Platform != "facebook" {
		t.Fatalf("expected normalized platform, got %q", lead.Platform)
	}
	if lead.Phone == nil || *lead.Phone != "+526641234567" {
		t.Fatalf("expected E.164 phone, got %v", lead.Phone)
	}
	if lead.CreateTime == "" {
		t.Fatal("expected create_time to be set")
	}

	if result.ProjectName != "Naos Towers" || result.UpstreamCode != 201 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestProcessLead_CollectsAllValidationErrors(t *testing.T) {
	forwarder := &fakeForwarder{}
	service := newTestService(forwarder)

	_, err := service.ProcessLead(context.Background(), LeadPayload{})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	details, ok := appErr.Details.([]string)
	if !ok {
		t.Fatalf("expected []string details, got %T", appErr.Details)
	}
	if len(details) != 4 {
		t.Fatalf("expected 4 validation errors, got %v", details)
	}
	if forwarder.calls != 0 {
		t.Fatal("rejected lead must not be forwarded")
	}
}

func TestProcessLead_UnknownProjectRejected(t *testing.T) {
	service := newTestService(&fakeForwarder{})

	p := validPayload()
	p.ProjectIDRaw = "77"
	_, err := service.ProcessLead(context.Background(), p)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for unmapped project, got %v", err)
	}
}

func TestProcessLead_PhoneOnlyIsEnough(t *testing.T) {
	forwarder := &fakeForwarder{result: sourcecrm.CatchLeadResult{Status: 200}}
	service := newTestService(forwarder)

	p := validPayload()
	p.Email = ""
	if _, err := service.ProcessLead(context.Background(), p); err != nil {
		t.Fatalf("process: %v", err)
	}
	if forwarder.gotLead.Email != nil {
		t.Fatalf("expected nil email, got %v", forwarder.gotLead.Email)
	}
}

func TestProcessLead_UpstreamFailurePropagates(t *testing.T) {
	forwarder := &fakeForwarder{
		result: sourcecrm.CatchLeadResult{Status: 502, Body: "bad gateway"},
		err:    apperr.Upstream("lead catch endpoint returned status 502", nil),
	}
	service := newTestService(forwarder)

	result, err := service.ProcessLead(context.Background(), validPayload())
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if result.UpstreamCode != 502 || result.Upstream.Body != "bad gateway" {
		t.Fatalf("expected upstream response in result, got %+v", result)
	}
}
