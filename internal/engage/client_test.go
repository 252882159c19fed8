package engage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crmsync_backend/platform/logger"
)

type testEngageConfig struct {
	baseURL string
}

func (c testEngageConfig) GetEngageBaseURL() string              { return c.baseURL }
func (c testEngageConfig) GetEngageAPIVersion() string           { return "2021-07-28" }
func (c testEngageConfig) GetEngageToken(tokenEnv string) string { return "test-token" }
func (c testEngageConfig) GetEngageTimeout() time.Duration       { return 5 * time.Second }

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := New(testEngageConfig{baseURL: srv.URL}, "test-token", "loc-1", logger.NewStderr("development"))
	return client, srv
}

func TestSearchContacts_RequestShapeAndHeaders(t *testing.T) {
	var gotReq contactSearchRequest
	var gotAuth, gotVersion string

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/contacts/search" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Version")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"contacts": []map[string]any{{"id": "c1", "email": "a@b.mx"}},
		})
	}))

	contacts, err := client.SearchContacts(context.Background(), FieldEmail, "a@b.mx")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(contacts) != 1 || contacts[0].ID != "c1" {
		t.Fatalf("unexpected contacts %+v", contacts)
	}

	if gotAuth != "Bearer test-token" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotVersion != "2021-07-28" {
		t.Fatalf("unexpected version header %q", gotVersion)
	}
	if gotReq.LocationID != "loc-1" || gotReq.Page != 1 || gotReq.PageLimit != 10 {
		t.Fatalf("unexpected request envelope %+v", gotReq)
	}
	if len(gotReq.Filters) != 1 || gotReq.Filters[0].Field != "email" ||
		gotReq.Filters[0].Operator != "eq" || gotReq.Filters[0].Value != "a@b.mx" {
		t.Fatalf("unexpected filters %+v", gotReq.Filters)
	}

	if client.Stats().ContactsSearch != 1 {
		t.Fatalf("expected one counted contact search, got %+v", client.Stats())
	}
}

func TestSearchContacts_HTTPErrorIsRequestError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
	}))

	_, err := client.SearchContacts(context.Background(), FieldPhone, "+526641234567")
	reqErr, ok := err.(*RequestError)
	if !ok {
		t.Fatalf("expected *RequestError, got %T (%v)", err, err)
	}
	if reqErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", reqErr.Status)
	}
}

func TestSearchPipelineOpportunity_SecondSchemaAfterRejection(t *testing.T) {
	var fieldNames [][]string

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req opportunitySearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		names := make([]string, 0, len(req.Filters))
		for _, f := range req.Filters {
			names = append(names, f.Field)
		}
		fieldNames = append(fieldNames, names)

		// reject the camelCase schema, accept the snake_case retry
		if req.Filters[0].Field == "contactId" {
			http.Error(w, `{"message":"unknown filter"}`, http.StatusUnprocessableEntity)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"opportunities": []map[string]any{{"id": "o1", "pipelineId": "pipe-1"}},
		})
	}))

	opp, err := client.SearchPipelineOpportunity(context.Background(), "c1", "pipe-1")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if opp == nil || opp.ID != "o1" {
		t.Fatalf("unexpected opportunity %+v", opp)
	}

	if len(fieldNames) != 2 {
		t.Fatalf("expected two attempts, got %d", len(fieldNames))
	}
	if fieldNames[0][0] != "contactId" || fieldNames[1][0] != "contact_id" {
		t.Fatalf("unexpected schema order %v", fieldNames)
	}
	if client.Stats().OppsSearch != 1 {
		t.Fatalf("retry must count as one logical search, got %+v", client.Stats())
	}
}

func TestSearchPipelineOpportunity_EmptyMatchIsNotAnError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"opportunities": []any{}})
	}))

	opp, err := client.SearchPipelineOpportunity(context.Background(), "c1", "pipe-1")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if opp != nil {
		t.Fatalf("expected nil opportunity, got %+v", opp)
	}
}

func TestSearchPipelineOpportunity_DataEnvelope(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "o2", "status": "open"}},
		})
	}))

	opp, err := client.SearchPipelineOpportunity(context.Background(), "c1", "pipe-1")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if opp == nil || opp.ID != "o2" {
		t.Fatalf("expected opportunity from data envelope, got %+v", opp)
	}
}

func TestUpdateOpportunityStage_PutBody(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("expected PUT, got %s", r.Method)
		}
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.UpdateOpportunityStage(context.Background(), "o1", "stage-b"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if gotPath != "/opportunities/o1" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody["pipelineStageId"] != "stage-b" {
		t.Fatalf("unexpected body %v", gotBody)
	}
	if client.Stats().PutOpp != 1 {
		t.Fatalf("expected one counted opportunity write, got %+v", client.Stats())
	}
}

func TestUpdateContactCustomField_PutBody(t *testing.T) {
	var gotBody map[string][]CustomField

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.UpdateContactCustomField(context.Background(), "c1", "field-1", "3|32|VISITADO"); err != nil {
		t.Fatalf("update: %v", err)
	}
	fields := gotBody["customFields"]
	if len(fields) != 1 || fields[0].ID != "field-1" || fields[0].Value != "3|32|VISITADO" {
		t.Fatalf("unexpected custom fields %+v", fields)
	}
	if client.Stats().PutContact != 1 {
		t.Fatalf("expected one counted contact write, got %+v", client.Stats())
	}
}

func TestGetContact_UnwrapsEnvelope(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contacts/c9" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"contact": map[string]any{"id": "c9", "email": "x@y.mx", "source": "facebook"},
		})
	}))

	contact, err := client.GetContact(context.Background(), "c9")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if contact.ID != "c9" || contact.Source != "facebook" {
		t.Fatalf("unexpected contact %+v", contact)
	}
}

func TestListOpportunities_PagedRequest(t *testing.T) {
	var gotQuery string
	var gotBody map[string]any

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("locationId")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"opportunities": []map[string]any{{"id": "o1"}, {"id": "o2"}},
		})
	}))

	opps, err := client.ListOpportunities(context.Background(), 3, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(opps) != 2 {
		t.Fatalf("expected two opportunities, got %d", len(opps))
	}
	if gotQuery != "loc-1" {
		t.Fatalf("unexpected locationId query %q", gotQuery)
	}
	if gotBody["page"] != float64(3) || gotBody["limit"] != float64(100) {
		t.Fatalf("unexpected paging body %v", gotBody)
	}
}
