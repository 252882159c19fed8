package engage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"crmsync_backend/platform/config"
	"crmsync_backend/platform/logger"
)

// ErrParse marks a 2xx response whose body did not have the expected shape.
var ErrParse = errors.New("unexpected response shape")

const connectTimeout = 10 * time.Second

// RequestError is a transport failure or non-2xx response from the platform.
type RequestError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Client is the HTTP client for the engagement platform API. One client is
// constructed per run per tenant; its call counters are therefore run-scoped.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiVersion string
	token      string
	locationID string
	log        *logger.Logger
	stats      CallStats
}

// New creates a client bound to one tenant's location and token.
func New(cfg config.EngagementConfig, token, locationID string, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.GetEngageTimeout(),
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
		baseURL:    cfg.GetEngageBaseURL(),
		apiVersion: cfg.GetEngageAPIVersion(),
		token:      token,
		locationID: locationID,
		log:        log,
	}
}

// Stats returns the remote call counters accumulated so far.
func (c *Client) Stats() CallStats {
	return c.stats
}

type searchFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type contactSearchRequest struct {
	LocationID string         `json:"locationId"`
	Page       int            `json:"page"`
	PageLimit  int            `json:"pageLimit"`
	Filters    []searchFilter `json:"filters"`
}

type contactSearchResponse struct {
	Contacts []Contact `json:"contacts"`
}

// SearchContacts finds contacts by exact match on one field.
func (c *Client) SearchContacts(ctx context.Context, field SearchField, value string) ([]Contact, error) {
	c.stats.ContactsSearch++

	body := contactSearchRequest{
		LocationID: c.locationID,
		Page:       1,
		PageLimit:  10,
		Filters: []searchFilter{
			{Field: string(field), Operator: "eq", Value: value},
		},
	}

	status, raw, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/contacts/search", body)
	if err != nil || status >= 400 {
		c.log.RemoteCallError("engage", "contacts_search", string(field), status, string(raw), err)
		return nil, &RequestError{Op: "contacts_search", Status: status, Body: logger.Truncate(string(raw), 200), Err: err}
	}

	var resp contactSearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.log.RemoteCallError("engage", "contacts_search_parse", string(field), status, string(raw), err)
		return nil, fmt.Errorf("contacts_search: %w", ErrParse)
	}

	return resp.Contacts, nil
}

type opportunitySearchRequest struct {
	LocationID string         `json:"locationId"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	Filters    []searchFilter `json:"filters"`
}

type opportunitySearchResponse struct {
	Opportunities []Opportunity `json:"opportunities"`
	Data          []Opportunity `json:"data"`
}

func (r opportunitySearchResponse) list() []Opportunity {
	if len(r.Opportunities) > 0 {
		return r.Opportunities
	}
	return r.Data
}

// SearchPipelineOpportunity finds the first opportunity for a contact within
// a pipeline via the search endpoint. The accepted filter field names differ
// between platform tenants, so two naming schemas are tried in sequence and
// the first HTTP success wins. Returns (nil, nil) when the search succeeded
// but matched nothing.
func (c *Client) SearchPipelineOpportunity(ctx context.Context, contactID, pipelineID string) (*Opportunity, error) {
	c.stats.OppsSearch++

	attempts := [][]searchFilter{
		{
			{Field: "contactId", Operator: "eq", Value: contactID},
			{Field: "pipelineId", Operator: "eq", Value: pipelineID},
		},
		{
			{Field: "contact_id", Operator: "eq", Value: contactID},
			{Field: "pipeline_id", Operator: "eq", Value: pipelineID},
		},
	}

	var lastStatus int
	var lastRaw []byte
	var lastErr error

	for _, filters := range attempts {
		body := opportunitySearchRequest{
			LocationID: c.locationID,
			Page:       1,
			Limit:      10,
			Filters:    filters,
		}

		status, raw, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/opportunities/search", body)
		if err != nil || status >= 400 {
			lastStatus, lastRaw, lastErr = status, raw, err
			continue
		}

		var resp opportunitySearchResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			c.log.RemoteCallError("engage", "opps_search_parse", contactID, status, string(raw), err)
			return nil, fmt.Errorf("opps_search: %w", ErrParse)
		}

		list := resp.list()
		if len(list) == 0 {
			return nil, nil
		}
		return &list[0], nil
	}

	c.log.RemoteCallError("engage", "opps_search", contactID, lastStatus, string(lastRaw), lastErr)
	return nil, &RequestError{Op: "opps_search", Status: lastStatus, Body: logger.Truncate(string(lastRaw), 400), Err: lastErr}
}

// UpdateOpportunityStage moves an opportunity to a pipeline stage.
func (c *Client) UpdateOpportunityStage(ctx context.Context, opportunityID, stageID string) error {
	c.stats.PutOpp++
	return c.putJSON(ctx, "opp_stage_update", "/opportunities/"+url.PathEscape(opportunityID),
		map[string]string{"pipelineStageId": stageID})
}

// UpdateOpportunityStatus sets an opportunity's status (open|won|lost|abandoned).
func (c *Client) UpdateOpportunityStatus(ctx context.Context, opportunityID, status string) error {
	c.stats.PutOpp++
	return c.putJSON(ctx, "opp_status_update", "/opportunities/"+url.PathEscape(opportunityID),
		map[string]string{"status": status})
}

// UpdateContactCustomField writes one custom field value on a contact.
func (c *Client) UpdateContactCustomField(ctx context.Context, contactID, fieldID, value string) error {
	c.stats.PutContact++
	payload := map[string][]CustomField{
		"customFields": {{ID: fieldID, Value: value}},
	}
	return c.putJSON(ctx, "contact_update", "/contacts/"+url.PathEscape(contactID), payload)
}

type contactEnvelope struct {
	Contact Contact `json:"contact"`
}

// GetContact fetches a single contact by id.
func (c *Client) GetContact(ctx context.Context, contactID string) (*Contact, error) {
	status, raw, err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/contacts/"+url.PathEscape(contactID), nil)
	if err != nil || status >= 400 {
		c.log.RemoteCallError("engage", "contact_get", contactID, status, string(raw), err)
		return nil, &RequestError{Op: "contact_get", Status: status, Body: logger.Truncate(string(raw), 200), Err: err}
	}

	var envelope contactEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("contact_get: %w", ErrParse)
	}

	return &envelope.Contact, nil
}

// ListOpportunities pages through the location's opportunities. Some platform
// tenants reject pipeline filters on this endpoint, so callers filter
// client-side.
func (c *Client) ListOpportunities(ctx context.Context, page, limit int) ([]Opportunity, error) {
	c.stats.OppsSearch++

	body := map[string]any{
		"locationId": c.locationID,
		"page":       page,
		"limit":      limit,
	}

	reqURL := c.baseURL + "/opportunities/search?locationId=" + url.QueryEscape(c.locationID)
	status, raw, err := c.doJSON(ctx, http.MethodPost, reqURL, body)
	if err != nil || status >= 400 {
		c.log.RemoteCallError("engage", "opps_list", c.locationID, status, string(raw), err)
		return nil, &RequestError{Op: "opps_list", Status: status, Body: logger.Truncate(string(raw), 400), Err: err}
	}

	var resp opportunitySearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("opps_list: %w", ErrParse)
	}

	return resp.list(), nil
}

func (c *Client) putJSON(ctx context.Context, op, path string, payload any) error {
	status, raw, err := c.doJSON(ctx, http.MethodPut, c.baseURL+path, payload)
	if err != nil || status >= 400 {
		c.log.RemoteCallError("engage", op, path, status, string(raw), err)
		return &RequestError{Op: op, Status: status, Body: logger.Truncate(string(raw), 500), Err: err}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, reqURL string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, raw, nil
}
