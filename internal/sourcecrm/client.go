package sourcecrm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"crmsync_backend/internal/reconcile"
	"crmsync_backend/platform/apperr"
	"crmsync_backend/platform/config"
	"crmsync_backend/platform/logger"
)

// Connect timeout stays below the total request timeout so a dead host
// fails fast instead of eating the whole request budget.
const connectTimeout = 10 * time.Second

// Client talks to the source CRM's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	log        *logger.Logger
}

// New builds a source CRM client from configuration.
func New(cfg config.SourceCRMConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.GetSourceTimeout(),
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
		baseURL: cfg.GetSourceBaseURL(),
		token:   cfg.GetSourceToken(),
		log:     log,
	}
}

type listEnvelope struct {
	Data []reconcile.SourceRecord `json:"data"`
}

// FetchOpportunities retrieves the full opportunity dataset for one project.
// The endpoint has no delta or pagination support, so every run fetches
// everything and filters locally.
func (c *Client) FetchOpportunities(ctx context.Context, projectID int) ([]reconcile.SourceRecord, error) {
	url := fmt.Sprintf("%s/oportunidades?proyecto_id=%s", c.baseURL, strconv.Itoa(projectID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.SourceFetch("build opportunities request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.RemoteCallError("source_crm", "fetch_opportunities", strconv.Itoa(projectID), 0, "", err)
		return nil, apperr.SourceFetch("fetch opportunities", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.SourceFetch("read opportunities response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.RemoteCallError("source_crm", "fetch_opportunities", strconv.Itoa(projectID), resp.StatusCode, string(body), nil)
		return nil, apperr.SourceFetch(
			fmt.Sprintf("source CRM returned status %d", resp.StatusCode), nil)
	}

	// The list endpoint normally wraps rows in a data envelope, but older
	// deployments return a bare array.
	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data, nil
	}

	var rows []reconcile.SourceRecord
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, apperr.SourceParse("decode opportunities response", err)
	}
	return rows, nil
}

// Lead is the payload the source CRM's lead-catch endpoint expects.
type Lead struct {
	FullName      string  `json:"fullname"`
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	Project       int     `json:"project"`
	ResponsableID int     `json:"responsable_id"`
	CreateTime    string  `json:"create_time"`
	Platform      string  `json:"platform"`
	UTMSource     *string `json:"utm_source"`
	UTMMedium     *string `json:"utm_medium"`
	UTMCampaign   *string `json:"utm_campaign"`
	ClientProfile *string `json:"perfil_del_cliente"`
	FirstContact  *string `json:"primer_contacto"`
	Budget        *string `json:"monto_de_inversion"`
}

// CatchLeadResult carries the upstream response back to the webhook caller.
type CatchLeadResult struct {
	Status int    `json:"httpCode"`
	Body   string `json:"body"`
}

// CatchLead forwards a lead to the source CRM's catch endpoint.
func (c *Client) CatchLead(ctx context.Context, catchURL string, lead Lead) (CatchLeadResult, error) {
	raw, err := json.Marshal(lead)
	if err != nil {
		return CatchLeadResult{}, apperr.Internal("marshal lead payload").WithOp("sourcecrm.CatchLead")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, catchURL, bytes.NewReader(raw))
	if err != nil {
		return CatchLeadResult{}, apperr.Upstream("build lead request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.RemoteCallError("source_crm", "catch_lead", lead.FullName, 0, "", err)
		return CatchLeadResult{}, apperr.Upstream("forward lead", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	result := CatchLeadResult{Status: resp.StatusCode, Body: string(body)}

	if resp.StatusCode >= 400 {
		c.log.RemoteCallError("source_crm", "catch_lead", lead.FullName, resp.StatusCode, result.Body, nil)
		return result, apperr.Upstream(
			fmt.Sprintf("lead catch endpoint returned status %d", resp.StatusCode), nil)
	}
	return result, nil
}
