package adsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"crmsync_backend/platform/apperr"
	"crmsync_backend/platform/config"
	"crmsync_backend/platform/logger"
)

// ConversionEvent is one server-side conversion event in the ad platform's
// Graph API shape.
type ConversionEvent struct {
	EventName    string         `json:"event_name"`
	EventTime    int64          `json:"event_time"`
	ActionSource string         `json:"action_source"`
	EventID      string         `json:"event_id"`
	UserData     UserData       `json:"user_data"`
	CustomData   map[string]any `json:"custom_data"`
}

// UserData carries hashed match keys. Email and phone are sha256 hashes;
// ExternalID is hashed by the platform on receipt.
type UserData struct {
	Email      []string `json:"em,omitempty"`
	Phone      []string `json:"ph,omitempty"`
	ExternalID []string `json:"external_id,omitempty"`
}

// Client posts conversion events to the ad platform's dataset endpoint.
type Client struct {
	httpClient *http.Client
	graphURL   string
	datasetID  string
	token      string
	log        *logger.Logger
}

// NewClient builds an ad platform client from configuration.
func NewClient(cfg config.AdPlatformConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		graphURL:   cfg.GetAdsGraphURL(),
		datasetID:  cfg.GetAdsDatasetID(),
		token:      cfg.GetAdsToken(),
		log:        log,
	}
}

// SendEvent posts a single conversion event.
func (c *Client) SendEvent(ctx context.Context, event ConversionEvent) error {
	payload := map[string]any{"data": []ConversionEvent{event}}
	raw, err := json.Marshal(payload)
	if err != nil {
		return apperr.Internal("marshal conversion event").WithOp("adsync.SendEvent")
	}

	url := fmt.Sprintf("%s/%s/events", c.graphURL, c.datasetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return apperr.RemoteWrite("build conversion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.RemoteCallError("ad_platform", "send_event", event.EventID, 0, "", err)
		return apperr.RemoteWrite("send conversion event", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.RemoteCallError("ad_platform", "send_event", event.EventID, resp.StatusCode, string(body), nil)
		return apperr.RemoteWrite(
			fmt.Sprintf("ad platform returned status %d", resp.StatusCode), nil)
	}
	return nil
}
