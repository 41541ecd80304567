package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/HeltonFraga01/cortexx-engine/config"
)

// QuotaClient checks a tenant's remaining plan allowance before a send.
// A false result means the send must wait, not fail.
type QuotaClient interface {
	CheckAndConsume(ctx context.Context, userID uint, units int) (bool, error)
}

// HTTPQuotaClient calls the plan-limit service
type HTTPQuotaClient struct {
	cfg    config.QuotaConfig
	client *http.Client
}

func NewHTTPQuotaClient(cfg config.QuotaConfig) *HTTPQuotaClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPQuotaClient{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

type quotaConsumeRequest struct {
	UserID uint `json:"user_id"`
	Units  int  `json:"units"`
}

type quotaConsumeResponse struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}

// CheckAndConsume reserves units against the tenant's plan. Errors are
// reported distinctly from denial so callers can retry service outages.
func (c *HTTPQuotaClient) CheckAndConsume(ctx context.Context, userID uint, units int) (bool, error) {
	if c.cfg.Disabled {
		return true, nil
	}

	payload, _ := json.Marshal(quotaConsumeRequest{UserID: userID, Units: units})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/quota/consume", bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("quota service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPaymentRequired {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("quota service http status %d", resp.StatusCode)
	}

	var out quotaConsumeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode quota response: %w", err)
	}
	return out.Allowed, nil
}
