package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/HeltonFraga01/cortexx-engine/config"
)

// OutboundMessage is one rendered message ready for the gateway
type OutboundMessage struct {
	Kind     string  `json:"kind"`
	Body     string  `json:"body"`
	MediaURL *string `json:"media_url,omitempty"`
	Caption  *string `json:"caption,omitempty"`
}

// GatewayClient performs the actual network send. Implementations classify
// failures as transient or permanent via SendError.
type GatewayClient interface {
	Send(ctx context.Context, phone string, messages []OutboundMessage) error
}

// WhatsAppGatewayClient talks to the WhatsApp gateway's instance API
type WhatsAppGatewayClient struct {
	cfg    config.GatewayConfig
	client *http.Client
}

// NewWhatsAppGatewayClient creates a gateway client from configuration
func NewWhatsAppGatewayClient(cfg config.GatewayConfig) *WhatsAppGatewayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WhatsAppGatewayClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type gatewaySendRequest struct {
	Number   string            `json:"number"`
	Messages []OutboundMessage `json:"messages"`
}

type gatewaySendResponse struct {
	Accepted bool   `json:"accepted"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Send posts the rendered sequence for one contact to the gateway instance
func (c *WhatsAppGatewayClient) Send(ctx context.Context, phone string, messages []OutboundMessage) error {
	payload, _ := json.Marshal(gatewaySendRequest{Number: phone, Messages: messages})

	url := fmt.Sprintf("%s/instances/%s/send", c.cfg.BaseURL, c.cfg.Instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return NewTransientError("REQUEST_BUILD", "failed to build gateway request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return NewTransientError("NETWORK", "gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return NewTransientError("READ_BODY", "failed to read gateway response", err)
		}
		var out gatewaySendResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return NewTransientError("DECODE", "failed to decode gateway response", err)
		}
		if !out.Accepted {
			return classifyGatewayRejection(out.Code, out.Message)
		}
		return nil
	}

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return NewPermanentError("INVALID_NUMBER", fmt.Sprintf("gateway rejected recipient %s", phone), nil)
	case http.StatusForbidden:
		return NewPermanentError("BLOCKED", fmt.Sprintf("recipient %s blocked sender", phone), nil)
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return NewTransientError("RATE_LIMITED", "gateway rate limit", nil)
	default:
		return NewTransientError("HTTP_STATUS", fmt.Sprintf("gateway http status %d", resp.StatusCode), nil)
	}
}

// classifyGatewayRejection maps gateway application codes onto the send
// error taxonomy
func classifyGatewayRejection(code, message string) *SendError {
	switch code {
	case "invalid_number", "not_on_whatsapp":
		return NewPermanentError("INVALID_NUMBER", message, nil)
	case "blocked":
		return NewPermanentError("BLOCKED", message, nil)
	case "rate_limited":
		return NewTransientError("RATE_LIMITED", message, nil)
	default:
		return NewTransientError("GATEWAY_REJECTED", message, nil)
	}
}
