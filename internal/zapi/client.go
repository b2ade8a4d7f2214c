package zapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"whatsapp-broadcaster/internal/config"

	"golang.org/x/time/rate"
)

// Client talks to the hosted WhatsApp gateway. Sends are fire-and-forget:
// callers log failures and move on, they never retry through this client.
type Client struct {
	baseURL     string
	instanceID  string
	token       string
	clientToken string

	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg *config.Config) *Client {
	rps := cfg.SendRatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		baseURL:     cfg.GatewayBaseURL,
		instanceID:  cfg.InstanceID,
		token:       cfg.Token,
		clientToken: cfg.ClientToken,
		http:        &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(rps), rps),
	}
}

type textPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// SendText delivers a text message to a phone number. A non-2xx gateway
// response is returned as an error along with any body the gateway sent back.
func (c *Client) SendText(ctx context.Context, phone, message string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/instances/%s/token/%s/send-text", c.baseURL, c.instanceID, c.token)
	jsonData, err := json.Marshal(textPayload{Phone: phone, Message: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Client-Token", c.clientToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway error: %s - %s", resp.Status, string(respBody))
	}
	return nil
}
