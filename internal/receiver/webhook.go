package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/holiman/uint256"

	"github.com/ppiankov/amlgate/internal/model"
)

const maxResponseBytes = 64 * 1024

// Webhook posts notifications to an HTTP endpoint. The endpoint answers
// {"used_amount": "<decimal>"}.
type Webhook struct {
	URL     string
	Headers map[string]string
	Client  *http.Client
}

// NewWebhook creates a Webhook with a bounded HTTP client.
func NewWebhook(url string, headers map[string]string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		URL:     url,
		Headers: headers,
		Client:  &http.Client{Timeout: timeout},
	}
}

type webhookReply struct {
	UsedAmount string `json:"used_amount"`
}

// OnTransfer implements Hook.
func (w *Webhook) OnTransfer(ctx context.Context, n Notification) (*uint256.Int, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.Headers {
		req.Header.Set(k, v)
	}

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notify %s: %w", n.Receiver, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("notify %s: HTTP %d", n.Receiver, resp.StatusCode)
	}

	var reply webhookReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode reply from %s: %w", n.Receiver, err)
	}
	used, err := model.ParseAmount(reply.UsedAmount)
	if err != nil {
		return nil, fmt.Errorf("reply from %s: %w", n.Receiver, err)
	}
	return used, nil
}
