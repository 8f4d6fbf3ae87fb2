package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookNotifier posts notifications to a delivery gateway. The gateway
// owns templates, channels and retries; this adapter only hands the event
// over.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: url, client: client}
}

type webhookEnvelope struct {
	Recipient string         `json:"recipient"`
	Template  string         `json:"template"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func (n *WebhookNotifier) Send(ctx context.Context, recipient, template string, payload map[string]any) error {
	body, err := json.Marshal(webhookEnvelope{
		Recipient: recipient,
		Template:  template,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("notifier: marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notifier: webhook call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notifier: webhook returned %d", resp.StatusCode)
	}
	return nil
}
