package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Webhook POSTs alerts as JSON. With a secret, the body is signed with
// HMAC-SHA256 in the X-Signature-256 header.
type Webhook struct {
	url       string
	secret    string
	userAgent string
	client    *http.Client
}

// NewWebhook builds the webhook channel.
func NewWebhook(url, secret, userAgent string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if userAgent == "" {
		userAgent = "worldclock/1.0"
	}
	return &Webhook{
		url:       url,
		secret:    secret,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Available() bool { return w.url != "" }

func (w *Webhook) Notify(ctx context.Context, note *Notification) error {
	payload := webhookPayload{
		Event:     "fx_alert",
		AlertID:   note.AlertID,
		Title:     note.Title,
		Message:   note.Message,
		Timestamp: note.Timestamp.UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", w.userAgent)

	if w.secret != "" {
		req.Header.Set("X-Signature-256", "sha256="+Sign(body, []byte(w.secret)))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type webhookPayload struct {
	Event     string `json:"event"`
	AlertID   int64  `json:"alert_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Sign returns the hex HMAC-SHA256 of message.
func Sign(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ Notifier = (*Webhook)(nil)
