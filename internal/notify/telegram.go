package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Telegram pushes alerts through the Bot API sendMessage method.
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegram builds the Telegram channel.
func NewTelegram(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *Telegram {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "notify_telegram").Logger(),
	}
}

func (n *Telegram) Name() string {
	return "telegram"
}

func (n *Telegram) Available() bool {
	return n.botToken != "" && n.chatID != ""
}

// Notify calls sendMessage with the rendered alert text.
func (n *Telegram) Notify(ctx context.Context, note *Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderTelegram(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Int64("alert_id", note.AlertID).Msg("アラート送信済み (Telegram)")
	return nil
}

func renderTelegram(note *Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[%s]\n", note.Title))
	builder.WriteString(note.Message)
	builder.WriteString("\n")
	if note.AlertID > 0 {
		builder.WriteString(fmt.Sprintf("Alert: #%d\n", note.AlertID))
	}
	builder.WriteString(fmt.Sprintf("Time: %s", note.Timestamp.Format(time.RFC3339)))
	return builder.String()
}

var _ Notifier = (*Telegram)(nil)
