package notify

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MailSubject is the subject of every alert draft.
const MailSubject = "WorldClock 為替アラート通知"

// MailDraft writes an .eml draft per alert and logs the equivalent mailto
// link. Nothing is sent; the user opens the draft in a mail client.
type MailDraft struct {
	dir    string
	to     string
	logger zerolog.Logger
}

// NewMailDraft stores drafts under dir, addressed to to (may be empty).
func NewMailDraft(dir, to string, logger zerolog.Logger) *MailDraft {
	return &MailDraft{
		dir:    dir,
		to:     strings.TrimSpace(to),
		logger: logger.With().Str("component", "notify_maildraft").Logger(),
	}
}

func (m *MailDraft) Name() string {
	return "maildraft"
}

func (m *MailDraft) Available() bool {
	return m.dir != ""
}

func (m *MailDraft) Notify(ctx context.Context, note *Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create draft dir: %w", err)
	}

	body := m.Body(note.Message)
	name := fmt.Sprintf("alert-%d-%s.eml", note.AlertID, note.Timestamp.UTC().Format("20060102T150405Z"))
	path := filepath.Join(m.dir, name)
	if err := os.WriteFile(path, []byte(m.Draft(note, body)), 0o644); err != nil {
		return fmt.Errorf("write draft: %w", err)
	}

	m.logger.Info().Str("path", path).Str("mailto", m.MailtoLink(body)).Msg("メール下書きを作成しました")
	return nil
}

// Body appends the recipient line to the alert text.
func (m *MailDraft) Body(text string) string {
	return fmt.Sprintf("%s\n\n送信先: %s", text, m.to)
}

// Draft renders an RFC 5322 message with a MIME-encoded subject.
func (m *MailDraft) Draft(note *Notification, body string) string {
	var b strings.Builder
	if m.to != "" {
		fmt.Fprintf(&b, "To: %s\r\n", m.to)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", MailSubject))
	fmt.Fprintf(&b, "Date: %s\r\n", note.Timestamp.Format(time.RFC1123Z))
	b.WriteString("X-Unsent: 1\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.String()
}

// MailtoLink builds the mailto: URL for body.
func (m *MailDraft) MailtoLink(body string) string {
	return fmt.Sprintf("mailto:%s?subject=%s&body=%s", m.to, escapeComponent(MailSubject), escapeComponent(body))
}

func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

var _ Notifier = (*MailDraft)(nil)
