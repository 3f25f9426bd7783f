package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/config"
)

// Mailbox is the assistant's account: IMAP for reading, SMTP for sending.
type Mailbox struct {
	imap   *Client
	smtp   config.MailServerConfig
	from   string
	logger *slog.Logger
}

// NewMailbox creates a mailbox from the e-mail configuration.
func NewMailbox(cfg config.EmailConfig, logger *slog.Logger) *Mailbox {
	return &Mailbox{
		imap:   NewClient(cfg.IMAP, logger.With("component", "imap")),
		smtp:   cfg.SMTP,
		from:   cfg.From,
		logger: logger,
	}
}

// Unread returns the newest unread messages in the inbox.
func (m *Mailbox) Unread(ctx context.Context, limit int) ([]Envelope, error) {
	return m.imap.ListMessages(ctx, ListOptions{Unseen: true, Limit: limit})
}

// Send composes a markdown message to one recipient and delivers it.
func (m *Mailbox) Send(ctx context.Context, to, subject, body string) error {
	msg, err := Draft{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Body:    body,
	}.Bytes()
	if err != nil {
		return err
	}

	if err := SendMail(ctx, m.smtp, extractAddress(m.from), []string{extractAddress(to)}, msg); err != nil {
		return err
	}
	m.logger.Info("email sent", "to", extractAddress(to), "subject", subject)
	return nil
}

// Close closes the IMAP connection.
func (m *Mailbox) Close() error {
	return m.imap.Close()
}

// FormatUnread renders envelopes the way they are read to the user.
func FormatUnread(envs []Envelope) string {
	if len(envs) == 0 {
		return "You have no unread messages in your primary inbox."
	}
	var sb strings.Builder
	for _, e := range envs {
		subject := e.Subject
		if subject == "" {
			subject = "No Subject"
		}
		from := e.From
		if from == "" {
			from = "Unknown"
		}
		fmt.Fprintf(&sb, "From: %s\nSubject: %s\nSnippet: %s\n\n", from, subject, e.Snippet)
	}
	return strings.TrimSpace(sb.String())
}
