// Package notification delivers operator notifications for conditions that
// need a human, such as a classifier deployed with the wrong feature schema.
package notification

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"
	"fmt"
	"net/smtp"
	"strings"
)

// EmailNotifier implements model.Notifier over SMTP.
type EmailNotifier struct {
	cfg        config.SMTPConfig
	auth       smtp.Auth
	recipients []string
	send       func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier returns nil when no SMTP host is configured, so callers can
// treat notifications as disabled.
func NewEmailNotifier(cfg config.SMTPConfig) model.Notifier {
	if cfg.Host == "" || cfg.To == "" {
		return nil
	}
	var recipients []string
	for _, r := range strings.Split(cfg.To, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		// PlainAuth will not send credentials until the server identifies itself as a trusted one.
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &EmailNotifier{cfg: cfg, auth: auth, recipients: recipients, send: smtp.SendMail}
}

// Send emails subject and the HTML body to the configured recipients.
func (n *EmailNotifier) Send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	msg := []byte("To: " + strings.Join(n.recipients, ", ") + "\r\n" +
		"From: " + n.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		body)

	if err := n.send(addr, n.auth, n.cfg.From, n.recipients, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
