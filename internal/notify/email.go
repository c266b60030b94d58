package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

// EmailOptions configures SMTP delivery.
type EmailOptions struct {
	Addr     string
	Username string
	Password string
	From     string
	To       []string
}

// Email sends run outcomes over SMTP.
type Email struct {
	opts EmailOptions
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewEmail returns an SMTP notifier using PLAIN auth when a username is set.
func NewEmail(opts EmailOptions) *Email {
	return &Email{
		opts: opts,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// Name identifies the notifier in logs.
func (e *Email) Name() string { return "email" }

// Notify sends msg as a plain-text e-mail.
func (e *Email) Notify(ctx context.Context, msg Message) error {
	if strings.TrimSpace(e.opts.Addr) == "" || e.opts.From == "" || len(e.opts.To) == 0 {
		return fmt.Errorf("email: %w", ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := email.NewEmail()
	mail.From = e.opts.From
	mail.To = e.opts.To
	mail.Subject = msg.Subject()
	mail.Text = []byte(msg.Markdown())

	var auth smtp.Auth
	if e.opts.Username != "" {
		host, _, err := net.SplitHostPort(e.opts.Addr)
		if err != nil {
			return fmt.Errorf("email: smtp addr %q: %w", e.opts.Addr, err)
		}
		auth = smtp.PlainAuth("", e.opts.Username, e.opts.Password, host)
	}
	if err := e.send(mail, e.opts.Addr, auth); err != nil {
		return fmt.Errorf("email: send: %w", err)
	}
	return nil
}
