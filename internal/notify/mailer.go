// Package notify emails invoices to clients in the background.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"invoice-service/pkg/config"
)

// Attachment is a file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a single outgoing email.
type Message struct {
	From        string
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// ErrInvalidMessage marks a message no retry can deliver, such as one with a
// malformed address.
var ErrInvalidMessage = errors.New("invalid message")

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	client *mail.Client
}

// NewSMTPMailer builds a mailer from the MAIL_* settings.
func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("smtp host not configured")
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPMailer{client: client}, nil
}

func (s *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("%w: from address: %v", ErrInvalidMessage, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("%w: recipient: %v", ErrInvalidMessage, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	for _, a := range msg.Attachments {
		err := m.AttachReader(a.Filename, bytes.NewReader(a.Data),
			mail.WithFileContentType(mail.ContentType(a.ContentType)))
		if err != nil {
			return fmt.Errorf("%w: attach %s: %v", ErrInvalidMessage, a.Filename, err)
		}
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them. Used when no
// SMTP relay is configured.
type LogMailer struct {
	Log *zap.Logger
}

func (l LogMailer) Send(_ context.Context, msg *Message) error {
	log := l.Log
	if log == nil {
		log = zap.L()
	}
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Filename)
	}
	log.Info("Email not sent, SMTP disabled",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Strings("attachments", names))
	return nil
}
