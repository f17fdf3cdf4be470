// Package mail delivers rendered reports over SMTP.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"finwise/internal/log"

	"github.com/jordan-wright/email"
)

// Attachment is a file sent along with a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender sends report e-mails.
type Sender struct {
	cfg    Config
	logger *log.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewSender(cfg Config, logger *log.Logger) *Sender {
	if logger == nil {
		logger = log.Discard()
	}
	return &Sender{
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentMail),
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// Send mails subject and body with attachments to every recipient.
func (s *Sender) Send(ctx context.Context, to []string, subject, body string, attachments ...Attachment) error {
	if len(to) == 0 {
		return errors.New("no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = to
	e.Subject = subject
	e.Text = []byte(body)
	for _, a := range attachments {
		if _, err := e.Attach(bytes.NewReader(a.Data), a.Name, a.ContentType); err != nil {
			return fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(e, addr, auth); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send email",
			log.FieldError, err,
			"recipients", len(to))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.InfoContext(ctx, "Email sent",
		"subject", subject,
		"recipients", len(to),
		"attachments", len(attachments))
	return nil
}
