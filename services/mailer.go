package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/cmsp-lab/lab-orders-api/config"
	"gopkg.in/gomail.v2"
)

// Mail is a single HTML e-mail to one recipient.
type Mail struct {
	To       string
	Subject  string
	HTMLBody string
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// SMTPMailer delivers mail through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:   cfg.MailFrom,
	}
}

func (s *SMTPMailer) Send(ctx context.Context, m Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/html", m.HTMLBody)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", m.To, err)
	}
	return nil
}

// RecordingMailer keeps sent mail in memory for testing
type RecordingMailer struct {
	mu   sync.Mutex
	sent []Mail

	// FailTimes makes the first N Send calls fail.
	FailTimes int
	calls     int
}

func NewRecordingMailer() *RecordingMailer {
	return &RecordingMailer{}
}

func (r *RecordingMailer) Send(ctx context.Context, m Mail) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.calls <= r.FailTimes {
		return fmt.Errorf("smtp unavailable (call %d)", r.calls)
	}
	r.sent = append(r.sent, m)
	return nil
}

// Sent returns a copy of the delivered mail.
func (r *RecordingMailer) Sent() []Mail {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Mail, len(r.sent))
	copy(out, r.sent)
	return out
}

// Calls returns how many times Send was invoked.
func (r *RecordingMailer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
