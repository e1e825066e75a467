/*
Package notify implements the notification dispatcher contract.

PURPOSE:
  The engine treats mail delivery as an out-of-scope collaborator: it
  hands over (recipients, subject, body) and gets back success/failure.
  A dispatch failure is reported to the caller, who logs it - it never
  blocks or rolls back a ledger commit already made.

IMPLEMENTATIONS:
  SMTP:     gomail-backed delivery (production)
  Logger:   log-only dispatcher (dev, no SMTP configured)
  Recorder: captures messages in memory (tests)
*/
package notify

import (
	"context"
	"fmt"
	"log"
	"sync"

	gomail "gopkg.in/gomail.v2"
)

// =============================================================================
// SMTP - production dispatcher
// =============================================================================

// SMTPConfig carries the mail transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP dispatches HTML mail over an SMTP transport.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers one message to all recipients. The transport has no
// context support; ctx is checked once before dialing.
func (s *SMTP) Send(ctx context.Context, recipients []string, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// =============================================================================
// LOGGER - dev dispatcher
// =============================================================================

// Logger writes would-be notifications to the process log. Used when no
// SMTP transport is configured.
type Logger struct{}

func (Logger) Send(_ context.Context, recipients []string, subject, _ string) error {
	log.Printf("[Notify] (log only) to=%v subject=%q", recipients, subject)
	return nil
}

// =============================================================================
// RECORDER - test dispatcher
// =============================================================================

// Message is one captured dispatch.
type Message struct {
	Recipients []string
	Subject    string
	Body       string
}

// Recorder captures dispatches in memory for assertions.
type Recorder struct {
	mu       sync.Mutex
	messages []Message

	// Err, when set, is returned by every Send (simulates outages).
	Err error
}

func (r *Recorder) Send(_ context.Context, recipients []string, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, Message{Recipients: recipients, Subject: subject, Body: body})
	return nil
}

// Messages returns a copy of everything captured so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
