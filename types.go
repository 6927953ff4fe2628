package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the options the core recognizes
type Config interface {
	// GetSecretKey is the process wide secret used to sign tokens
	GetSecretKey() string
	// GetBaseURL is used to build the links we send by email
	GetBaseURL() string
}

// Mailer is the mail collaborator. Send is best effort.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, msg Message) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, msg Message) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

// Message is a single outgoing email
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// CapabilityReader answers point in time capability questions
type CapabilityReader interface {
	ActiveCapabilities(ctx context.Context, memberID uuid.UUID, at time.Time) (CapabilitySet, error)
}

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

func defaultClock() time.Time {
	return time.Now()
}

// utc normalizes t to the precision we persist
func utc(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (c Clock) now() time.Time {
	if c == nil {
		return utc(defaultClock())
	}
	return utc(c())
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] MEMBERSHIP "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] MEMBERSHIP "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] MEMBERSHIP "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] MEMBERSHIP "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
