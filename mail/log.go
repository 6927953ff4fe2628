package mail

import (
	"context"

	"github.com/goliatone/go-membership"
)

// LogMailer writes messages to the logger instead of sending them.
// Used in debug mode and when no SMTP host is configured.
type LogMailer struct {
	logger membership.Logger
}

var _ membership.Mailer = (*LogMailer)(nil)

func NewLogMailer(logger membership.Logger) *LogMailer {
	if logger == nil {
		logger = membership.NewZapLogger(nil)
	}
	return &LogMailer{logger: logger}
}

func (l *LogMailer) Send(_ context.Context, msg membership.Message) error {
	l.logger.Info("====== MAIL =======\nto: %s\nsubject: %s\n\n%s", msg.To, msg.Subject, msg.Body)
	return nil
}
