package mail

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-membership"
	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue is the asynq queue mail tasks are enqueued on
	DefaultQueue = "mail"
	// TaskTypeSendEmail is the task type for outgoing membership email
	TaskTypeSendEmail = "mail:send"
)

// NewSendEmailTask constructs an asynq task carrying msg
func NewSendEmailTask(msg membership.Message) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// Handler delivers TaskTypeSendEmail tasks through a Mailer. Delivery is
// at most once: failures are logged and never retried.
type Handler struct {
	mailer membership.Mailer
	logger membership.Logger
}

var _ asynq.Handler = (*Handler)(nil)

func NewHandler(mailer membership.Mailer, logger membership.Logger) *Handler {
	if logger == nil {
		logger = membership.NewZapLogger(nil)
	}
	return &Handler{mailer: mailer, logger: logger}
}

// ProcessTask implements asynq.Handler
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var msg membership.Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		h.logger.Error("malformed %s payload: %v", t.Type(), err)
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		h.logger.Error("%v", membership.MailDeliveryError(err, msg))
		return fmt.Errorf("send to %s: %v: %w", msg.To, err, asynq.SkipRetry)
	}

	h.logger.Info("mail %q sent to %s", msg.Subject, msg.To)
	return nil
}
