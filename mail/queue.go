package mail

import (
	"context"

	"github.com/goliatone/go-membership"
	"github.com/hibiken/asynq"
)

// Enqueuer is the part of asynq.Client the QueueMailer needs
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueMailer implements membership.Mailer by enqueuing a task for the
// mail worker. Tasks are enqueued with MaxRetry(0).
type QueueMailer struct {
	client Enqueuer
	queue  string
}

var _ membership.Mailer = (*QueueMailer)(nil)

// QueueOption configures a QueueMailer
type QueueOption func(*QueueMailer)

// WithQueue sets the asynq queue name
func WithQueue(name string) QueueOption {
	return func(q *QueueMailer) {
		if name != "" {
			q.queue = name
		}
	}
}

func NewQueueMailer(client Enqueuer, opts ...QueueOption) *QueueMailer {
	q := &QueueMailer{
		client: client,
		queue:  DefaultQueue,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

// NewRedisClient builds the asynq client for addr
func NewRedisClient(addr, password string, db int) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Send implements membership.Mailer
func (q *QueueMailer) Send(ctx context.Context, msg membership.Message) error {
	task, err := NewSendEmailTask(msg)
	if err != nil {
		return err
	}

	_, err = q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.queue),
		asynq.MaxRetry(0),
	)
	return err
}
