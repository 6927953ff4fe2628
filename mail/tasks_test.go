package mail_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-membership"
	"github.com/goliatone/go-membership/mail"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func TestHandler_ProcessTask(t *testing.T) {
	msg := membership.Message{To: "a@example.com", Subject: "Hi", Body: "hello"}
	task, err := mail.NewSendEmailTask(msg)
	require.NoError(t, err)
	assert.Equal(t, mail.TaskTypeSendEmail, task.Type())

	var got []membership.Message
	h := mail.NewHandler(membership.MailerFunc(func(_ context.Context, m membership.Message) error {
		got = append(got, m)
		return nil
	}), nil)

	require.NoError(t, h.ProcessTask(context.Background(), task))
	require.Len(t, got, 1)
	assert.Equal(t, msg, got[0])
}

func TestHandler_ProcessTaskSkipsRetry(t *testing.T) {
	tests := []struct {
		name   string
		task   *asynq.Task
		mailer membership.Mailer
	}{
		{
			name:   "malformed payload",
			task:   asynq.NewTask(mail.TaskTypeSendEmail, []byte("{not json")),
			mailer: membership.MailerFunc(nil),
		},
		{
			name: "delivery failure",
			task: func() *asynq.Task {
				task, _ := mail.NewSendEmailTask(membership.Message{To: "a@example.com"})
				return task
			}(),
			mailer: membership.MailerFunc(func(context.Context, membership.Message) error {
				return errors.New("relay down")
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mail.NewHandler(tt.mailer, nil).ProcessTask(context.Background(), tt.task)
			require.Error(t, err)
			assert.ErrorIs(t, err, asynq.SkipRetry)
		})
	}
}

func TestQueueMailer_Send(t *testing.T) {
	enq := &fakeEnqueuer{}
	qm := mail.NewQueueMailer(enq, mail.WithQueue("outbox"))

	msg := membership.Message{To: "a@example.com", Subject: "Hi", Body: "hello"}
	require.NoError(t, qm.Send(context.Background(), msg))

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, mail.TaskTypeSendEmail, enq.tasks[0].Type())
	assert.JSONEq(t, `{"to":"a@example.com","subject":"Hi","body":"hello"}`, string(enq.tasks[0].Payload()))

	values := map[asynq.OptionType]any{}
	for _, opt := range enq.opts[0] {
		values[opt.Type()] = opt.Value()
	}
	assert.Equal(t, "outbox", values[asynq.QueueOpt])
	assert.Equal(t, 0, values[asynq.MaxRetryOpt])
}

func TestQueueMailer_SendPropagatesEnqueueError(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("redis unavailable")}
	err := mail.NewQueueMailer(enq).Send(context.Background(), membership.Message{To: "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis unavailable")
}

func TestLogMailer_Send(t *testing.T) {
	assert.NoError(t, mail.NewLogMailer(nil).Send(context.Background(), membership.Message{To: "a@example.com"}))
}
