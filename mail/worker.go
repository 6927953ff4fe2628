package mail

import (
	"context"
	"fmt"

	"github.com/goliatone/go-membership"
	"github.com/hibiken/asynq"
)

// WorkerConfig configures the asynq mail worker
type WorkerConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Queue         string
	Concurrency   int
}

// Worker processes mail tasks
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger membership.Logger
}

// NewWorker builds a worker that delivers queued mail through mailer
func NewWorker(cfg WorkerConfig, mailer membership.Mailer, logger membership.Logger) *Worker {
	if logger == nil {
		logger = membership.NewZapLogger(nil)
	}

	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.Handle(TaskTypeSendEmail, NewHandler(mailer, logger))

	return &Worker{server: server, mux: mux, logger: logger}
}

// Run starts the server and blocks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("mail worker: %w", err)
	}

	<-ctx.Done()
	w.logger.Info("shutting down mail worker")
	w.server.Shutdown()
	return nil
}
