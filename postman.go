package membership

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Postman defaults
const (
	DefaultPostmanQueueSize   = 64
	DefaultPostmanWorkers     = 2
	DefaultPostmanSendTimeout = 30 * time.Second
)

// Postman hands messages to the Mailer off the request path. Post never
// blocks: a full or closed queue drops the message. Each message is sent
// at most once and failures are only logged.
type Postman struct {
	mailer      Mailer
	queue       chan Message
	workers     int
	sendTimeout time.Duration
	logger      Logger
	metrics     *Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// PostmanOption configures a Postman
type PostmanOption func(*Postman)

func WithPostmanQueueSize(size int) PostmanOption {
	return func(p *Postman) {
		if size > 0 {
			p.queue = make(chan Message, size)
		}
	}
}

func WithPostmanWorkers(n int) PostmanOption {
	return func(p *Postman) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithPostmanSendTimeout(d time.Duration) PostmanOption {
	return func(p *Postman) {
		if d > 0 {
			p.sendTimeout = d
		}
	}
}

func WithPostmanLogger(logger Logger) PostmanOption {
	return func(p *Postman) {
		p.logger = normalizeLogger(logger)
	}
}

func WithPostmanMetrics(metrics *Metrics) PostmanOption {
	return func(p *Postman) {
		p.metrics = metrics
	}
}

// NewPostman starts the workers draining the queue into mailer
func NewPostman(mailer Mailer, opts ...PostmanOption) *Postman {
	p := &Postman{
		mailer:      mailer,
		workers:     DefaultPostmanWorkers,
		sendTimeout: DefaultPostmanSendTimeout,
		logger:      defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.queue == nil {
		p.queue = make(chan Message, DefaultPostmanQueueSize)
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

// Post queues msg and reports whether it was accepted
func (p *Postman) Post(msg Message) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(msg, "closed")
		return false
	}

	select {
	case p.queue <- msg:
		p.metrics.mailResult("queued")
		return true
	default:
		p.drop(msg, "full")
		return false
	}
}

// Send implements Mailer so a Postman can stand in for the mail
// collaborator. It never returns an error.
func (p *Postman) Send(_ context.Context, msg Message) error {
	p.Post(msg)
	return nil
}

// Close stops accepting messages and waits for queued ones to be handed
// to the mailer, or for ctx to end.
func (p *Postman) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Postman) work() {
	defer p.wg.Done()
	for msg := range p.queue {
		p.deliver(msg)
	}
}

func (p *Postman) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.sendTimeout)
	defer cancel()

	err := p.send(ctx, msg)
	if err != nil {
		p.metrics.mailResult("failed")
		p.logger.Error("%v", MailDeliveryError(err, msg))
		return
	}

	p.metrics.mailResult("sent")
	p.logger.Debug("mail %q sent to %s", msg.Subject, msg.To)
}

func (p *Postman) send(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mailer panic: %v", r)
		}
	}()
	if p.mailer == nil {
		return fmt.Errorf("no mailer configured")
	}
	return p.mailer.Send(ctx, msg)
}

func (p *Postman) drop(msg Message, reason string) {
	p.metrics.mailResult("dropped")
	p.logger.Warn("mail %q to %s dropped, queue %s", msg.Subject, msg.To, reason)
}
