package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/pkg/id"
)

// ErrQueueFull is returned by Dispatch when every queue slot is taken.
var ErrQueueFull = errors.New("notification queue full")

type mailer interface {
	SendEmail(ctx context.Context, msg domain.EmailMessage) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type archiver interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

type PoolDeps struct {
	Mailer      mailer
	SMSSender   smsSender // optional
	Archiver    archiver  // optional
	Workers     int
	QueueSize   int
	MaxRetries  int
	SendTimeout time.Duration
	Logger      *slog.Logger
}

// Pool delivers notification tasks on a fixed set of workers fed by a bounded
// queue. Callers never wait on SMTP, SNS or S3.
type Pool struct {
	mailer      mailer
	sms         smsSender
	archiver    archiver
	tasks       chan domain.NotificationTask
	workers     int
	maxRetries  int
	sendTimeout time.Duration
	logger      *slog.Logger
	newBackOff  func() backoff.BackOff
	wg          sync.WaitGroup
}

func NewPool(deps PoolDeps) *Pool {
	if deps.Workers < 1 {
		deps.Workers = 1
	}
	if deps.QueueSize < 1 {
		deps.QueueSize = 1
	}
	if deps.SendTimeout <= 0 {
		deps.SendTimeout = 15 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pool{
		mailer:      deps.Mailer,
		sms:         deps.SMSSender,
		archiver:    deps.Archiver,
		tasks:       make(chan domain.NotificationTask, deps.QueueSize),
		workers:     deps.Workers,
		maxRetries:  deps.MaxRetries,
		sendTimeout: deps.SendTimeout,
		logger:      deps.Logger,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

// Start launches the workers. They stop when ctx is cancelled; tasks still
// queued at that point are dropped and counted in the log.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-p.tasks:
					if err := p.Deliver(ctx, t); err != nil {
						p.logger.Error("notification delivery failed", "task_id", t.ID, "kind", t.Kind, "err", err)
					}
				}
			}
		}()
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
	if n := len(p.tasks); n > 0 {
		p.logger.Warn("dropping undelivered notifications", "count", n)
	}
}

// Dispatch enqueues t without blocking.
func (p *Pool) Dispatch(_ context.Context, t domain.NotificationTask) error {
	if t.ID == "" {
		t.ID = id.New()
	}
	select {
	case p.tasks <- t:
		return nil
	default:
		return fmt.Errorf("dispatch %s task %s: %w", t.Kind, t.ID, ErrQueueFull)
	}
}

// Deliver performs every part of t, retrying each independently with
// exponential backoff. One failing part does not stop the others.
func (p *Pool) Deliver(ctx context.Context, t domain.NotificationTask) error {
	var errs []error
	if t.Email != nil {
		if err := p.retry(ctx, func(ctx context.Context) error { return p.mailer.SendEmail(ctx, *t.Email) }); err != nil {
			errs = append(errs, fmt.Errorf("email to %s: %w", t.Email.To, err))
		}
	}
	if t.SMS != nil && p.sms != nil {
		if err := p.retry(ctx, func(ctx context.Context) error { return p.sms.SendSMS(ctx, t.SMS.To, t.SMS.Body) }); err != nil {
			errs = append(errs, fmt.Errorf("sms to %s: %w", t.SMS.To, err))
		}
	}
	if t.Archive != nil && p.archiver != nil {
		err := p.retry(ctx, func(ctx context.Context) error {
			_, err := p.archiver.Upload(ctx, t.Archive.Key, bytes.NewReader(t.Archive.Body), t.Archive.ContentType)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("archive %s: %w", t.Archive.Key, err))
		}
	}
	if len(errs) == 0 {
		p.logger.Debug("notification delivered", "task_id", t.ID, "kind", t.Kind)
	}
	return errors.Join(errs...)
}

func (p *Pool) retry(ctx context.Context, op func(ctx context.Context) error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), uint64(p.maxRetries)), ctx)
	return backoff.Retry(func() error {
		opCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
		defer cancel()
		return op(opCtx)
	}, b)
}
