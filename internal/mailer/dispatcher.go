package mailer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sidequest/internal/observability"
)

const sendTimeout = 10 * time.Second

// Dispatcher sends messages in the background so request handlers never
// wait on the email provider.
type Dispatcher struct {
	mailer Mailer
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher wraps m.
func NewDispatcher(m Mailer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{mailer: m, logger: logger}
}

// Dispatch queues msg. After Close it is a no-op.
func (d *Dispatcher) Dispatch(msg Message) {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := d.mailer.Send(ctx, msg); err != nil {
			observability.EmailsTotal.WithLabelValues("failed").Inc()
			d.logger.Warn("email delivery failed",
				slog.String("to", msg.To),
				slog.String("subject", msg.Subject),
				slog.String("error", err.Error()),
			)
			return
		}
		observability.EmailsTotal.WithLabelValues("sent").Inc()
	}()
}

// Close stops accepting messages and waits for in-flight sends or ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
