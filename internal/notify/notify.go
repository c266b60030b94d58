package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"gazette-monitor/internal/shared/metrics"
	"gazette-monitor/internal/shared/telemetry"
)

// ErrNotConfigured is returned by a notifier missing required credentials.
var ErrNotConfigured = errors.New("notifier not configured")

// Notifier delivers a message to one channel.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
	Name() string
}

// Broadcast delivers msg to every notifier concurrently and returns how many succeeded.
// Every notifier is attempted; the returned error joins the failures.
func Broadcast(ctx context.Context, notifiers []Notifier, msg Message) (int, error) {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
		sent int
	)
	for _, n := range notifiers {
		g.Go(func() error {
			if err := n.Notify(ctx, msg); err != nil {
				metrics.IncNotificationsFailed()
				telemetry.Error("notify.failed", map[string]any{"notifier": n.Name(), "error": err.Error()})
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
				mu.Unlock()
				return nil
			}
			metrics.IncNotificationsSent()
			mu.Lock()
			sent++
			mu.Unlock()
			telemetry.Info("notify.sent", map[string]any{"notifier": n.Name()})
			return nil
		})
	}
	_ = g.Wait()
	return sent, errors.Join(errs...)
}
