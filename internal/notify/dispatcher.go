package notify

import (
	"context"
	"digital-shop/internal/logkey"
	"digital-shop/internal/metrics"
	"digital-shop/internal/model"
	"log/slog"
	"sync"
	"time"
)

const sendTimeout = 30 * time.Second

// Dispatcher sends order notifications in the background. Failures are
// logged and never reach the caller.
type Dispatcher struct {
	notifier Notifier
	metrics  *metrics.Metrics
	wg       sync.WaitGroup
}

func NewDispatcher(notifier Notifier, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		metrics:  m,
	}
}

// OrderCompleted queues the confirmation and one download link per item.
func (d *Dispatcher) OrderCompleted(order *model.Order) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		d.record(ctx, KindOrderConfirmation, order, d.notifier.SendOrderConfirmation(ctx, order))
		for i := range order.Items {
			item := &order.Items[i]
			d.record(ctx, KindDownloadLink, order, d.notifier.SendDownloadLink(ctx, order, item))
		}
	}()
}

// Wait blocks until every queued notification has been attempted.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) record(ctx context.Context, kind string, order *model.Order, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
		slog.ErrorContext(ctx, "notification failed",
			slog.String("kind", kind),
			slog.String(logkey.OrderID, order.OrderID),
			slog.String(logkey.Error, err.Error()))
	}
	if d.metrics != nil {
		d.metrics.Notifications.WithLabelValues(kind, outcome).Inc()
	}
}
