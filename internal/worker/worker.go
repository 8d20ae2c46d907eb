package worker

import (
	"context"
	"log"
	"time"

	"reservation-service/internal/broker"
	"reservation-service/internal/models"
	"reservation-service/internal/reservation"
	"reservation-service/internal/util"

	"go.uber.org/zap"
)

// SweepWorker periodically removes expired holds. The lifecycle manager
// already sweeps opportunistically on every reserve/list call; this ticker
// keeps the table clean during idle stretches.
type SweepWorker struct {
	holds    reservation.HoldStore
	interval time.Duration
	logger   *zap.Logger
	done     chan struct{}
}

// NewSweepWorker creates a new sweep worker
func NewSweepWorker(holds reservation.HoldStore, interval time.Duration) *SweepWorker {
	return &SweepWorker{
		holds:    holds,
		interval: interval,
		logger:   util.NamedLogger("sweeper"),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled
func (w *SweepWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting sweep worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case <-ticker.C:
			removed, err := w.holds.Sweep(ctx)
			if err != nil {
				w.logger.Warn("Sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				util.HoldsExpiredTotal.Add(float64(removed))
				w.logger.Info("Expired holds swept", zap.Int("removed", removed))
			}
		}
	}
}

// Stop stops the worker
func (w *SweepWorker) Stop() {
	close(w.done)
}

// PaymentOrderStore is the slice of the order store the payment worker needs.
type PaymentOrderStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	UpdateOrderPaymentStatus(ctx context.Context, orderID int64, paymentStatus string) error
}

// PaymentWorker consumes the payment processor's callback events and flips
// the order's payment status. Order status transitions stay with the admin
// workflow; only reserved -> paid is applied here.
type PaymentWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        PaymentOrderStore
	logger       *zap.Logger
}

// NewPaymentWorker creates a new payment worker
func NewPaymentWorker(consumer *broker.Consumer, store PaymentOrderStore) *PaymentWorker {
	w := &PaymentWorker{
		consumer: consumer,
		store:    store,
		logger:   util.NamedLogger("payments"),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentCompleted(w.handlePaymentCompleted)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *PaymentWorker) Start(ctx context.Context) error {
	log.Println("Starting payment worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *PaymentWorker) Stop() error {
	log.Println("Stopping payment worker...")
	return w.consumer.Close()
}

func (w *PaymentWorker) handlePaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	w.logger.Info("Handling payment completion",
		zap.Int64("order_id", event.OrderID),
		zap.String("tx_id", event.ProviderTxID))

	if err := w.store.UpdateOrderPaymentStatus(ctx, event.OrderID, models.PaymentStatusPaid); err != nil {
		return err
	}

	util.OrdersPaidTotal.Inc()

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	return nil
}
