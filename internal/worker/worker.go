package worker

import (
	"context"
	"log"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/models"
	"marketplace-service/internal/redisclient"
	"marketplace-service/internal/service"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// StatsWorker consumes order events and maintains the daily sales
// counters in Redis. Processing is idempotent: every event id is recorded
// in processed_events and replays are skipped.
type StatsWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	redis        *redisclient.Client
	logger       *zap.Logger
}

// NewStatsWorker creates a new stats worker
func NewStatsWorker(consumer *broker.Consumer, store *store.Store, redis *redisclient.Client) *StatsWorker {
	w := &StatsWorker{
		consumer: consumer,
		store:    store,
		redis:    redis,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	eventHandler.OnOrderStatusChanged(w.handleOrderStatusChanged)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *StatsWorker) Start(ctx context.Context) error {
	log.Println("Starting stats worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StatsWorker) Stop() error {
	log.Println("Stopping stats worker...")
	return w.consumer.Close()
}

func (w *StatsWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	day := service.DayKey(event.Timestamp)
	if err := w.redis.IncrSales(ctx, day, event.TotalAmount); err != nil {
		return err
	}

	w.logger.Info("Sales counters updated",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("amount", event.TotalAmount),
		zap.String("day", day))

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func (w *StatsWorker) handleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	w.logger.Info("Order status event",
		zap.Int64("order_id", event.OrderID),
		zap.String("from", event.OldStatus),
		zap.String("to", event.NewStatus))

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
