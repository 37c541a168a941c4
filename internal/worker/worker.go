package worker

import (
	"context"

	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// MessageSource is where the worker reads fulfillment events from
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// SupplierDispatchWorker forwards newly created supplier orders to their suppliers
type SupplierDispatchWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewSupplierDispatchWorker creates a new supplier dispatch worker
func NewSupplierDispatchWorker(
	consumer MessageSource,
	supplierOrders *service.SupplierOrderService,
) *SupplierDispatchWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnSupplierOrderCreated(supplierOrders.HandleSupplierOrderCreated)

	return &SupplierDispatchWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start consumes events until ctx is cancelled
func (w *SupplierDispatchWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting supplier dispatch worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SupplierDispatchWorker) Stop() error {
	w.logger.Info("Stopping supplier dispatch worker")
	return w.consumer.Close()
}
