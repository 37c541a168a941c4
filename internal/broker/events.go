package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher is the subset of Producer the event publisher needs
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing fulfillment events
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSupplierOrderCreated publishes SupplierOrderCreated event
func (ep *EventPublisher) PublishSupplierOrderCreated(ctx context.Context, event *models.SupplierOrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, event.OrderNumber, event)
}

// PublishSupplierOrderStatusChanged publishes SupplierOrderStatusChanged event
func (ep *EventPublisher) PublishSupplierOrderStatusChanged(ctx context.Context, event *models.SupplierOrderStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, event.OrderNumber, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onSupplierOrderCreated func(context.Context, *models.SupplierOrderCreatedEvent) error
	logger                 *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnSupplierOrderCreated registers a handler for SupplierOrderCreated events
func (eh *EventHandler) OnSupplierOrderCreated(handler func(context.Context, *models.SupplierOrderCreatedEvent) error) {
	eh.onSupplierOrderCreated = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeSupplierOrderCreated:
		if eh.onSupplierOrderCreated != nil {
			var event models.SupplierOrderCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SupplierOrderCreated event: %w", err)
			}
			return eh.onSupplierOrderCreated(ctx, &event)
		}

	case models.EventTypeOrderPlaced, models.EventTypeSupplierOrderStatusChanged:
		// informational, consumed by downstream services

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
