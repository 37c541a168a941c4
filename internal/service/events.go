package service

import (
	"context"

	"fulfillment-service/internal/models"
)

// EventPublisher emits fulfillment events after their transaction commits
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishSupplierOrderCreated(ctx context.Context, event *models.SupplierOrderCreatedEvent) error
	PublishSupplierOrderStatusChanged(ctx context.Context, event *models.SupplierOrderStatusChangedEvent) error
}

// NoopPublisher drops every event. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderPlaced(context.Context, *models.OrderPlacedEvent) error {
	return nil
}

func (NoopPublisher) PublishSupplierOrderCreated(context.Context, *models.SupplierOrderCreatedEvent) error {
	return nil
}

func (NoopPublisher) PublishSupplierOrderStatusChanged(context.Context, *models.SupplierOrderStatusChangedEvent) error {
	return nil
}
