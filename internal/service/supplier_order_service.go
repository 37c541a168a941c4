package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/repository"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

const dispatchNote = "dispatched to supplier"

// SupplierOrderService serves supplier order projections and drives their status lifecycle
type SupplierOrderService struct {
	repo           repository.Repository
	eventPublisher EventPublisher
	maxRetries     int
	logger         *zap.Logger
}

// NewSupplierOrderService creates a new supplier order service
func NewSupplierOrderService(repo repository.Repository, eventPublisher EventPublisher, maxRetries int) *SupplierOrderService {
	return &SupplierOrderService{
		repo:           repo,
		eventPublisher: eventPublisher,
		maxRetries:     maxRetries,
		logger:         util.GetLogger(),
	}
}

// ListBySupplier returns the supplier's orders newest first, optionally narrowed to one status
func (s *SupplierOrderService) ListBySupplier(ctx context.Context, supplierID int64, status string) ([]models.SupplierOrder, error) {
	ctx, span := util.StartSpan(ctx, "SupplierOrderService.ListBySupplier")
	defer span.End()

	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" && !models.IsSupplierOrderStatus(status) {
		return nil, apperror.ErrInvalidStatus.WithDetail("%s", status)
	}
	if _, err := s.repo.GetSupplier(ctx, supplierID); err != nil {
		return nil, err
	}

	orders, err := s.repo.ListSupplierOrdersBySupplier(ctx, supplierID, status)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.SupplierOrder{}
	}
	return orders, nil
}

// ListByOrder returns the supplier orders produced by one customer order
func (s *SupplierOrderService) ListByOrder(ctx context.Context, orderID int64) ([]models.SupplierOrder, error) {
	ctx, span := util.StartSpan(ctx, "SupplierOrderService.ListByOrder")
	defer span.End()

	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}

	orders, err := s.repo.ListSupplierOrdersByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.SupplierOrder{}
	}
	return orders, nil
}

// FindByOrderNumber looks a supplier order up by its OVP number
func (s *SupplierOrderService) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.SupplierOrder, error) {
	ctx, span := util.StartSpan(ctx, "SupplierOrderService.FindByOrderNumber")
	defer span.End()

	return s.repo.GetSupplierOrderByNumber(ctx, strings.TrimSpace(orderNumber))
}

// UpdateStatus moves a supplier order to status, recording notes
func (s *SupplierOrderService) UpdateStatus(ctx context.Context, orderNumber, status, notes string) (*models.SupplierOrder, error) {
	ctx, span := util.StartSpan(ctx, "SupplierOrderService.UpdateStatus")
	defer span.End()

	status = strings.ToUpper(strings.TrimSpace(status))
	if !models.IsSupplierOrderStatus(status) {
		return nil, apperror.ErrInvalidStatus.WithDetail("%s", status)
	}

	logger := util.LoggerFromContext(ctx, s.logger)

	var (
		so   *models.SupplierOrder
		from string
	)
	err := retryOnConflict(ctx, logger, "supplier_order.update_status", s.maxRetries, func() error {
		current, err := s.repo.GetSupplierOrderByNumber(ctx, orderNumber)
		if err != nil {
			return err
		}
		if !models.CanTransitionSupplierOrder(current.Status, status) {
			return apperror.ErrInvalidStatusTransition.WithDetail("%s -> %s", current.Status, status)
		}
		if err := s.repo.UpdateSupplierOrderStatus(ctx, orderNumber, current.Status, status, notes); err != nil {
			return err
		}

		from = current.Status
		current.Status = status
		current.Notes = notes
		so = current
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.SupplierOrderTransitionsTotal.WithLabelValues(status).Inc()
	logger.Info("Supplier order status updated",
		zap.String("order_number", orderNumber),
		zap.String("from", from),
		zap.String("to", status))

	event := models.NewSupplierOrderStatusChangedEvent(so, from)
	if err := s.eventPublisher.PublishSupplierOrderStatusChanged(ctx, event); err != nil {
		logger.Error("Failed to publish SupplierOrderStatusChanged event",
			zap.String("order_number", orderNumber),
			zap.Error(err))
	}
	return so, nil
}

// HandleSupplierOrderCreated dispatches a new supplier order by marking it SENT.
// Redelivered events are ignored.
func (s *SupplierOrderService) HandleSupplierOrderCreated(ctx context.Context, event *models.SupplierOrderCreatedEvent) error {
	ctx, span := util.StartSpan(ctx, "SupplierOrderService.HandleSupplierOrderCreated")
	defer span.End()

	processed, err := s.repo.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		s.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	_, err = s.UpdateStatus(ctx, event.OrderNumber, models.SupplierOrderStatusSent, dispatchNote)
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrInvalidStatusTransition):
		s.logger.Info("Supplier order no longer pending, skipping dispatch",
			zap.String("order_number", event.OrderNumber))
	default:
		return fmt.Errorf("failed to dispatch supplier order %s: %w", event.OrderNumber, err)
	}

	if err := s.repo.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}
