package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/pricing"
	"fulfillment-service/internal/repository"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// OrderService turns carts into orders and their supplier orders
type OrderService struct {
	repo           repository.Repository
	locker         CartLocker
	eventPublisher EventPublisher
	policy         pricing.Policy
	maxRetries     int
	now            func() time.Time
	newTxID        func() string
	newOrderNumber func(time.Time) string
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	repo repository.Repository,
	locker CartLocker,
	eventPublisher EventPublisher,
	policy pricing.Policy,
	maxRetries int,
) *OrderService {
	return &OrderService{
		repo:           repo,
		locker:         locker,
		eventPublisher: eventPublisher,
		policy:         policy,
		maxRetries:     maxRetries,
		now:            func() time.Time { return time.Now().UTC() },
		newTxID:        NewTransactionID,
		newOrderNumber: NewSupplierOrderNumber,
		logger:         util.GetLogger(),
	}
}

// CheckoutResult is the order created by a checkout plus its supplier orders
type CheckoutResult struct {
	Order          *models.Order           `json:"order"`
	SupplierOrders []*models.SupplierOrder `json:"supplier_orders"`
}

// Checkout converts the customer's cart into an order and fans it out to suppliers
// in a single transaction. Stock reserved at add time is consumed by the order.
func (s *OrderService) Checkout(ctx context.Context, customerID int64, paymentMethod string) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Checkout")
	defer span.End()

	paymentMethod = strings.TrimSpace(paymentMethod)
	if paymentMethod == "" {
		return nil, apperror.ErrPaymentMethodRequired
	}
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, customerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := util.LoggerFromContext(ctx, s.logger)

	var result *CheckoutResult
	err = retryOnConflict(ctx, logger, "order.checkout", s.maxRetries, func() error {
		res, err := s.placeOrder(ctx, customerID, paymentMethod)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		if apperror.KindOf(err) == apperror.KindPersistence {
			err = apperror.CheckoutFailed(err)
		}
		util.CheckoutsFailedTotal.WithLabelValues(checkoutFailureReason(err)).Inc()
		util.RecordError(span, err)
		logger.Warn("Checkout failed",
			zap.Int64("customer_id", customerID),
			zap.Error(err))
		return nil, err
	}

	util.CheckoutsTotal.Inc()
	util.SupplierOrdersCreatedTotal.Add(float64(len(result.SupplierOrders)))
	logger.Info("Order created",
		zap.Int64("order_id", result.Order.ID),
		zap.Int64("customer_id", customerID),
		zap.String("transaction_id", result.Order.TransactionID),
		zap.String("total", result.Order.Total.StringFixed(2)),
		zap.Int("supplier_orders", len(result.SupplierOrders)))

	s.publish(ctx, logger, result)
	return result, nil
}

func (s *OrderService) placeOrder(ctx context.Context, customerID int64, paymentMethod string) (*CheckoutResult, error) {
	var result *CheckoutResult
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cart, err := tx.LockCart(ctx, customerID)
		if err != nil {
			return err
		}
		if cart == nil {
			return apperror.ErrCartNotFound.WithDetail("customer %d", customerID)
		}
		if cart.Finalized || cart.IsEmpty() {
			return apperror.ErrEmptyCart
		}

		cart.Recalculate(s.policy)
		now := s.now()
		order := newOrder(cart, paymentMethod, s.newTxID(), now)

		if err := tx.CreateOrder(ctx, order); err != nil {
			return checkoutFailure(err)
		}

		articles, err := tx.GetArticles(ctx, order.ArticleIDs())
		if err != nil {
			return checkoutFailure(err)
		}
		supplierOrders, err := SplitBySupplier(order, articles, now, s.newOrderNumber)
		if err != nil {
			return checkoutFailure(err)
		}
		for _, so := range supplierOrders {
			if err := tx.CreateSupplierOrder(ctx, so); err != nil {
				return checkoutFailure(err)
			}
		}

		cart.Finalize()
		if err := tx.SaveCart(ctx, cart); err != nil {
			return checkoutFailure(err)
		}

		result = &CheckoutResult{Order: order, SupplierOrders: supplierOrders}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func newOrder(cart *models.Cart, paymentMethod, transactionID string, now time.Time) *models.Order {
	items := cart.Items()
	order := &models.Order{
		CustomerID:    cart.CustomerID,
		Status:        models.OrderStatusPending,
		PaymentMethod: paymentMethod,
		TransactionID: transactionID,
		Subtotal:      cart.Subtotal,
		Tax:           cart.Tax,
		Shipping:      cart.Shipping,
		Total:         cart.Total,
		CreatedAt:     now,
		Items:         make([]models.OrderItem, 0, len(items)),
	}
	for _, item := range items {
		order.Items = append(order.Items, models.OrderItem{
			ArticleID:   item.ArticleID,
			ArticleName: item.ArticleName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   pricing.LineTotal(item.UnitPrice, item.Quantity),
		})
	}
	return order
}

// checkoutFailure rolls any error after order creation into CheckoutFailed,
// keeping version conflicts retryable.
func checkoutFailure(err error) error {
	if errors.Is(err, apperror.ErrConflict) {
		return err
	}
	return apperror.CheckoutFailed(err)
}

func checkoutFailureReason(err error) string {
	switch {
	case errors.Is(err, apperror.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, apperror.ErrCartNotFound):
		return "cart_not_found"
	case errors.Is(err, apperror.ErrConflict):
		return "conflict"
	case errors.Is(err, apperror.ErrCheckoutFailed):
		return "checkout_failed"
	default:
		return "error"
	}
}

func (s *OrderService) publish(ctx context.Context, logger *zap.Logger, result *CheckoutResult) {
	if err := s.eventPublisher.PublishOrderPlaced(ctx, models.NewOrderPlacedEvent(result.Order)); err != nil {
		logger.Error("Failed to publish OrderPlaced event",
			zap.Int64("order_id", result.Order.ID),
			zap.Error(err))
	}
	for _, so := range result.SupplierOrders {
		if err := s.eventPublisher.PublishSupplierOrderCreated(ctx, models.NewSupplierOrderCreatedEvent(so)); err != nil {
			logger.Error("Failed to publish SupplierOrderCreated event",
				zap.String("order_number", so.OrderNumber),
				zap.Error(err))
		}
	}
}

// ListForCustomer returns the customer's orders, newest first
func (s *OrderService) ListForCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListForCustomer")
	defer span.End()

	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	orders, err := s.repo.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// GetOrder returns one of the customer's orders
func (s *OrderService) GetOrder(ctx context.Context, customerID, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, apperror.ErrOrderNotFound.WithDetail("order %d", orderID)
	}
	return order, nil
}
