package service

import (
	"context"
	"errors"
	"time"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/pricing"
	"fulfillment-service/internal/repository"
	"fulfillment-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const compensationTimeout = 5 * time.Second

// CartService owns the per-customer cart and keeps it consistent with the ledger
type CartService struct {
	repo       repository.Repository
	ledger     *InventoryLedger
	locker     CartLocker
	policy     pricing.Policy
	maxRetries int
	logger     *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(
	repo repository.Repository,
	ledger *InventoryLedger,
	locker CartLocker,
	policy pricing.Policy,
	maxRetries int,
) *CartService {
	return &CartService{
		repo:       repo,
		ledger:     ledger,
		locker:     locker,
		policy:     policy,
		maxRetries: maxRetries,
		logger:     util.GetLogger(),
	}
}

// CartItemView is one line of a cart as returned to callers
type CartItemView struct {
	ArticleID   int64           `json:"article_id"`
	ArticleName string          `json:"article_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// CartView is the read model of a cart
type CartView struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	Items      []CartItemView  `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Shipping   decimal.Decimal `json:"shipping"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
}

func newCartView(cart *models.Cart) *CartView {
	view := &CartView{
		ID:         cart.ID,
		CustomerID: cart.CustomerID,
		Items:      make([]CartItemView, 0),
		Subtotal:   cart.Subtotal,
		Tax:        cart.Tax,
		Shipping:   cart.Shipping,
		Total:      cart.Total,
		CreatedAt:  cart.CreatedAt,
	}
	if cart.Finalized {
		// A consumed cart reads as a fresh empty one until the next add resets it.
		zero := pricing.Zero()
		view.Subtotal, view.Tax, view.Shipping, view.Total = zero.Subtotal, zero.Tax, zero.Shipping, zero.Total
		return view
	}
	for _, item := range cart.Items() {
		view.Items = append(view.Items, CartItemView{
			ArticleID:   item.ArticleID,
			ArticleName: item.ArticleName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	return view
}

// AddItem reserves quantity units of the article and adds them to the customer's cart
func (s *CartService) AddItem(ctx context.Context, customerID, articleID int64, quantity int) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if quantity <= 0 {
		return nil, apperror.ErrInvalidQuantity
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

	var view *CartView
	err = retryOnConflict(ctx, logger, "cart.add_item", s.maxRetries, func() error {
		if err := s.ledger.Reserve(ctx, articleID, quantity); err != nil {
			return err
		}

		var cart *models.Cart
		err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			c, err := s.lockOrCreate(ctx, tx, customerID)
			if err != nil {
				return err
			}
			if c.Finalized {
				c.Reset()
			}

			articles, err := tx.GetArticles(ctx, []int64{articleID})
			if err != nil {
				return err
			}
			article, ok := articles[articleID]
			if !ok {
				return apperror.ErrArticleNotFound.WithDetail("article %d", articleID)
			}

			if err := c.AddItem(article, quantity); err != nil {
				return err
			}
			c.Recalculate(s.policy)
			if err := tx.SaveCart(ctx, c); err != nil {
				return err
			}
			cart = c
			return nil
		})
		if err != nil {
			s.compensate(ctx, logger, articleID, quantity)
			return err
		}

		view = newCartView(cart)
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.CartItemsAddedTotal.Add(float64(quantity))
	logger.Info("Item added to cart",
		zap.Int64("customer_id", customerID),
		zap.Int64("article_id", articleID),
		zap.Int("quantity", quantity),
		zap.String("total", view.Total.StringFixed(2)))
	return view, nil
}

// DecrementItem removes one unit of the article from the cart and returns it to the ledger
func (s *CartService) DecrementItem(ctx context.Context, customerID, articleID int64) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.DecrementItem")
	defer span.End()

	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, customerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := util.LoggerFromContext(ctx, s.logger)

	var view *CartView
	err = retryOnConflict(ctx, logger, "cart.decrement_item", s.maxRetries, func() error {
		return s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			cart, err := tx.LockCart(ctx, customerID)
			if err != nil {
				return err
			}
			if cart == nil || cart.Finalized {
				return apperror.ErrItemNotFound.WithDetail("customer %d has no cart", customerID)
			}

			if _, err := cart.DecrementItem(articleID); err != nil {
				return err
			}
			cart.Recalculate(s.policy)
			if err := tx.SaveCart(ctx, cart); err != nil {
				return err
			}
			view = newCartView(cart)
			return nil
		})
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	if err := s.ledger.Release(ctx, articleID, 1); err != nil {
		util.RecordError(span, err)
		logger.Error("Failed to release stock after decrement",
			zap.Int64("customer_id", customerID),
			zap.Int64("article_id", articleID),
			zap.Error(err))
		return nil, err
	}

	util.CartItemsRemovedTotal.Inc()
	logger.Info("Item decremented in cart",
		zap.Int64("customer_id", customerID),
		zap.Int64("article_id", articleID))
	return view, nil
}

// View returns the customer's cart, creating an empty one on first access
func (s *CartService) View(ctx context.Context, customerID int64) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.View")
	defer span.End()

	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	cart, err := s.repo.GetActiveCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return newCartView(cart), nil
	}

	unlock, err := s.locker.Lock(ctx, customerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = retryOnConflict(ctx, util.LoggerFromContext(ctx, s.logger), "cart.view", s.maxRetries, func() error {
		return s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			c, err := s.lockOrCreate(ctx, tx, customerID)
			if err != nil {
				return err
			}
			cart = c
			return nil
		})
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return newCartView(cart), nil
}

// Clear empties the cart and returns every reserved unit to the ledger.
// Clearing an empty cart is a no-op.
func (s *CartService) Clear(ctx context.Context, customerID int64) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, customerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := util.LoggerFromContext(ctx, s.logger)

	var (
		view    *CartView
		removed []models.CartItem
	)
	err = retryOnConflict(ctx, logger, "cart.clear", s.maxRetries, func() error {
		removed = nil
		return s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			cart, err := s.lockOrCreate(ctx, tx, customerID)
			if err != nil {
				return err
			}
			if cart.Finalized || cart.IsEmpty() {
				view = newCartView(cart)
				return nil
			}

			removed = cart.Clear()
			cart.Recalculate(s.policy)
			if err := tx.SaveCart(ctx, cart); err != nil {
				return err
			}
			view = newCartView(cart)
			return nil
		})
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	if len(removed) == 0 {
		return view, nil
	}

	var releaseErrs []error
	for _, item := range removed {
		if err := s.ledger.Release(ctx, item.ArticleID, item.Quantity); err != nil {
			logger.Error("Failed to release stock after clear",
				zap.Int64("customer_id", customerID),
				zap.Int64("article_id", item.ArticleID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
			releaseErrs = append(releaseErrs, err)
		}
	}
	if err := errors.Join(releaseErrs...); err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.CartsClearedTotal.Inc()
	logger.Info("Cart cleared",
		zap.Int64("customer_id", customerID),
		zap.Int("lines", len(removed)))
	return view, nil
}

func (s *CartService) lockOrCreate(ctx context.Context, tx repository.Tx, customerID int64) (*models.Cart, error) {
	cart, err := tx.LockCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}

	cart = models.NewCart(customerID)
	if err := tx.CreateCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// compensate undoes a reservation whose cart write did not commit
func (s *CartService) compensate(ctx context.Context, logger *zap.Logger, articleID int64, quantity int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.ledger.Release(ctx, articleID, quantity); err != nil {
		logger.Error("Failed to compensate reservation",
			zap.Int64("article_id", articleID),
			zap.Int("quantity", quantity),
			zap.Error(err))
	}
}
