package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/repository"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// InventoryLedger is the only path through which article stock changes
type InventoryLedger struct {
	stock  repository.StockStore
	logger *zap.Logger
}

// NewInventoryLedger creates a ledger over the given stock store
func NewInventoryLedger(stock repository.StockStore) *InventoryLedger {
	return &InventoryLedger{
		stock:  stock,
		logger: util.GetLogger(),
	}
}

// Reserve takes quantity units off the shelf or fails with
// *apperror.InsufficientStockError leaving stock untouched
func (l *InventoryLedger) Reserve(ctx context.Context, articleID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Reserve")
	defer span.End()

	if quantity <= 0 {
		return apperror.ErrInvalidQuantity
	}

	start := time.Now()
	err := l.stock.ReserveStock(ctx, articleID, quantity)
	util.InventoryReserveLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		util.InventoryReservationsFailed.WithLabelValues(reservationFailureReason(err)).Inc()
		util.RecordError(span, err)
		l.logger.Debug("Reservation rejected",
			zap.Int64("article_id", articleID),
			zap.Int("quantity", quantity),
			zap.Error(err))
		return err
	}
	return nil
}

// Release puts quantity previously reserved units back on the shelf
func (l *InventoryLedger) Release(ctx context.Context, articleID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Release")
	defer span.End()

	if quantity <= 0 {
		return apperror.ErrInvalidQuantity
	}

	if err := l.stock.ReleaseStock(ctx, articleID, quantity); err != nil {
		util.RecordError(span, err)
		return err
	}
	return nil
}

// Stock returns the current on-hand count for an article
func (l *InventoryLedger) Stock(ctx context.Context, articleID int64) (int, error) {
	return l.stock.GetStock(ctx, articleID)
}

func reservationFailureReason(err error) string {
	switch {
	case errors.Is(err, apperror.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, apperror.ErrArticleNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// ArticleLister lists the catalog whose stock seeds a ledger cache
type ArticleLister interface {
	ListArticles(ctx context.Context) ([]models.Article, error)
}

// StockSeeder initializes stock counters in an external ledger. Counters that
// already exist must be kept.
type StockSeeder interface {
	InitInventory(ctx context.Context, articleID int64, stock int) error
}

// SyncInventory copies the catalog stock into seeder for articles it does not
// know yet. Used at startup when the Redis ledger is authoritative.
func SyncInventory(ctx context.Context, catalog ArticleLister, seeder StockSeeder) error {
	logger := util.GetLogger()
	logger.Info("Starting inventory sync")

	articles, err := catalog.ListArticles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list articles: %w", err)
	}

	failed := 0
	for _, a := range articles {
		if err := seeder.InitInventory(ctx, a.ID, a.Stock); err != nil {
			failed++
			logger.Error("Failed to init inventory",
				zap.Int64("article_id", a.ID),
				zap.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("inventory sync failed for %d of %d articles", failed, len(articles))
	}

	logger.Info("Inventory sync completed", zap.Int("count", len(articles)))
	return nil
}
