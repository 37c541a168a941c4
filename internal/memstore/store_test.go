package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	SeedDemo(s)
	return s
}

func TestReserveAndReleaseStock(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	require.NoError(t, s.ReserveStock(ctx, 3, 15))
	stock, err := s.GetStock(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, stock)

	err = s.ReserveStock(ctx, 3, 6)
	var stockErr *apperror.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 1, stockErr.Shortfall())

	stock, _ = s.GetStock(ctx, 3)
	assert.Equal(t, 5, stock)

	require.NoError(t, s.ReleaseStock(ctx, 3, 15))
	stock, _ = s.GetStock(ctx, 3)
	assert.Equal(t, 20, stock)

	assert.True(t, errors.Is(s.ReserveStock(ctx, 999, 1), apperror.ErrArticleNotFound))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	s := New()
	a := s.AddArticle(models.Article{SupplierID: 1, Name: "Limited", Price: decimal.NewFromInt(1), Stock: 50})
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ReserveStock(ctx, a.ID, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	stock, err := s.GetStock(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, succeeded)
	assert.Equal(t, 0, stock)
}

func TestInTxDiscardsWritesOnError(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cart := models.NewCart(1)
		require.NoError(t, tx.CreateCart(ctx, cart))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	cart, err := s.GetActiveCart(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, cart)
}

func TestSaveCartBumpsVersionAndDetectsConflicts(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	var created *models.Cart
	err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		created = models.NewCart(1)
		return tx.CreateCart(ctx, created)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)

	stale := created.Clone()

	err = s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cart, err := tx.LockCart(ctx, 1)
		require.NoError(t, err)
		articles, err := tx.GetArticles(ctx, []int64{1})
		require.NoError(t, err)
		require.NoError(t, cart.AddItem(articles[1], 2))
		return tx.SaveCart(ctx, cart)
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.SaveCart(ctx, stale)
	})
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	cart, err := s.GetActiveCart(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cart.Version)
	item, ok := cart.Item(1)
	require.True(t, ok)
	assert.Equal(t, 2, item.Quantity)
	assert.NotZero(t, item.ID)
}

func TestCreateCartTwiceConflicts(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateCart(ctx, models.NewCart(1)); err != nil {
			return err
		}
		return tx.CreateCart(ctx, models.NewCart(1))
	})
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}

func TestReadsReturnCopies(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	a, err := s.GetArticle(ctx, 1)
	require.NoError(t, err)
	a.Stock = 0

	stock, err := s.GetStock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, stock)
}

func TestSupplierOrdersLifecycle(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		order := &models.Order{CustomerID: 1, Status: models.OrderStatusPending, TransactionID: "TX-1"}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		so := &models.SupplierOrder{
			OrderID:     order.ID,
			SupplierID:  2,
			OrderNumber: "OVP-20240101-0000000A",
			Status:      models.SupplierOrderStatusPending,
		}
		return tx.CreateSupplierOrder(ctx, so)
	})
	require.NoError(t, err)

	found, err := s.GetSupplierOrderByNumber(ctx, "OVP-20240101-0000000A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), found.SupplierID)

	pending, err := s.ListSupplierOrdersBySupplier(ctx, 2, models.SupplierOrderStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, s.UpdateSupplierOrderStatus(ctx, found.OrderNumber,
		models.SupplierOrderStatusPending, models.SupplierOrderStatusSent, "shipped by courier"))

	err = s.UpdateSupplierOrderStatus(ctx, found.OrderNumber,
		models.SupplierOrderStatusPending, models.SupplierOrderStatusCancelled, "")
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	pending, err = s.ListSupplierOrdersBySupplier(ctx, 2, models.SupplierOrderStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = s.GetSupplierOrderByNumber(ctx, "OVP-missing")
	assert.True(t, errors.Is(err, apperror.ErrSupplierOrderNotFound))

	err = s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateSupplierOrder(ctx, &models.SupplierOrder{
			OrderID:     found.OrderID,
			SupplierID:  2,
			OrderNumber: "OVP-20240101-0000000A",
			Status:      models.SupplierOrderStatusPending,
		})
	})
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}
