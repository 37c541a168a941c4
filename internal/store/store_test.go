package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStoreWithDB(sqlx.NewDb(db, "postgres")), mock
}

func TestReserveStock(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT stock FROM articles WHERE id = $1 FOR UPDATE")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(10))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE articles SET stock = stock - $1")).
		WithArgs(3, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.ReserveStock(context.Background(), 7, 3)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveStockInsufficient(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT stock FROM articles WHERE id = $1 FOR UPDATE")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(2))
	mock.ExpectRollback()

	err := s.ReserveStock(context.Background(), 7, 5)

	var stockErr *apperror.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 3, stockErr.Shortfall())
	assert.True(t, errors.Is(err, apperror.ErrInsufficientStock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveStockUnknownArticle(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT stock FROM articles WHERE id = $1 FOR UPDATE")).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}))
	mock.ExpectRollback()

	err := s.ReserveStock(context.Background(), 99, 1)
	assert.True(t, errors.Is(err, apperror.ErrArticleNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseStockUnknownArticle(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE articles SET stock = stock + $1")).
		WithArgs(2, 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.ReleaseStock(context.Background(), 99, 2)
	assert.True(t, errors.Is(err, apperror.ErrArticleNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseStockDatabaseError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE articles SET stock = stock + $1")).
		WillReturnError(errors.New("connection reset"))

	err := s.ReleaseStock(context.Background(), 1, 1)
	assert.True(t, errors.Is(err, apperror.ErrPersistence))
	assert.Equal(t, apperror.KindPersistence, apperror.KindOf(err))
}

func TestGetCustomerNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM customers WHERE id = $1")).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "address", "created_at"}))

	_, err := s.GetCustomer(context.Background(), 42)
	assert.True(t, errors.Is(err, apperror.ErrCustomerNotFound))
}

func TestInTxRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCartVersionConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE carts")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	cart := models.NewCart(1)
	cart.ID = 5
	cart.Version = 3

	err := s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.SaveCart(ctx, cart)
	})
	assert.True(t, errors.Is(err, apperror.ErrConflict))
	assert.Equal(t, int64(3), cart.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSupplierOrderDuplicateNumberIsConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO supplier_orders")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	so := &models.SupplierOrder{
		OrderID:     1,
		SupplierID:  2,
		OrderNumber: "OVP-20240101-0000000A",
		Status:      models.SupplierOrderStatusPending,
		Subtotal:    decimal.NewFromInt(10),
		CreatedAt:   time.Now(),
	}
	err := s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateSupplierOrder(ctx, so)
	})
	assert.True(t, errors.Is(err, apperror.ErrConflict))
	assert.False(t, errors.Is(err, apperror.ErrPersistence))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCartReplacesItems(t *testing.T) {
	s, mock := newMockStore(t)

	cart := models.NewCart(1)
	cart.ID = 5
	cart.Version = 1
	require.NoError(t, cart.AddItem(models.Article{ID: 10, Name: "Widget", Price: decimal.RequireFromString("2.50")}, 2))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE carts")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart_items WHERE cart_id = $1")).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO cart_items")).
		WithArgs(5, 10, 2, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(77))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.SaveCart(ctx, cart)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), cart.Version)

	item, ok := cart.Item(10)
	require.True(t, ok)
	assert.Equal(t, int64(77), item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCartConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO carts")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "created_at", "updated_at"}))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateCart(ctx, models.NewCart(1))
	})
	assert.True(t, errors.Is(err, apperror.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderLoadsItems(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "customer_id", "status", "payment_method", "transaction_id",
			"subtotal", "tax", "shipping", "total", "created_at",
		}).AddRow(1, 3, models.OrderStatusPending, "card", "TX-1", "15.00", "3.15", "4.99", "23.14", now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_items WHERE order_id IN ($1)")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "article_id", "article_name", "quantity", "unit_price", "line_total",
		}).
			AddRow(1, 1, 10, "Widget", 2, "5.00", "10.00").
			AddRow(2, 1, 11, "Gadget", 1, "5.00", "5.00"))

	order, err := s.GetOrder(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "23.14", order.Total.StringFixed(2))
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Gadget", order.Items[1].ArticleName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSupplierOrderStatusConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE supplier_orders SET status = $1")).
		WithArgs(models.SupplierOrderStatusSent, "", "OVP-20240101-ABCDEF12", models.SupplierOrderStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateSupplierOrderStatus(context.Background(), "OVP-20240101-ABCDEF12",
		models.SupplierOrderStatusPending, models.SupplierOrderStatusSent, "")
	assert.True(t, errors.Is(err, apperror.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkEventProcessed(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO processed_events")).
		WithArgs("evt-1", models.EventTypeSupplierOrderCreated).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.MarkEventProcessed(context.Background(), "evt-1", models.EventTypeSupplierOrderCreated))
	assert.NoError(t, mock.ExpectationsWereMet())
}
