// Package repository declares the persistence ports the services depend on.
// Implementations return apperror values: NotFound sentinels for missing rows,
// ErrConflict for version mismatches and Persistence for storage failures.
package repository

import (
	"context"

	"fulfillment-service/internal/models"
)

// TxFunc runs inside a transaction. Returning an error rolls the transaction back.
type TxFunc func(ctx context.Context, tx Tx) error

// Repository is the read side plus the transaction boundary.
type Repository interface {
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	GetSupplier(ctx context.Context, id int64) (*models.Supplier, error)
	GetArticle(ctx context.Context, id int64) (*models.Article, error)
	ListArticles(ctx context.Context) ([]models.Article, error)

	// GetActiveCart returns nil, nil when the customer has no cart.
	GetActiveCart(ctx context.Context, customerID int64) (*models.Cart, error)

	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	// ListOrdersByCustomer returns orders newest first.
	ListOrdersByCustomer(ctx context.Context, customerID int64) ([]models.Order, error)

	// ListSupplierOrdersBySupplier returns newest first; an empty status matches all.
	ListSupplierOrdersBySupplier(ctx context.Context, supplierID int64, status string) ([]models.SupplierOrder, error)
	ListSupplierOrdersByOrder(ctx context.Context, orderID int64) ([]models.SupplierOrder, error)
	GetSupplierOrderByNumber(ctx context.Context, orderNumber string) (*models.SupplierOrder, error)
	// UpdateSupplierOrderStatus moves the order from -> to; ErrConflict when the
	// stored status is no longer from.
	UpdateSupplierOrderStatus(ctx context.Context, orderNumber, from, to, notes string) error

	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error

	InTx(ctx context.Context, fn TxFunc) error
}

// Tx is the write side used by the cart and checkout flows.
type Tx interface {
	// LockCart loads the customer's cart with its items and locks it for the
	// rest of the transaction. Returns nil, nil when none exists.
	LockCart(ctx context.Context, customerID int64) (*models.Cart, error)
	// CreateCart inserts an empty cart; ErrConflict if the customer already has one.
	CreateCart(ctx context.Context, cart *models.Cart) error
	// SaveCart persists totals, flags and items, bumping Version. ErrConflict
	// when the stored version differs from cart.Version.
	SaveCart(ctx context.Context, cart *models.Cart) error

	GetArticles(ctx context.Context, ids []int64) (map[int64]models.Article, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	CreateSupplierOrder(ctx context.Context, so *models.SupplierOrder) error
}

// StockStore holds the authoritative on-hand stock per article. Each call is
// atomic with respect to concurrent calls on the same article.
type StockStore interface {
	// ReserveStock decrements stock by quantity or fails with
	// *apperror.InsufficientStockError without any effect.
	ReserveStock(ctx context.Context, articleID int64, quantity int) error
	ReleaseStock(ctx context.Context, articleID int64, quantity int) error
	GetStock(ctx context.Context, articleID int64) (int, error)
}
