package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supplier owns articles and receives supplier orders
type Supplier struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Customer represents a shopper
type Customer struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Address   string    `db:"address" json:"address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Article represents a catalog entry with its on-hand stock
type Article struct {
	ID         int64           `db:"id" json:"id"`
	SupplierID int64           `db:"supplier_id" json:"supplier_id"`
	Name       string          `db:"name" json:"name"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Stock      int             `db:"stock" json:"stock"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// Order is the immutable snapshot of a checked out cart
type Order struct {
	ID            int64           `db:"id" json:"id"`
	CustomerID    int64           `db:"customer_id" json:"customer_id"`
	Status        string          `db:"status" json:"status"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	TransactionID string          `db:"transaction_id" json:"transaction_id"`
	Subtotal      decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax           decimal.Decimal `db:"tax" json:"tax"`
	Shipping      decimal.Decimal `db:"shipping" json:"shipping"`
	Total         decimal.Decimal `db:"total" json:"total"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	Items         []OrderItem     `db:"-" json:"items"`
}

// OrderItem represents one line of an order
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	ArticleID   int64           `db:"article_id" json:"article_id"`
	ArticleName string          `db:"article_name" json:"article_name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	LineTotal   decimal.Decimal `db:"line_total" json:"line_total"`
}

// ArticleIDs returns the distinct article ids referenced by the order
func (o *Order) ArticleIDs() []int64 {
	seen := make(map[int64]struct{}, len(o.Items))
	ids := make([]int64, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := seen[item.ArticleID]; ok {
			continue
		}
		seen[item.ArticleID] = struct{}{}
		ids = append(ids, item.ArticleID)
	}
	return ids
}

// Order statuses
const (
	OrderStatusPending = "PENDING"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
