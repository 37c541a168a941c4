package models

import (
	"time"

	"fulfillment-service/internal/pricing"

	"github.com/shopspring/decimal"
)

// SupplierOrder is the share of a customer order that one supplier must fulfil
type SupplierOrder struct {
	ID          int64               `db:"id" json:"id"`
	OrderID     int64               `db:"order_id" json:"order_id"`
	SupplierID  int64               `db:"supplier_id" json:"supplier_id"`
	OrderNumber string              `db:"order_number" json:"order_number"`
	Status      string              `db:"status" json:"status"`
	Notes       string              `db:"notes" json:"notes,omitempty"`
	Subtotal    decimal.Decimal     `db:"subtotal" json:"subtotal"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at" json:"updated_at"`
	Items       []SupplierOrderItem `db:"-" json:"items"`
}

// SupplierOrderItem is one line of a supplier order
type SupplierOrderItem struct {
	ID              int64           `db:"id" json:"id"`
	SupplierOrderID int64           `db:"supplier_order_id" json:"supplier_order_id"`
	ArticleID       int64           `db:"article_id" json:"article_id"`
	ArticleName     string          `db:"article_name" json:"article_name"`
	Quantity        int             `db:"quantity" json:"quantity"`
	UnitPrice       decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// AddLine copies an order line into the supplier order at the price the customer paid.
func (so *SupplierOrder) AddLine(item OrderItem) {
	line := SupplierOrderItem{
		ArticleID:   item.ArticleID,
		ArticleName: item.ArticleName,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		Subtotal:    pricing.LineTotal(item.UnitPrice, item.Quantity),
	}
	so.Items = append(so.Items, line)
	so.Subtotal = so.Subtotal.Add(line.Subtotal)
}

// Supplier order statuses
const (
	SupplierOrderStatusPending   = "PENDING"
	SupplierOrderStatusSent      = "SENT"
	SupplierOrderStatusDelivered = "DELIVERED"
	SupplierOrderStatusCancelled = "CANCELLED"
)

var supplierOrderTransitions = map[string][]string{
	SupplierOrderStatusPending: {SupplierOrderStatusSent, SupplierOrderStatusCancelled},
	SupplierOrderStatusSent:    {SupplierOrderStatusDelivered, SupplierOrderStatusCancelled},
}

// IsSupplierOrderStatus reports whether status is a known supplier order status
func IsSupplierOrderStatus(status string) bool {
	switch status {
	case SupplierOrderStatusPending, SupplierOrderStatusSent,
		SupplierOrderStatusDelivered, SupplierOrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionSupplierOrder reports whether a supplier order may move from -> to
func CanTransitionSupplierOrder(from, to string) bool {
	for _, next := range supplierOrderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
