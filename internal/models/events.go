package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced                = "ORDER_PLACED"
	EventTypeSupplierOrderCreated       = "SUPPLIER_ORDER_CREATED"
	EventTypeSupplierOrderStatusChanged = "SUPPLIER_ORDER_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

func newBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// OrderPlacedEvent published after a checkout commits
type OrderPlacedEvent struct {
	BaseEvent
	OrderID       int64           `json:"order_id"`
	CustomerID    int64           `json:"customer_id"`
	TransactionID string          `json:"transaction_id"`
	PaymentMethod string          `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
	Items         []OrderItemData `json:"items"`
}

// SupplierOrderCreatedEvent published for every supplier order produced by a checkout
type SupplierOrderCreatedEvent struct {
	BaseEvent
	SupplierOrderID int64           `json:"supplier_order_id"`
	OrderID         int64           `json:"order_id"`
	SupplierID      int64           `json:"supplier_id"`
	OrderNumber     string          `json:"order_number"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Items           []OrderItemData `json:"items"`
}

// SupplierOrderStatusChangedEvent published when a supplier order moves to a new status
type SupplierOrderStatusChangedEvent struct {
	BaseEvent
	OrderNumber string `json:"order_number"`
	SupplierID  int64  `json:"supplier_id"`
	From        string `json:"from"`
	To          string `json:"to"`
	Notes       string `json:"notes,omitempty"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ArticleID int64           `json:"article_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func NewOrderPlacedEvent(order *Order) *OrderPlacedEvent {
	items := make([]OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemData{
			ArticleID: item.ArticleID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return &OrderPlacedEvent{
		BaseEvent:     newBaseEvent(EventTypeOrderPlaced),
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		TransactionID: order.TransactionID,
		PaymentMethod: order.PaymentMethod,
		Total:         order.Total,
		Items:         items,
	}
}

func NewSupplierOrderCreatedEvent(so *SupplierOrder) *SupplierOrderCreatedEvent {
	items := make([]OrderItemData, 0, len(so.Items))
	for _, item := range so.Items {
		items = append(items, OrderItemData{
			ArticleID: item.ArticleID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return &SupplierOrderCreatedEvent{
		BaseEvent:       newBaseEvent(EventTypeSupplierOrderCreated),
		SupplierOrderID: so.ID,
		OrderID:         so.OrderID,
		SupplierID:      so.SupplierID,
		OrderNumber:     so.OrderNumber,
		Subtotal:        so.Subtotal,
		Items:           items,
	}
}

func NewSupplierOrderStatusChangedEvent(so *SupplierOrder, from string) *SupplierOrderStatusChangedEvent {
	return &SupplierOrderStatusChangedEvent{
		BaseEvent:   newBaseEvent(EventTypeSupplierOrderStatusChanged),
		OrderNumber: so.OrderNumber,
		SupplierID:  so.SupplierID,
		From:        from,
		To:          so.Status,
		Notes:       so.Notes,
	}
}
