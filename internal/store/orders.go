package store

import (
	"context"
	"database/sql"
	"errors"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const (
	orderColumns         = "id, customer_id, status, payment_method, transaction_id, subtotal, tax, shipping, total, created_at"
	supplierOrderColumns = "id, order_id, supplier_id, order_number, status, notes, subtotal, created_at, updated_at"
)

// CreateOrder inserts the order and its lines
func (t *txStore) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_id, status, payment_method, transaction_id, subtotal, tax, shipping, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := t.tx.GetContext(ctx, &order.ID, query,
		order.CustomerID, order.Status, order.PaymentMethod, order.TransactionID,
		order.Subtotal, order.Tax, order.Shipping, order.Total, order.CreatedAt)
	if err != nil {
		return apperror.Persistence("create order", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := t.tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, article_id, article_name, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			item.OrderID, item.ArticleID, item.ArticleName, item.Quantity, item.UnitPrice, item.LineTotal)
		if err != nil {
			return apperror.Persistence("create order item", err)
		}
	}
	return nil
}

// CreateSupplierOrder inserts a supplier order and its lines
func (t *txStore) CreateSupplierOrder(ctx context.Context, so *models.SupplierOrder) error {
	query := `
		INSERT INTO supplier_orders (order_id, supplier_id, order_number, status, notes, subtotal, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`

	err := t.tx.GetContext(ctx, &so.ID, query,
		so.OrderID, so.SupplierID, so.OrderNumber, so.Status, so.Notes, so.Subtotal, so.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperror.ErrConflict.WithDetail("supplier order number %s already taken", so.OrderNumber)
	}
	if err != nil {
		return apperror.Persistence("create supplier order", err)
	}
	so.UpdatedAt = so.CreatedAt

	for i := range so.Items {
		item := &so.Items[i]
		item.SupplierOrderID = so.ID
		err := t.tx.GetContext(ctx, &item.ID, `
			INSERT INTO supplier_order_items (supplier_order_id, article_id, article_name, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			item.SupplierOrderID, item.ArticleID, item.ArticleName, item.Quantity, item.UnitPrice, item.Subtotal)
		if err != nil {
			return apperror.Persistence("create supplier order item", err)
		}
	}
	return nil
}

// GetOrder retrieves an order with its items
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrOrderNotFound.WithDetail("order %d", id)
	}
	if err != nil {
		return nil, apperror.Persistence("get order", err)
	}

	orders := []models.Order{order}
	if err := s.loadOrderItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListOrdersByCustomer retrieves a customer's orders, newest first
func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE customer_id = $1 ORDER BY created_at DESC, id DESC",
		customerID)
	if err != nil {
		return nil, apperror.Persistence("list orders", err)
	}
	if err := s.loadOrderItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) loadOrderItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	query, args, err := sqlx.In(`
		SELECT id, order_id, article_id, article_name, quantity, unit_price, line_total
		FROM order_items WHERE order_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return apperror.Persistence("build order items query", err)
	}

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return apperror.Persistence("get order items", err)
	}
	for _, item := range items {
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return nil
}

// ListSupplierOrdersBySupplier retrieves a supplier's orders newest first, optionally filtered by status
func (s *Store) ListSupplierOrdersBySupplier(ctx context.Context, supplierID int64, status string) ([]models.SupplierOrder, error) {
	query := "SELECT " + supplierOrderColumns + " FROM supplier_orders WHERE supplier_id = $1"
	args := []interface{}{supplierID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, id DESC"

	var orders []models.SupplierOrder
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, apperror.Persistence("list supplier orders", err)
	}
	if err := s.loadSupplierOrderItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListSupplierOrdersByOrder retrieves the supplier orders a checkout produced
func (s *Store) ListSupplierOrdersByOrder(ctx context.Context, orderID int64) ([]models.SupplierOrder, error) {
	var orders []models.SupplierOrder
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+supplierOrderColumns+" FROM supplier_orders WHERE order_id = $1 ORDER BY supplier_id", orderID)
	if err != nil {
		return nil, apperror.Persistence("list supplier orders", err)
	}
	if err := s.loadSupplierOrderItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetSupplierOrderByNumber retrieves a supplier order by its OVP number
func (s *Store) GetSupplierOrderByNumber(ctx context.Context, orderNumber string) (*models.SupplierOrder, error) {
	var so models.SupplierOrder
	err := s.db.GetContext(ctx, &so,
		"SELECT "+supplierOrderColumns+" FROM supplier_orders WHERE order_number = $1", orderNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrSupplierOrderNotFound.WithDetail("supplier order %s", orderNumber)
	}
	if err != nil {
		return nil, apperror.Persistence("get supplier order", err)
	}

	orders := []models.SupplierOrder{so}
	if err := s.loadSupplierOrderItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// UpdateSupplierOrderStatus moves a supplier order between statuses with a compare-and-set on the current one
func (s *Store) UpdateSupplierOrderStatus(ctx context.Context, orderNumber, from, to, notes string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE supplier_orders SET status = $1, notes = $2, updated_at = NOW()
		WHERE order_number = $3 AND status = $4`,
		to, notes, orderNumber, from)
	if err != nil {
		return apperror.Persistence("update supplier order status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Persistence("update supplier order status", err)
	}
	if n == 0 {
		return apperror.ErrConflict.WithDetail("supplier order %s is no longer %s", orderNumber, from)
	}
	return nil
}

func (s *Store) loadSupplierOrderItems(ctx context.Context, orders []models.SupplierOrder) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	query, args, err := sqlx.In(`
		SELECT id, supplier_order_id, article_id, article_name, quantity, unit_price, subtotal
		FROM supplier_order_items WHERE supplier_order_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return apperror.Persistence("build supplier order items query", err)
	}

	var items []models.SupplierOrderItem
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return apperror.Persistence("get supplier order items", err)
	}
	for _, item := range items {
		i := index[item.SupplierOrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return nil
}
