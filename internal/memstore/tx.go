package memstore

import (
	"context"
	"time"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/repository"
)

// InTx runs fn against a staged view of the store. Writes become visible only
// when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn repository.TxFunc) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		s:     s,
		carts: make(map[int64]*models.Cart),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	tx.commit()
	return nil
}

type memTx struct {
	s *Store

	carts          map[int64]*models.Cart
	orders         []*models.Order
	supplierOrders []*models.SupplierOrder
}

func (t *memTx) current(customerID int64) (*models.Cart, bool) {
	if cart, ok := t.carts[customerID]; ok {
		return cart, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	cart, ok := t.s.carts[customerID]
	return cart, ok
}

func (t *memTx) LockCart(ctx context.Context, customerID int64) (*models.Cart, error) {
	_ = ctx

	cart, ok := t.current(customerID)
	if !ok {
		return nil, nil
	}
	return cart.Clone(), nil
}

func (t *memTx) CreateCart(ctx context.Context, cart *models.Cart) error {
	_ = ctx

	if _, ok := t.current(cart.CustomerID); ok {
		return apperror.ErrConflict.WithDetail("cart already exists for customer %d", cart.CustomerID)
	}

	now := time.Now().UTC()
	cart.ID = t.s.nextID()
	cart.Version = 1
	cart.CreatedAt = now
	cart.UpdatedAt = now
	t.carts[cart.CustomerID] = cart.Clone()
	return nil
}

func (t *memTx) SaveCart(ctx context.Context, cart *models.Cart) error {
	_ = ctx

	stored, ok := t.current(cart.CustomerID)
	if !ok || stored.ID != cart.ID || stored.Version != cart.Version {
		return apperror.ErrConflict.WithDetail("cart %d modified by another transaction", cart.ID)
	}

	items := cart.Items()
	for i := range items {
		items[i].CartID = cart.ID
		if items[i].ID == 0 {
			items[i].ID = t.s.nextID()
		}
	}
	cart.LoadItems(items)
	cart.Version++
	cart.UpdatedAt = time.Now().UTC()
	t.carts[cart.CustomerID] = cart.Clone()
	return nil
}

func (t *memTx) GetArticles(ctx context.Context, ids []int64) (map[int64]models.Article, error) {
	_ = ctx

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	out := make(map[int64]models.Article, len(ids))
	for _, id := range ids {
		if a, ok := t.s.articles[id]; ok {
			out[id] = *a
		}
	}
	return out, nil
}

func (t *memTx) CreateOrder(ctx context.Context, order *models.Order) error {
	_ = ctx

	order.ID = t.s.nextID()
	for i := range order.Items {
		order.Items[i].ID = t.s.nextID()
		order.Items[i].OrderID = order.ID
	}
	t.orders = append(t.orders, cloneOrder(order))
	return nil
}

func (t *memTx) CreateSupplierOrder(ctx context.Context, so *models.SupplierOrder) error {
	_ = ctx

	t.s.mu.RLock()
	_, taken := t.s.orderNumbers[so.OrderNumber]
	t.s.mu.RUnlock()
	if taken {
		return apperror.ErrConflict.WithDetail("supplier order number %s already taken", so.OrderNumber)
	}
	for _, staged := range t.supplierOrders {
		if staged.OrderNumber == so.OrderNumber {
			return apperror.ErrConflict.WithDetail("supplier order number %s already taken", so.OrderNumber)
		}
	}

	so.ID = t.s.nextID()
	so.UpdatedAt = so.CreatedAt
	for i := range so.Items {
		so.Items[i].ID = t.s.nextID()
		so.Items[i].SupplierOrderID = so.ID
	}
	t.supplierOrders = append(t.supplierOrders, cloneSupplierOrder(so))
	return nil
}

func (t *memTx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for customerID, cart := range t.carts {
		t.s.carts[customerID] = cart
	}
	for _, o := range t.orders {
		t.s.orders[o.ID] = o
	}
	for _, so := range t.supplierOrders {
		t.s.supplierOrders[so.ID] = so
		t.s.orderNumbers[so.OrderNumber] = so.ID
	}
}
