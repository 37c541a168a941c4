// Package memstore is an in-memory implementation of the repository ports. It
// backs STORE_BACKEND=memory and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/repository"
)

var (
	_ repository.Repository = (*Store)(nil)
	_ repository.StockStore = (*Store)(nil)
	_ repository.Tx         = (*memTx)(nil)
)

// Store keeps every entity in maps guarded by mu. Transactions are serialized by
// txMu and stage their writes until commit.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	seq int64

	suppliers      map[int64]*models.Supplier
	customers      map[int64]*models.Customer
	articles       map[int64]*models.Article
	carts          map[int64]*models.Cart // by customer id
	orders         map[int64]*models.Order
	supplierOrders map[int64]*models.SupplierOrder
	orderNumbers   map[string]int64
	processed      map[string]string
}

func New() *Store {
	return &Store{
		suppliers:      make(map[int64]*models.Supplier),
		customers:      make(map[int64]*models.Customer),
		articles:       make(map[int64]*models.Article),
		carts:          make(map[int64]*models.Cart),
		orders:         make(map[int64]*models.Order),
		supplierOrders: make(map[int64]*models.SupplierOrder),
		orderNumbers:   make(map[string]int64),
		processed:      make(map[string]string),
	}
}

func (s *Store) nextID() int64 {
	return atomic.AddInt64(&s.seq, 1)
}

// AddSupplier registers a supplier, assigning an id when none is set
func (s *Store) AddSupplier(supplier models.Supplier) models.Supplier {
	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.ID == 0 {
		supplier.ID = s.nextID()
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	s.suppliers[supplier.ID] = &supplier
	return supplier
}

// AddCustomer registers a customer, assigning an id when none is set
func (s *Store) AddCustomer(customer models.Customer) models.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == 0 {
		customer.ID = s.nextID()
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = &customer
	return customer
}

// AddArticle registers an article with its initial stock, assigning an id when none is set
func (s *Store) AddArticle(article models.Article) models.Article {
	s.mu.Lock()
	defer s.mu.Unlock()

	if article.ID == 0 {
		article.ID = s.nextID()
	}
	now := time.Now().UTC()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	article.UpdatedAt = now
	s.articles[article.ID] = &article
	return article
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, apperror.ErrCustomerNotFound.WithDetail("customer %d", id)
	}
	clone := *c
	return &clone, nil
}

func (s *Store) GetSupplier(ctx context.Context, id int64) (*models.Supplier, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	sup, ok := s.suppliers[id]
	if !ok {
		return nil, apperror.ErrSupplierNotFound.WithDetail("supplier %d", id)
	}
	clone := *sup
	return &clone, nil
}

func (s *Store) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[id]
	if !ok {
		return nil, apperror.ErrArticleNotFound.WithDetail("article %d", id)
	}
	clone := *a
	return &clone, nil
}

func (s *Store) ListArticles(ctx context.Context) ([]models.Article, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Article, 0, len(s.articles))
	for _, a := range s.articles {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetActiveCart(ctx context.Context, customerID int64) (*models.Cart, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, ok := s.carts[customerID]
	if !ok {
		return nil, nil
	}
	return cart.Clone(), nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, apperror.ErrOrderNotFound.WithDetail("order %d", id)
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Order, 0)
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) ListSupplierOrdersBySupplier(ctx context.Context, supplierID int64, status string) ([]models.SupplierOrder, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SupplierOrder, 0)
	for _, so := range s.supplierOrders {
		if so.SupplierID != supplierID {
			continue
		}
		if status != "" && so.Status != status {
			continue
		}
		out = append(out, *cloneSupplierOrder(so))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) ListSupplierOrdersByOrder(ctx context.Context, orderID int64) ([]models.SupplierOrder, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SupplierOrder, 0)
	for _, so := range s.supplierOrders {
		if so.OrderID == orderID {
			out = append(out, *cloneSupplierOrder(so))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SupplierID < out[j].SupplierID })
	return out, nil
}

func (s *Store) GetSupplierOrderByNumber(ctx context.Context, orderNumber string) (*models.SupplierOrder, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.orderNumbers[orderNumber]
	if !ok {
		return nil, apperror.ErrSupplierOrderNotFound.WithDetail("supplier order %s", orderNumber)
	}
	return cloneSupplierOrder(s.supplierOrders[id]), nil
}

func (s *Store) UpdateSupplierOrderStatus(ctx context.Context, orderNumber, from, to, notes string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.orderNumbers[orderNumber]
	if !ok {
		return apperror.ErrSupplierOrderNotFound.WithDetail("supplier order %s", orderNumber)
	}
	so := s.supplierOrders[id]
	if so.Status != from {
		return apperror.ErrConflict.WithDetail("supplier order %s is no longer %s", orderNumber, from)
	}
	so.Status = to
	so.Notes = notes
	so.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.processed[eventID]
	return ok, nil
}

func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed[eventID] = eventType
	return nil
}

// ReserveStock decrements stock atomically with respect to every other stock call
func (s *Store) ReserveStock(ctx context.Context, articleID int64, quantity int) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[articleID]
	if !ok {
		return apperror.ErrArticleNotFound.WithDetail("article %d", articleID)
	}
	if a.Stock < quantity {
		return &apperror.InsufficientStockError{
			ArticleID: articleID,
			Requested: quantity,
			Available: a.Stock,
		}
	}
	a.Stock -= quantity
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ReleaseStock(ctx context.Context, articleID int64, quantity int) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[articleID]
	if !ok {
		return apperror.ErrArticleNotFound.WithDetail("article %d", articleID)
	}
	a.Stock += quantity
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) GetStock(ctx context.Context, articleID int64) (int, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[articleID]
	if !ok {
		return 0, apperror.ErrArticleNotFound.WithDetail("article %d", articleID)
	}
	return a.Stock, nil
}

func cloneOrder(o *models.Order) *models.Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]models.OrderItem(nil), o.Items...)
	return &clone
}

func cloneSupplierOrder(so *models.SupplierOrder) *models.SupplierOrder {
	if so == nil {
		return nil
	}
	clone := *so
	clone.Items = append([]models.SupplierOrderItem(nil), so.Items...)
	return &clone
}
