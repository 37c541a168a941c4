package service

import (
	"context"
	"sync"
	"testing"

	"fulfillment-service/internal/memstore"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/pricing"
	"fulfillment-service/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testMaxRetries = 3

type fixture struct {
	store          *memstore.Store
	ledger         *InventoryLedger
	locker         *LocalLocker
	publisher      *recordingPublisher
	carts          *CartService
	orders         *OrderService
	supplierOrders *SupplierOrderService

	customer models.Customer
	s1, s2   models.Supplier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	f := &fixture{
		store:     store,
		ledger:    NewInventoryLedger(store),
		locker:    NewLocalLocker(),
		publisher: &recordingPublisher{},
		customer:  store.AddCustomer(models.Customer{Name: "Ada", Email: "ada@example.com"}),
		s1:        store.AddSupplier(models.Supplier{Name: "North"}),
		s2:        store.AddSupplier(models.Supplier{Name: "South"}),
	}
	f.useRepo(store)
	return f
}

// useRepo rebuilds the services on top of repo, keeping the ledger on the memstore
func (f *fixture) useRepo(repo repository.Repository) {
	f.carts = NewCartService(repo, f.ledger, f.locker, pricing.DefaultPolicy(), testMaxRetries)
	f.orders = NewOrderService(repo, f.locker, f.publisher, pricing.DefaultPolicy(), testMaxRetries)
	f.supplierOrders = NewSupplierOrderService(repo, f.publisher, testMaxRetries)
}

func (f *fixture) addArticle(supplierID int64, name, price string, stock int) models.Article {
	return f.store.AddArticle(models.Article{
		SupplierID: supplierID,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
	})
}

func (f *fixture) stock(t *testing.T, articleID int64) int {
	t.Helper()
	n, err := f.ledger.Stock(context.Background(), articleID)
	require.NoError(t, err)
	return n
}

type recordingPublisher struct {
	mu            sync.Mutex
	orderPlaced   []*models.OrderPlacedEvent
	created       []*models.SupplierOrderCreatedEvent
	statusChanged []*models.SupplierOrderStatusChangedEvent
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderPlaced = append(p.orderPlaced, e)
	return nil
}

func (p *recordingPublisher) PublishSupplierOrderCreated(_ context.Context, e *models.SupplierOrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return nil
}

func (p *recordingPublisher) PublishSupplierOrderStatusChanged(_ context.Context, e *models.SupplierOrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusChanged = append(p.statusChanged, e)
	return nil
}

// faultyRepo injects failures around transactions
type faultyRepo struct {
	repository.Repository
	txErr  error
	wrapTx func(repository.Tx) repository.Tx
}

func (r *faultyRepo) InTx(ctx context.Context, fn repository.TxFunc) error {
	if r.txErr != nil {
		return r.txErr
	}
	return r.Repository.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if r.wrapTx != nil {
			tx = r.wrapTx(tx)
		}
		return fn(ctx, tx)
	})
}

type faultyTx struct {
	repository.Tx
	onSaveCart            func() error
	onCreateSupplierOrder func() error
}

func (t *faultyTx) SaveCart(ctx context.Context, cart *models.Cart) error {
	if t.onSaveCart != nil {
		if err := t.onSaveCart(); err != nil {
			return err
		}
	}
	return t.Tx.SaveCart(ctx, cart)
}

func (t *faultyTx) CreateSupplierOrder(ctx context.Context, so *models.SupplierOrder) error {
	if t.onCreateSupplierOrder != nil {
		if err := t.onCreateSupplierOrder(); err != nil {
			return err
		}
	}
	return t.Tx.CreateSupplierOrder(ctx, so)
}

// failingStock refuses to release units of one article
type failingStock struct {
	repository.StockStore
	articleID  int64
	releaseErr error
}

func (s *failingStock) ReleaseStock(ctx context.Context, articleID int64, quantity int) error {
	if articleID == s.articleID {
		return s.releaseErr
	}
	return s.StockStore.ReleaseStock(ctx, articleID, quantity)
}
