package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/repository"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var (
	_ repository.Repository = (*Store)(nil)
	_ repository.StockStore = (*Store)(nil)
	_ repository.Tx         = (*txStore)(nil)
)

const articleColumns = "id, supplier_id, name, price, stock, created_at, updated_at"

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection
func NewStoreWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn inside a database transaction, committing only when fn succeeds
func (s *Store) InTx(ctx context.Context, fn repository.TxFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.Persistence("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperror.Persistence("commit transaction", err)
	}
	return nil
}

// GetCustomer retrieves a customer by ID
func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer,
		"SELECT id, name, email, address, created_at FROM customers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrCustomerNotFound.WithDetail("customer %d", id)
	}
	if err != nil {
		return nil, apperror.Persistence("get customer", err)
	}
	return &customer, nil
}

// GetSupplier retrieves a supplier by ID
func (s *Store) GetSupplier(ctx context.Context, id int64) (*models.Supplier, error) {
	var supplier models.Supplier
	err := s.db.GetContext(ctx, &supplier,
		"SELECT id, name, email, created_at FROM suppliers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrSupplierNotFound.WithDetail("supplier %d", id)
	}
	if err != nil {
		return nil, apperror.Persistence("get supplier", err)
	}
	return &supplier, nil
}

// GetArticle retrieves an article by ID
func (s *Store) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	var article models.Article
	err := s.db.GetContext(ctx, &article,
		"SELECT "+articleColumns+" FROM articles WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrArticleNotFound.WithDetail("article %d", id)
	}
	if err != nil {
		return nil, apperror.Persistence("get article", err)
	}
	return &article, nil
}

// ListArticles retrieves all articles
func (s *Store) ListArticles(ctx context.Context) ([]models.Article, error) {
	var articles []models.Article
	err := s.db.SelectContext(ctx, &articles, "SELECT "+articleColumns+" FROM articles ORDER BY id")
	if err != nil {
		return nil, apperror.Persistence("list articles", err)
	}
	return articles, nil
}

// ReserveStock decrements stock under a row lock (SELECT ... FOR UPDATE)
func (s *Store) ReserveStock(ctx context.Context, articleID int64, quantity int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.Persistence("begin reserve", err)
	}
	defer tx.Rollback()

	var stock int
	err = tx.GetContext(ctx, &stock,
		"SELECT stock FROM articles WHERE id = $1 FOR UPDATE", articleID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.ErrArticleNotFound.WithDetail("article %d", articleID)
	}
	if err != nil {
		return apperror.Persistence("lock article stock", err)
	}

	if stock < quantity {
		return &apperror.InsufficientStockError{
			ArticleID: articleID,
			Requested: quantity,
			Available: stock,
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE articles SET stock = stock - $1, updated_at = NOW() WHERE id = $2",
		quantity, articleID)
	if err != nil {
		return apperror.Persistence("reserve stock", err)
	}

	if err := tx.Commit(); err != nil {
		return apperror.Persistence("commit reserve", err)
	}
	return nil
}

// ReleaseStock returns previously reserved units to the shelf
func (s *Store) ReleaseStock(ctx context.Context, articleID int64, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE articles SET stock = stock + $1, updated_at = NOW() WHERE id = $2",
		quantity, articleID)
	if err != nil {
		return apperror.Persistence("release stock", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.ErrArticleNotFound.WithDetail("article %d", articleID)
	}
	return nil
}

// GetStock returns the on-hand stock of an article
func (s *Store) GetStock(ctx context.Context, articleID int64) (int, error) {
	var stock int
	err := s.db.GetContext(ctx, &stock, "SELECT stock FROM articles WHERE id = $1", articleID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperror.ErrArticleNotFound.WithDetail("article %d", articleID)
	}
	if err != nil {
		return 0, apperror.Persistence("get stock", err)
	}
	return stock, nil
}

// GetActiveCart loads the customer's cart without locking it
func (s *Store) GetActiveCart(ctx context.Context, customerID int64) (*models.Cart, error) {
	return selectCart(ctx, s.db, "SELECT "+cartColumns+" FROM carts WHERE customer_id = $1", customerID)
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	if err != nil {
		return false, apperror.Persistence("check processed event", err)
	}
	return exists, nil
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	if err != nil {
		return apperror.Persistence("mark processed event", err)
	}
	return nil
}
