package store

import (
	"context"
	"database/sql"
	"errors"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const cartColumns = "id, customer_id, finalized, subtotal, tax, shipping, total, version, created_at, updated_at"

// txStore implements repository.Tx on top of a database transaction
type txStore struct {
	tx *sqlx.Tx
}

// LockCart loads the customer's cart FOR UPDATE
func (t *txStore) LockCart(ctx context.Context, customerID int64) (*models.Cart, error) {
	return selectCart(ctx, t.tx,
		"SELECT "+cartColumns+" FROM carts WHERE customer_id = $1 FOR UPDATE", customerID)
}

// CreateCart inserts an empty cart; one cart row per customer is enforced by a unique constraint
func (t *txStore) CreateCart(ctx context.Context, cart *models.Cart) error {
	query := `
		INSERT INTO carts (customer_id, finalized, subtotal, tax, shipping, total, version)
		VALUES ($1, $2, $3, $4, $5, $6, 1)
		ON CONFLICT (customer_id) DO NOTHING
		RETURNING id, version, created_at, updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		cart.CustomerID, cart.Finalized, cart.Subtotal, cart.Tax, cart.Shipping, cart.Total,
	).Scan(&cart.ID, &cart.Version, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.ErrConflict.WithDetail("cart already exists for customer %d", cart.CustomerID)
	}
	if err != nil {
		return apperror.Persistence("create cart", err)
	}
	return nil
}

// SaveCart writes the cart back with an optimistic version check and replaces its items
func (t *txStore) SaveCart(ctx context.Context, cart *models.Cart) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE carts
		SET finalized = $1, subtotal = $2, tax = $3, shipping = $4, total = $5,
		    version = version + 1, updated_at = NOW()
		WHERE id = $6 AND version = $7`,
		cart.Finalized, cart.Subtotal, cart.Tax, cart.Shipping, cart.Total, cart.ID, cart.Version)
	if err != nil {
		return apperror.Persistence("update cart", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Persistence("update cart", err)
	}
	if n == 0 {
		return apperror.ErrConflict.WithDetail("cart %d modified by another transaction", cart.ID)
	}
	cart.Version++

	if _, err := t.tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cart.ID); err != nil {
		return apperror.Persistence("delete cart items", err)
	}

	items := cart.Items()
	for i := range items {
		items[i].CartID = cart.ID
		err := t.tx.GetContext(ctx, &items[i].ID, `
			INSERT INTO cart_items (cart_id, article_id, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			cart.ID, items[i].ArticleID, items[i].Quantity, items[i].UnitPrice, items[i].LineTotal)
		if err != nil {
			return apperror.Persistence("insert cart item", err)
		}
	}
	cart.LoadItems(items)
	return nil
}

// GetArticles retrieves multiple articles by IDs
func (t *txStore) GetArticles(ctx context.Context, ids []int64) (map[int64]models.Article, error) {
	result := make(map[int64]models.Article, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In("SELECT "+articleColumns+" FROM articles WHERE id IN (?)", ids)
	if err != nil {
		return nil, apperror.Persistence("build article query", err)
	}
	query = t.tx.Rebind(query)

	var articles []models.Article
	if err := t.tx.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, apperror.Persistence("get articles", err)
	}
	for _, a := range articles {
		result[a.ID] = a
	}
	return result, nil
}

func selectCart(ctx context.Context, q sqlx.QueryerContext, query string, customerID int64) (*models.Cart, error) {
	var cart models.Cart
	err := sqlx.GetContext(ctx, q, &cart, query, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Persistence("get cart", err)
	}

	var items []models.CartItem
	err = sqlx.SelectContext(ctx, q, &items, `
		SELECT ci.id, ci.cart_id, ci.article_id, a.name AS article_name,
		       ci.quantity, ci.unit_price, ci.line_total
		FROM cart_items ci
		JOIN articles a ON a.id = ci.article_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`, cart.ID)
	if err != nil {
		return nil, apperror.Persistence("get cart items", err)
	}
	cart.LoadItems(items)
	return &cart, nil
}
