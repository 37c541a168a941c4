package models

import (
	"time"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/pricing"

	"github.com/shopspring/decimal"
)

// Cart is the per-customer aggregate. Line items are owned by the cart and only
// change through its methods.
type Cart struct {
	ID         int64           `db:"id"`
	CustomerID int64           `db:"customer_id"`
	Finalized  bool            `db:"finalized"`
	Subtotal   decimal.Decimal `db:"subtotal"`
	Tax        decimal.Decimal `db:"tax"`
	Shipping   decimal.Decimal `db:"shipping"`
	Total      decimal.Decimal `db:"total"`
	Version    int64           `db:"version"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`

	items []CartItem
}

// CartItem is a line of a cart
type CartItem struct {
	ID          int64           `db:"id"`
	CartID      int64           `db:"cart_id"`
	ArticleID   int64           `db:"article_id"`
	ArticleName string          `db:"article_name"`
	Quantity    int             `db:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	LineTotal   decimal.Decimal `db:"line_total"`
}

// NewCart returns an empty, non-finalized cart for customerID
func NewCart(customerID int64) *Cart {
	totals := pricing.Zero()
	return &Cart{
		CustomerID: customerID,
		Subtotal:   totals.Subtotal,
		Tax:        totals.Tax,
		Shipping:   totals.Shipping,
		Total:      totals.Total,
	}
}

// Items returns a copy of the cart's line items
func (c *Cart) Items() []CartItem {
	out := make([]CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// LoadItems replaces the line items with persisted state. Used by repositories.
func (c *Cart) LoadItems(items []CartItem) {
	c.items = make([]CartItem, len(items))
	copy(c.items, items)
}

// Clone returns a deep copy of the cart
func (c *Cart) Clone() *Cart {
	clone := *c
	clone.items = c.Items()
	return &clone
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Item returns the line for articleID, if present
func (c *Cart) Item(articleID int64) (CartItem, bool) {
	if i := c.indexOf(articleID); i >= 0 {
		return c.items[i], true
	}
	return CartItem{}, false
}

// AddItem adds quantity units of article, creating the line if needed. The unit
// price snapshot is refreshed from the article on every add.
func (c *Cart) AddItem(article Article, quantity int) error {
	if quantity <= 0 {
		return apperror.ErrInvalidQuantity
	}

	i := c.indexOf(article.ID)
	if i < 0 {
		c.items = append(c.items, CartItem{
			CartID:    c.ID,
			ArticleID: article.ID,
		})
		i = len(c.items) - 1
	}

	item := &c.items[i]
	item.ArticleName = article.Name
	item.Quantity += quantity
	item.UnitPrice = article.Price
	item.LineTotal = pricing.LineTotal(item.UnitPrice, item.Quantity)
	return nil
}

// DecrementItem removes one unit of articleID, dropping the line when it reaches zero.
// It reports whether the line was removed.
func (c *Cart) DecrementItem(articleID int64) (bool, error) {
	i := c.indexOf(articleID)
	if i < 0 {
		return false, apperror.ErrItemNotFound.WithDetail("article %d", articleID)
	}

	item := &c.items[i]
	item.Quantity--
	if item.Quantity <= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
		return true, nil
	}
	item.LineTotal = pricing.LineTotal(item.UnitPrice, item.Quantity)
	return false, nil
}

// Clear removes every line and returns the removed lines.
func (c *Cart) Clear() []CartItem {
	removed := c.items
	c.items = nil
	return removed
}

// Reset turns a finalized cart back into a fresh, empty one.
func (c *Cart) Reset() {
	c.items = nil
	c.Finalized = false
	c.applyTotals(pricing.Zero())
}

// Finalize marks the cart consumed by a checkout. Its lines move into the order,
// so stock stays reserved.
func (c *Cart) Finalize() {
	c.items = nil
	c.Finalized = true
	c.applyTotals(pricing.Zero())
}

// Recalculate recomputes line totals, subtotal and the policy-driven totals.
func (c *Cart) Recalculate(policy pricing.Policy) {
	subtotal := decimal.Zero
	for i := range c.items {
		c.items[i].LineTotal = pricing.LineTotal(c.items[i].UnitPrice, c.items[i].Quantity)
		subtotal = subtotal.Add(c.items[i].LineTotal)
	}
	c.applyTotals(policy.Apply(subtotal))
}

// Totals returns the cart's current totals
func (c *Cart) Totals() pricing.Totals {
	return pricing.Totals{
		Subtotal: c.Subtotal,
		Tax:      c.Tax,
		Shipping: c.Shipping,
		Total:    c.Total,
	}
}

func (c *Cart) applyTotals(t pricing.Totals) {
	c.Subtotal = t.Subtotal
	c.Tax = t.Tax
	c.Shipping = t.Shipping
	c.Total = t.Total
}

func (c *Cart) indexOf(articleID int64) int {
	for i := range c.items {
		if c.items[i].ArticleID == articleID {
			return i
		}
	}
	return -1
}
