package models

import (
	"errors"
	"testing"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func article(id int64, price string) Article {
	return Article{ID: id, SupplierID: 1, Name: "article", Price: decimal.RequireFromString(price), Stock: 100}
}

func TestCartAddItemMergesLines(t *testing.T) {
	cart := NewCart(1)

	require.NoError(t, cart.AddItem(article(10, "5.00"), 2))
	require.NoError(t, cart.AddItem(article(10, "5.00"), 1))
	require.NoError(t, cart.AddItem(article(11, "1.50"), 4))
	cart.Recalculate(pricing.DefaultPolicy())

	items := cart.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "15.00", items[0].LineTotal.StringFixed(2))
	assert.Equal(t, "21.00", cart.Subtotal.StringFixed(2))
}

func TestCartAddItemRefreshesPrice(t *testing.T) {
	cart := NewCart(1)

	require.NoError(t, cart.AddItem(article(10, "5.00"), 1))
	require.NoError(t, cart.AddItem(article(10, "6.00"), 1))
	cart.Recalculate(pricing.DefaultPolicy())

	item, ok := cart.Item(10)
	require.True(t, ok)
	assert.Equal(t, "6.00", item.UnitPrice.StringFixed(2))
	assert.Equal(t, "12.00", cart.Subtotal.StringFixed(2))
}

func TestCartAddItemRejectsNonPositiveQuantity(t *testing.T) {
	cart := NewCart(1)

	err := cart.AddItem(article(10, "5.00"), 0)
	assert.True(t, errors.Is(err, apperror.ErrInvalidQuantity))
	assert.True(t, cart.IsEmpty())
}

func TestCartDecrementItem(t *testing.T) {
	cart := NewCart(1)
	require.NoError(t, cart.AddItem(article(10, "5.00"), 2))

	removed, err := cart.DecrementItem(10)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = cart.DecrementItem(10)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.True(t, cart.IsEmpty())

	_, err = cart.DecrementItem(10)
	assert.True(t, errors.Is(err, apperror.ErrItemNotFound))
}

func TestCartFinalizeAndReset(t *testing.T) {
	cart := NewCart(1)
	require.NoError(t, cart.AddItem(article(10, "5.00"), 2))
	cart.Recalculate(pricing.DefaultPolicy())

	cart.Finalize()
	assert.True(t, cart.Finalized)
	assert.True(t, cart.IsEmpty())
	assert.True(t, cart.Total.IsZero())

	cart.Reset()
	assert.False(t, cart.Finalized)
}

func TestCartItemsReturnsCopy(t *testing.T) {
	cart := NewCart(1)
	require.NoError(t, cart.AddItem(article(10, "5.00"), 2))

	items := cart.Items()
	items[0].Quantity = 99

	item, _ := cart.Item(10)
	assert.Equal(t, 2, item.Quantity)
}

func TestCartClone(t *testing.T) {
	cart := NewCart(1)
	require.NoError(t, cart.AddItem(article(10, "5.00"), 2))

	clone := cart.Clone()
	_, err := clone.DecrementItem(10)
	require.NoError(t, err)

	item, _ := cart.Item(10)
	assert.Equal(t, 2, item.Quantity)
}

func TestSupplierOrderTransitions(t *testing.T) {
	assert.True(t, CanTransitionSupplierOrder(SupplierOrderStatusPending, SupplierOrderStatusSent))
	assert.True(t, CanTransitionSupplierOrder(SupplierOrderStatusSent, SupplierOrderStatusDelivered))
	assert.True(t, CanTransitionSupplierOrder(SupplierOrderStatusPending, SupplierOrderStatusCancelled))
	assert.False(t, CanTransitionSupplierOrder(SupplierOrderStatusDelivered, SupplierOrderStatusCancelled))
	assert.False(t, CanTransitionSupplierOrder(SupplierOrderStatusPending, SupplierOrderStatusDelivered))
	assert.False(t, IsSupplierOrderStatus("LOST"))
}

func TestOrderArticleIDs(t *testing.T) {
	order := &Order{Items: []OrderItem{{ArticleID: 3}, {ArticleID: 1}, {ArticleID: 3}}}
	assert.Equal(t, []int64{3, 1}, order.ArticleIDs())
}
