package service

import (
	"sort"
	"strings"
	"time"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewSupplierOrderNumber generates OVP-YYYYMMDD-XXXXXXXX
func NewSupplierOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return "OVP-" + now.UTC().Format("20060102") + "-" + suffix
}

// NewTransactionID generates the transaction id stamped on an order
func NewTransactionID() string {
	return "TX-" + uuid.New().String()
}

// SplitBySupplier partitions the order lines by the supplier owning each article.
// Every order line lands in exactly one supplier order, priced as the customer
// paid it. Supplier orders are returned in ascending supplier id.
func SplitBySupplier(
	order *models.Order,
	articles map[int64]models.Article,
	now time.Time,
	number func(time.Time) string,
) ([]*models.SupplierOrder, error) {
	if len(order.Items) == 0 {
		return nil, apperror.ErrEmptyCart
	}

	bySupplier := make(map[int64]*models.SupplierOrder)
	for _, item := range order.Items {
		article, ok := articles[item.ArticleID]
		if !ok {
			return nil, apperror.ErrArticleNotFound.WithDetail("article %d", item.ArticleID)
		}

		so, ok := bySupplier[article.SupplierID]
		if !ok {
			so = &models.SupplierOrder{
				OrderID:    order.ID,
				SupplierID: article.SupplierID,
				Status:     models.SupplierOrderStatusPending,
				Subtotal:   decimal.Zero,
				CreatedAt:  now,
			}
			bySupplier[article.SupplierID] = so
		}
		so.AddLine(item)
	}

	out := make([]*models.SupplierOrder, 0, len(bySupplier))
	for _, so := range bySupplier {
		out = append(out, so)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SupplierID < out[j].SupplierID })

	for _, so := range out {
		so.OrderNumber = number(now)
	}
	return out, nil
}
