package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestApplyBelowFreeShippingThreshold(t *testing.T) {
	totals := DefaultPolicy().Apply(d("15.00"))

	assert.Equal(t, "15.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "3.15", totals.Tax.StringFixed(2))
	assert.Equal(t, "4.99", totals.Shipping.StringFixed(2))
	assert.Equal(t, "23.14", totals.Total.StringFixed(2))
}

func TestApplyShippingThreshold(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		shipping string
		total    string
	}{
		{"exactly at threshold pays shipping", "50.00", "4.99", "65.49"},
		{"above threshold ships free", "50.01", "0.00", "60.51"},
		{"large order", "200.00", "0.00", "242.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := DefaultPolicy().Apply(d(tt.subtotal))
			assert.Equal(t, tt.shipping, totals.Shipping.StringFixed(2))
			assert.Equal(t, tt.total, totals.Total.StringFixed(2))
		})
	}
}

func TestApplyRoundsTaxToCents(t *testing.T) {
	totals := DefaultPolicy().Apply(d("3.33"))

	// 3.33 * 0.21 = 0.6993
	assert.Equal(t, "0.70", totals.Tax.StringFixed(2))
}

func TestApplyZeroSubtotal(t *testing.T) {
	totals := DefaultPolicy().Apply(decimal.Zero)

	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Tax.IsZero())
	assert.True(t, totals.Shipping.IsZero())
	assert.True(t, totals.Total.IsZero())
}

func TestCustomPolicy(t *testing.T) {
	p := Policy{
		TaxRate:               d("0.10"),
		ShippingFee:           d("2.50"),
		FreeShippingThreshold: d("20"),
	}

	totals := p.Apply(d("10"))
	assert.Equal(t, "1.00", totals.Tax.StringFixed(2))
	assert.Equal(t, "13.50", totals.Total.StringFixed(2))
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, "15.00", LineTotal(d("5.00"), 3).StringFixed(2))
	assert.True(t, LineTotal(d("5.00"), 0).IsZero())
}
