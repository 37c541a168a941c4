// Package pricing holds the tax and shipping policy applied to carts and orders.
// Every place that computes totals goes through Policy.Apply.
package pricing

import "github.com/shopspring/decimal"

var (
	DefaultTaxRate               = decimal.RequireFromString("0.21")
	DefaultShippingFee           = decimal.RequireFromString("4.99")
	DefaultFreeShippingThreshold = decimal.RequireFromString("50.00")
)

// Policy is a pure function of the subtotal.
type Policy struct {
	TaxRate               decimal.Decimal
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// Totals is the result of applying a Policy.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

func DefaultPolicy() Policy {
	return Policy{
		TaxRate:               DefaultTaxRate,
		ShippingFee:           DefaultShippingFee,
		FreeShippingThreshold: DefaultFreeShippingThreshold,
	}
}

// Apply computes tax, shipping and total for subtotal. A zero subtotal yields
// zero totals; shipping is free only when subtotal is strictly above the threshold.
func (p Policy) Apply(subtotal decimal.Decimal) Totals {
	if !subtotal.IsPositive() {
		return Zero()
	}

	tax := subtotal.Mul(p.TaxRate).Round(2)

	shipping := p.ShippingFee
	if subtotal.GreaterThan(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}

// Zero returns all-zero totals.
func Zero() Totals {
	return Totals{
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
		Shipping: decimal.Zero,
		Total:    decimal.Zero,
	}
}

// LineTotal returns unitPrice * quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
