package domain

import "github.com/shopspring/decimal"

// PriceScale is the number of decimal places a price may carry. The stores
// keep prices as DECIMAL(12,2).
const PriceScale = 2

// MaxPrice is the largest price a DECIMAL(12,2) column holds.
var MaxPrice = decimal.New(1, 10).Sub(decimal.New(1, -PriceScale))

// CheckPriceRange rejects prices with more than PriceScale decimal places or
// above MaxPrice. Sign checks are left to the caller.
func CheckPriceRange(price decimal.Decimal) error {
	if !price.Equal(price.Truncate(PriceScale)) {
		return InvalidArgumentf("price %s has more than %d decimal places", price, PriceScale)
	}
	if price.GreaterThan(MaxPrice) {
		return InvalidArgumentf("price %s exceeds the maximum of %s", price, MaxPrice.StringFixed(PriceScale))
	}
	return nil
}
