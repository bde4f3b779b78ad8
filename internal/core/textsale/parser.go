// Package textsale extracts a single sale from free text such as
// "Sold 3 eggs for $5".
//
// The grammar is a single regular expression and is intentionally loose:
// the first integer followed by whitespace is the quantity, the word right
// after it is the item name and the first number after that (optionally
// prefixed with "$") is the unit price. Known failure modes:
//
//   - only one item per text; "2 eggs and 3 milk for $4" yields eggs at 3
//   - a currency named before the quantity ("BND 5 for 3 eggs") is misread
//   - item names are a single ASCII word, so "nasi lemak" becomes "nasi"
//     and non-ASCII names do not match
package textsale

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var salePattern = regexp.MustCompile(`(\d+)\s+(\w+).*?\$?(\d+\.?\d*)`)

// Parsed is a sale extracted from text.
type Parsed struct {
	ItemName string
	Quantity int
	Price    decimal.Decimal
}

// Parse returns ok=false when the text does not describe a sale. A false
// result must not be treated as a zero-valued sale.
func Parse(text string) (Parsed, bool) {
	m := salePattern.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return Parsed{}, false
	}

	qty, err := strconv.Atoi(m[1])
	if err != nil {
		return Parsed{}, false
	}
	price, err := decimal.NewFromString(strings.TrimSuffix(m[3], "."))
	if err != nil {
		return Parsed{}, false
	}

	return Parsed{ItemName: m[2], Quantity: qty, Price: price}, true
}
