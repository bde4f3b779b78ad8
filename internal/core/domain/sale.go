package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is a row of the sales table. ItemName is a soft reference to
// InventoryItem.Name captured at write time, not a foreign key.
type Sale struct {
	ID        int64           `json:"id"`
	ItemName  string          `json:"item_name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Total is quantity * price.
func (s Sale) Total() decimal.Decimal {
	return s.Price.Mul(decimal.NewFromInt(int64(s.Quantity)))
}

// SalesTotals are the aggregate counters read back after a sale is recorded.
type SalesTotals struct {
	TotalSales     int64           `json:"total_sales"`
	TotalItemsSold int64           `json:"total_items_sold"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
}

// SaleReceipt is the outcome of recording a sale.
type SaleReceipt struct {
	Sale             Sale        `json:"sale"`
	ItemID           int64       `json:"item_id"`
	PreviousQuantity int         `json:"previous_quantity"`
	NewQuantity      int         `json:"new_quantity"`
	Totals           SalesTotals `json:"summary"`
}

// DeletionResult describes a sale deletion. Deleted is set for a single-row
// delete, Count for a delete of all rows.
type DeletionResult struct {
	All     bool  `json:"all"`
	Deleted *Sale `json:"deleted_sale,omitempty"`
	Count   int64 `json:"deleted_count"`
}
