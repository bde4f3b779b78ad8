package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is a row of the storage table.
type InventoryItem struct {
	ID        int64           `json:"item_id"`
	Name      string          `json:"item_name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ItemPatch carries the optional fields of an inventory update. Nil fields are left untouched.
type ItemPatch struct {
	Name     *string          `json:"item_name,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Quantity *int             `json:"quantity,omitempty"`
}

func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.Quantity == nil
}

// ItemRef selects an inventory row either by id or by case-insensitive name.
type ItemRef struct {
	ID   int64
	Name string
}

func ItemByID(id int64) ItemRef      { return ItemRef{ID: id} }
func ItemByName(name string) ItemRef { return ItemRef{Name: name} }
func (r ItemRef) ByID() bool         { return r.ID > 0 }

func (r ItemRef) String() string {
	if r.ByID() {
		return "#" + strconv.FormatInt(r.ID, 10)
	}
	return r.Name
}

// StockHandle identifies an inventory row locked by the current transaction.
// It must not outlive that transaction.
type StockHandle struct {
	ItemID    int64
	ItemName  string
	Available int
	ListPrice decimal.Decimal
}

// StockLevel is one bar of the inventory chart.
type StockLevel struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}
