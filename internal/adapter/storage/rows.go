package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/katalis/laku/internal/core/domain"
)

const (
	itemColumns = `item_id, item_name, quantity, price, created_at, updated_at`
	saleColumns = `id, item_name, quantity, price, created_at, updated_at`
)

type itemRow struct {
	ID        int64           `db:"item_id"`
	Name      string          `db:"item_name"`
	Quantity  int             `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
	CreatedAt dbTime          `db:"created_at"`
	UpdatedAt dbTime          `db:"updated_at"`
}

func (r itemRow) toDomain() domain.InventoryItem {
	return domain.InventoryItem{
		ID:        r.ID,
		Name:      r.Name,
		Quantity:  r.Quantity,
		Price:     r.Price,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

type saleRow struct {
	ID        int64           `db:"id"`
	ItemName  string          `db:"item_name"`
	Quantity  int             `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
	CreatedAt dbTime          `db:"created_at"`
	UpdatedAt dbTime          `db:"updated_at"`
}

func (r saleRow) toDomain() domain.Sale {
	return domain.Sale{
		ID:        r.ID,
		ItemName:  r.ItemName,
		Quantity:  r.Quantity,
		Price:     r.Price,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

type totalsRow struct {
	TotalSales     int64           `db:"total_sales"`
	TotalItemsSold int64           `db:"total_items_sold"`
	TotalRevenue   decimal.Decimal `db:"total_revenue"`
}

// dbTime scans timestamps from drivers that return time.Time (mysql with
// parseTime, pgx) as well as those that hand back text (sqlite, mysql without
// parseTime). Values are normalized to UTC.
type dbTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
