package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	HoursPerDay       = 24
	RecentSalesWindow = 5
)

// Summary is the analytics view over the sales log.
type Summary struct {
	TotalRevenue        decimal.Decimal  `json:"total_revenue"`
	TotalSalesCount     int              `json:"total_sales_count"`
	AvgOrderValue       decimal.Decimal  `json:"avg_order_value"`
	BestSellingItem     string           `json:"best_selling_item"`
	BestSellingQuantity int              `json:"best_selling_quantity"`
	ItemsSold           map[string]int   `json:"items_sold"`
	HourlySales         [HoursPerDay]int `json:"hourly_sales"`
	RecentSales         []RecentSale     `json:"recent_sales"`
}

type RecentSale struct {
	ItemName string          `json:"item_name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Total    decimal.Decimal `json:"total"`
	Time     string          `json:"time"`
}

// ComputeSummary aggregates sales without touching the store.
//
// TotalSalesCount counts units while AvgOrderValue divides by rows.
// HourlySales buckets by the hour of CreatedAt in whatever location the
// timestamps carry; callers convert to the shop's zone first.
// When several items tie for best seller, the one that appeared first in
// sales wins.
func ComputeSummary(sales []Sale) Summary {
	sum := Summary{
		TotalRevenue:  decimal.Zero,
		AvgOrderValue: decimal.Zero,
		ItemsSold:     make(map[string]int),
		RecentSales:   []RecentSale{},
	}
	if len(sales) == 0 {
		return sum
	}

	var order []string
	for _, s := range sales {
		sum.TotalRevenue = sum.TotalRevenue.Add(s.Total())
		sum.TotalSalesCount += s.Quantity
		if _, seen := sum.ItemsSold[s.ItemName]; !seen {
			order = append(order, s.ItemName)
		}
		sum.ItemsSold[s.ItemName] += s.Quantity
		sum.HourlySales[s.CreatedAt.Hour()] += s.Quantity
	}
	sum.AvgOrderValue = sum.TotalRevenue.Div(decimal.NewFromInt(int64(len(sales))))

	for i, name := range order {
		if qty := sum.ItemsSold[name]; i == 0 || qty > sum.BestSellingQuantity {
			sum.BestSellingItem = name
			sum.BestSellingQuantity = qty
		}
	}

	recent := make([]Sale, len(sales))
	copy(recent, sales)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > RecentSalesWindow {
		recent = recent[:RecentSalesWindow]
	}
	for _, s := range recent {
		sum.RecentSales = append(sum.RecentSales, RecentSale{
			ItemName: s.ItemName,
			Quantity: s.Quantity,
			Price:    s.Price,
			Total:    s.Total(),
			Time:     s.CreatedAt.Format("15:04"),
		})
	}

	return sum
}
