package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryItem is a record joined with its drug and category names
type InventoryItem struct {
	InventoryRecord
	DrugName     string `json:"drug_name" db:"drug_name"`
	CategoryName string `json:"category_name" db:"category_name"`
}

// PharmacySnapshot is everything a dashboard reads, taken from one consistent view
type PharmacySnapshot struct {
	PharmacyID         uuid.UUID
	Items              []InventoryItem
	UnresolvedAlerts   []Alert
	RecentPriceChanges []PriceChangeView
}

// StatusStat is the count and value of records in one status
type StatusStat struct {
	Count      int             `json:"count"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// CategoryStat aggregates records of one drug category
type CategoryStat struct {
	Category      string          `json:"category"`
	Count         int             `json:"count"`
	TotalQuantity int             `json:"total_quantity"`
	AveragePrice  decimal.Decimal `json:"avg_price"`
}

// DashboardOverview holds the headline totals
type DashboardOverview struct {
	TotalItems       int             `json:"total_items"`
	TotalValue       decimal.Decimal `json:"total_value"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	AverageItemValue decimal.Decimal `json:"average_item_value"`
}

// Dashboard is the read-only rollup for one pharmacy
type Dashboard struct {
	PharmacyID         uuid.UUID                      `json:"pharmacy_id"`
	GeneratedAt        time.Time                      `json:"generated_at"`
	Overview           DashboardOverview              `json:"overview"`
	StatusBreakdown    map[InventoryStatus]StatusStat `json:"status_breakdown"`
	CategoryBreakdown  []CategoryStat                 `json:"category_breakdown"`
	UnresolvedAlerts   map[AlertType]int              `json:"unresolved_alerts"`
	LowStockCount      int                            `json:"low_stock_count"`
	ExpiringSoonCount  int                            `json:"expiring_soon_count"`
	RecentPriceChanges []PriceChangeView              `json:"recent_price_changes"`
}

// BuildDashboard computes every rollup from a single snapshot
func BuildDashboard(snap *PharmacySnapshot, now time.Time, windowDays int) *Dashboard {
	d := &Dashboard{
		PharmacyID:         snap.PharmacyID,
		GeneratedAt:        now,
		StatusBreakdown:    make(map[InventoryStatus]StatusStat),
		UnresolvedAlerts:   make(map[AlertType]int),
		RecentPriceChanges: snap.RecentPriceChanges,
	}
	if d.RecentPriceChanges == nil {
		d.RecentPriceChanges = []PriceChangeView{}
	}

	totalValue := decimal.Zero
	totalProfit := decimal.Zero

	type categoryAcc struct {
		count    int
		quantity int
		priceSum decimal.Decimal
	}
	categories := make(map[string]*categoryAcc)

	for i := range snap.Items {
		item := &snap.Items[i]
		value := item.Value()
		totalValue = totalValue.Add(value)

		if profit, ok := item.PotentialProfit(); ok {
			totalProfit = totalProfit.Add(profit)
		}

		stat := d.StatusBreakdown[item.Status]
		stat.Count++
		stat.TotalValue = stat.TotalValue.Add(value)
		d.StatusBreakdown[item.Status] = stat

		acc, ok := categories[item.CategoryName]
		if !ok {
			acc = &categoryAcc{}
			categories[item.CategoryName] = acc
		}
		acc.count++
		acc.quantity += item.Quantity
		acc.priceSum = acc.priceSum.Add(item.Price)

		if item.Quantity <= item.LowStockThreshold {
			d.LowStockCount++
		}
		if days, ok := item.DaysUntilExpiry(now); ok && days >= 0 && days <= windowDays {
			d.ExpiringSoonCount++
		}
	}

	for name, acc := range categories {
		d.CategoryBreakdown = append(d.CategoryBreakdown, CategoryStat{
			Category:      name,
			Count:         acc.count,
			TotalQuantity: acc.quantity,
			AveragePrice:  acc.priceSum.Div(decimal.NewFromInt(int64(acc.count))).Round(2),
		})
	}
	sort.Slice(d.CategoryBreakdown, func(i, j int) bool {
		a, b := d.CategoryBreakdown[i], d.CategoryBreakdown[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})

	for _, a := range snap.UnresolvedAlerts {
		if !a.IsResolved {
			d.UnresolvedAlerts[a.AlertType]++
		}
	}

	d.Overview = DashboardOverview{
		TotalItems:       len(snap.Items),
		TotalValue:       totalValue,
		TotalProfit:      totalProfit,
		AverageItemValue: decimal.Zero,
	}
	if len(snap.Items) > 0 {
		d.Overview.AverageItemValue = totalValue.Div(decimal.NewFromInt(int64(len(snap.Items)))).Round(2)
	}

	return d
}

// ExpiryItem is one record in an expiry bucket
type ExpiryItem struct {
	InventoryID     uuid.UUID       `json:"id"`
	DrugName        string          `json:"drug_name"`
	Quantity        int             `json:"quantity"`
	ExpiryDate      time.Time       `json:"expiry_date"`
	DaysUntilExpiry int             `json:"days_until_expiry"`
	EstimatedLoss   decimal.Decimal `json:"estimated_loss"`
}

// ExpiryBucket groups records by expiry horizon
type ExpiryBucket struct {
	Count         int             `json:"count"`
	EstimatedLoss decimal.Decimal `json:"estimated_loss"`
	Items         []ExpiryItem    `json:"items"`
}

func (b *ExpiryBucket) add(item ExpiryItem) {
	b.Count++
	b.EstimatedLoss = b.EstimatedLoss.Add(item.EstimatedLoss)
	b.Items = append(b.Items, item)
}

// ExpiryReport buckets records by how soon they expire. The week and month
// buckets overlap: a record expiring in 3 days is in both.
type ExpiryReport struct {
	Expired           ExpiryBucket `json:"expired"`
	ExpiringThisWeek  ExpiryBucket `json:"expiring_this_week"`
	ExpiringThisMonth ExpiryBucket `json:"expiring_this_month"`
}

// BuildExpiryReport computes the expiry buckets as of today
func BuildExpiryReport(items []InventoryItem, today time.Time) *ExpiryReport {
	r := &ExpiryReport{
		Expired:           ExpiryBucket{Items: []ExpiryItem{}},
		ExpiringThisWeek:  ExpiryBucket{Items: []ExpiryItem{}},
		ExpiringThisMonth: ExpiryBucket{Items: []ExpiryItem{}},
	}

	for i := range items {
		item := &items[i]
		days, ok := item.DaysUntilExpiry(today)
		if !ok {
			continue
		}
		entry := ExpiryItem{
			InventoryID:     item.ID,
			DrugName:        item.DrugName,
			Quantity:        item.Quantity,
			ExpiryDate:      *item.ExpiryDate,
			DaysUntilExpiry: days,
			EstimatedLoss:   item.Value(),
		}
		switch {
		case days < 0:
			r.Expired.add(entry)
		case days <= 7:
			r.ExpiringThisWeek.add(entry)
			r.ExpiringThisMonth.add(entry)
		case days <= 30:
			r.ExpiringThisMonth.add(entry)
		}
	}

	return r
}
