package services

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sales-analytics/internal/models"
)

// MonthKey truncates a date to its zero-padded year and month.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// revenueGroups sums revenue per key and remembers first-seen key order.
type revenueGroups struct {
	index map[string]int
	keys  []string
	sums  []decimal.Decimal
}

func newRevenueGroups() *revenueGroups {
	return &revenueGroups{index: make(map[string]int)}
}

func (g *revenueGroups) add(key string, amount decimal.Decimal) {
	if i, ok := g.index[key]; ok {
		g.sums[i] = g.sums[i].Add(amount)
		return
	}
	g.index[key] = len(g.keys)
	g.keys = append(g.keys, key)
	g.sums = append(g.sums, amount)
}

// Aggregate derives totals and the month, product and region breakdowns.
// Each breakdown partitions the records, so its sums add up to the total
// revenue exactly. The input is not modified.
func Aggregate(table *models.SalesTable) *models.Report {
	months := newRevenueGroups()
	products := newRevenueGroups()
	regions := newRevenueGroups()

	revenue := decimal.Zero
	quantity := decimal.Zero
	report := &models.Report{RecordCount: len(table.Records)}

	for i, rec := range table.Records {
		revenue = revenue.Add(rec.Revenue)
		quantity = quantity.Add(rec.Quantity)

		months.add(MonthKey(rec.Date), rec.Revenue)
		products.add(rec.Product, rec.Revenue)
		regions.add(rec.Region, rec.Revenue)

		if i == 0 || rec.Date.Before(report.FirstDate) {
			report.FirstDate = rec.Date
		}
		if i == 0 || rec.Date.After(report.LastDate) {
			report.LastDate = rec.Date
		}
	}

	// Sum first, then truncate. ParseRecords keeps the sum within int64.
	report.Totals = models.Totals{Revenue: revenue, Quantity: quantity.IntPart()}

	report.Monthly = make([]models.MonthlyRevenue, len(months.keys))
	for i, k := range months.keys {
		report.Monthly[i] = models.MonthlyRevenue{Month: k, Revenue: months.sums[i]}
	}
	slices.SortFunc(report.Monthly, func(a, b models.MonthlyRevenue) int {
		return strings.Compare(a.Month, b.Month)
	})

	report.Products = make([]models.ProductRevenue, len(products.keys))
	for i, k := range products.keys {
		report.Products[i] = models.ProductRevenue{Product: k, Revenue: products.sums[i]}
	}
	slices.SortStableFunc(report.Products, func(a, b models.ProductRevenue) int {
		return b.Revenue.Cmp(a.Revenue)
	})

	report.Regions = make([]models.RegionRevenue, len(regions.keys))
	for i, k := range regions.keys {
		report.Regions[i] = models.RegionRevenue{Region: k, Revenue: regions.sums[i]}
	}

	return report
}

// BuildCharts projects a report onto the line, bar and pie series the page
// draws.
func BuildCharts(report *models.Report) models.Charts {
	charts := models.Charts{
		Monthly:  newSeries(len(report.Monthly)),
		Products: newSeries(len(report.Products)),
		Regions:  newSeries(len(report.Regions)),
	}

	for _, m := range report.Monthly {
		charts.Monthly.Labels = append(charts.Monthly.Labels, m.Month)
		charts.Monthly.Values = append(charts.Monthly.Values, m.Revenue.InexactFloat64())
	}
	for _, p := range report.Products {
		charts.Products.Labels = append(charts.Products.Labels, p.Product)
		charts.Products.Values = append(charts.Products.Values, p.Revenue.InexactFloat64())
	}
	for _, r := range report.Regions {
		charts.Regions.Labels = append(charts.Regions.Labels, r.Region)
		charts.Regions.Values = append(charts.Regions.Values, r.Revenue.InexactFloat64())
	}

	return charts
}

func newSeries(n int) models.Series {
	return models.Series{
		Labels: make([]string, 0, n),
		Values: make([]float64, 0, n),
	}
}
