package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Required column names of an uploaded sales export.
const (
	ColumnDate     = "date"
	ColumnProduct  = "product"
	ColumnRegion   = "region"
	ColumnQuantity = "quantity"
	ColumnRevenue  = "revenue"
)

// RequiredColumns lists the schema in display order.
var RequiredColumns = []string{ColumnDate, ColumnProduct, ColumnRegion, ColumnQuantity, ColumnRevenue}

// RawTable is a CSV file as read: header plus cells, in file order.
// Lines[i], when set, is the CSV line Rows[i] starts on.
type RawTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Lines   []int      `json:"-"`
}

// Line returns the CSV line of row i, or 0 when unknown.
func (t *RawTable) Line(i int) int {
	if i < len(t.Lines) {
		return t.Lines[i]
	}
	return 0
}

// Index returns the position of the named column, or -1.
func (t *RawTable) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

type SalesRecord struct {
	Date     time.Time
	Product  string
	Region   string
	Quantity decimal.Decimal
	Revenue  decimal.Decimal
}

// SalesTable pairs the raw file with its typed records. Records[i] comes
// from Raw.Rows[i].
type SalesTable struct {
	Raw     *RawTable
	Records []SalesRecord
}

type Totals struct {
	Revenue  decimal.Decimal `json:"total_revenue"`
	Quantity int64           `json:"total_quantity"`
}

type MonthlyRevenue struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

type ProductRevenue struct {
	Product string          `json:"product"`
	Revenue decimal.Decimal `json:"revenue"`
}

type RegionRevenue struct {
	Region  string          `json:"region"`
	Revenue decimal.Decimal `json:"revenue"`
}

type Report struct {
	Totals      Totals           `json:"totals"`
	Monthly     []MonthlyRevenue `json:"monthly_revenue"`
	Products    []ProductRevenue `json:"product_revenue"`
	Regions     []RegionRevenue  `json:"region_revenue"`
	RecordCount int              `json:"record_count"`
	FirstDate   time.Time        `json:"first_date"`
	LastDate    time.Time        `json:"last_date"`
}

// Series is one chart's worth of points.
type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

type Charts struct {
	Monthly  Series `json:"monthly"`
	Products Series `json:"products"`
	Regions  Series `json:"regions"`
}

// EmptyCharts has every series present with no points.
func EmptyCharts() Charts {
	return Charts{
		Monthly:  Series{Labels: []string{}, Values: []float64{}},
		Products: Series{Labels: []string{}, Values: []float64{}},
		Regions:  Series{Labels: []string{}, Values: []float64{}},
	}
}
