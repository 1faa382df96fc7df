package services

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"sales-analytics/internal/config"
	"sales-analytics/internal/models"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// loadTable runs ReadTable and ParseRecords over csv text.
func loadTable(t *testing.T, csv string) *models.SalesTable {
	t.Helper()
	raw, err := ReadTable(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	table, err := ParseRecords(raw, config.DefaultDateLayouts)
	if err != nil {
		t.Fatalf("ParseRecords() error = %v", err)
	}
	return table
}

const scenarioCSV = `date,product,region,quantity,revenue
2024-01-05,Widget,North,10,100.0
2024-01-20,Gadget,South,5,250.0
2024-02-02,Widget,North,3,30.0
`
