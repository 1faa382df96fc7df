package services

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sales-analytics/internal/models"
)

// ParseDate tries each layout in turn against the trimmed text.
func ParseDate(raw string, layouts []string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s != "" {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, &DateParseError{Value: raw}
}

// Numbers are kept within ±10^28 and 28 decimal places. A larger exponent
// makes every later Add rescale through a huge power of ten.
const maxScale = 28

var (
	maxMagnitude = decimal.New(1, maxScale)
	minQuantity  = decimal.NewFromInt(math.MinInt64)
	maxQuantity  = decimal.NewFromInt(math.MaxInt64)
)

// parseNumber returns nil error only for a finite decimal inside the
// accepted range. ErrNumberRange marks numbers that parsed but are too big
// or too precise.
func parseNumber(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, errors.New("empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if exp := d.Exponent(); exp < -maxScale || exp > maxScale {
		return decimal.Zero, ErrNumberRange
	}
	if d.Abs().GreaterThanOrEqual(maxMagnitude) {
		return decimal.Zero, ErrNumberRange
	}
	return d, nil
}

// numberError keeps the range reason and drops plain syntax errors, whose
// message is already "not a number".
func numberError(err error) error {
	if errors.Is(err, ErrNumberRange) {
		return err
	}
	return nil
}

// ParseRecords coerces the required columns of a validated table. The first
// bad cell fails the whole table; there is no partial load.
func ParseRecords(table *models.RawTable, layouts []string) (*models.SalesTable, error) {
	if err := Validate(table); err != nil {
		return nil, err
	}

	dateCol := table.Index(models.ColumnDate)
	productCol := table.Index(models.ColumnProduct)
	regionCol := table.Index(models.ColumnRegion)
	quantityCol := table.Index(models.ColumnQuantity)
	revenueCol := table.Index(models.ColumnRevenue)

	records := make([]models.SalesRecord, 0, len(table.Rows))
	quantityTotal := decimal.Zero
	for i, row := range table.Rows {
		rowNum, line := i+1, table.Line(i)

		date, err := ParseDate(row[dateCol], layouts)
		if err != nil {
			return nil, &DateParseError{Row: rowNum, Line: line, Value: row[dateCol]}
		}

		quantity, err := parseNumber(row[quantityCol])
		if err != nil {
			return nil, &NumericParseError{Row: rowNum, Line: line, Column: models.ColumnQuantity, Value: row[quantityCol], Err: numberError(err)}
		}

		// The total is reported as an int64.
		quantityTotal = quantityTotal.Add(quantity)
		if quantityTotal.GreaterThan(maxQuantity) || quantityTotal.LessThan(minQuantity) {
			return nil, &NumericParseError{Row: rowNum, Line: line, Column: models.ColumnQuantity, Value: row[quantityCol], Err: ErrQuantityOverflow}
		}

		revenue, err := parseNumber(row[revenueCol])
		if err != nil {
			return nil, &NumericParseError{Row: rowNum, Line: line, Column: models.ColumnRevenue, Value: row[revenueCol], Err: numberError(err)}
		}

		records = append(records, models.SalesRecord{
			Date:     date,
			Product:  row[productCol],
			Region:   row[regionCol],
			Quantity: quantity,
			Revenue:  revenue,
		})
	}

	return &models.SalesTable{Raw: table, Records: records}, nil
}
