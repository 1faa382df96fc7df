// Package export writes the current report as an XLSX workbook.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"sales-analytics/internal/services"
)

const (
	SheetSummary  = "Summary"
	SheetMonthly  = "Monthly Revenue"
	SheetProducts = "Top Products"
	SheetRegions  = "Revenue by Region"
	SheetRaw      = "Raw Data"
)

// ContentType is the media type of the written workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteWorkbook writes one sheet per derived table plus the raw rows.
// Revenue cells are numbers, not text.
func WriteWorkbook(w io.Writer, state *services.State) error {
	if state == nil {
		return errors.New("no dataset loaded")
	}

	wb := excelize.NewFile()
	defer wb.Close()

	ex := &exporter{wb: wb}
	if err := wb.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	if err := ex.headerStyle(); err != nil {
		return err
	}

	report := state.Report
	ex.sheet(SheetSummary, []any{"Metric", "Value"}, [][]any{
		{"File", state.FileName},
		{"Loaded At", state.LoadedAt.Format("2006-01-02 15:04:05 MST")},
		{"Records", report.RecordCount},
		{"Total Revenue", report.Totals.Revenue.InexactFloat64()},
		{"Total Units Sold", report.Totals.Quantity},
	})

	monthly := make([][]any, 0, len(report.Monthly))
	for _, m := range report.Monthly {
		monthly = append(monthly, []any{m.Month, m.Revenue.InexactFloat64()})
	}
	ex.sheet(SheetMonthly, []any{"month", "revenue"}, monthly)

	products := make([][]any, 0, len(report.Products))
	for _, p := range report.Products {
		products = append(products, []any{p.Product, p.Revenue.InexactFloat64()})
	}
	ex.sheet(SheetProducts, []any{"product", "revenue"}, products)

	regions := make([][]any, 0, len(report.Regions))
	for _, r := range report.Regions {
		regions = append(regions, []any{r.Region, r.Revenue.InexactFloat64()})
	}
	ex.sheet(SheetRegions, []any{"region", "revenue"}, regions)

	raw := state.Table.Raw
	header := make([]any, len(raw.Columns))
	for i, c := range raw.Columns {
		header[i] = c
	}
	rows := make([][]any, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		cells := make([]any, len(row))
		for i, c := range row {
			cells[i] = c
		}
		rows = append(rows, cells)
	}
	ex.sheet(SheetRaw, header, rows)

	if ex.err != nil {
		return ex.err
	}

	wb.SetActiveSheet(0)
	return wb.Write(w)
}

// exporter keeps the first excelize error.
type exporter struct {
	wb   *excelize.File
	bold int
	err  error
}

func (e *exporter) headerStyle() error {
	style, err := e.wb.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	e.bold = style
	return nil
}

func (e *exporter) sheet(name string, header []any, rows [][]any) {
	if e.err != nil {
		return
	}
	if idx, _ := e.wb.GetSheetIndex(name); idx < 0 {
		if _, err := e.wb.NewSheet(name); err != nil {
			e.err = fmt.Errorf("sheet %s: %w", name, err)
			return
		}
	}

	if err := e.wb.SetSheetRow(name, "A1", &header); err != nil {
		e.err = fmt.Errorf("sheet %s header: %w", name, err)
		return
	}
	if err := e.wb.SetRowStyle(name, 1, 1, e.bold); err != nil {
		e.err = fmt.Errorf("sheet %s header style: %w", name, err)
		return
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			e.err = err
			return
		}
		if err := e.wb.SetSheetRow(name, cell, &rows[i]); err != nil {
			e.err = fmt.Errorf("sheet %s row %d: %w", name, i+2, err)
			return
		}
	}
}
