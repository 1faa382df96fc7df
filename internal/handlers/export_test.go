package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xuri/excelize/v2"

	"sales-analytics/internal/export"
)

func TestExportHandlers_HandleWorkbook(t *testing.T) {
	handlers := NewExportHandlers(loadedDashboard(t), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleWorkbook(w, httptest.NewRequest(http.MethodGet, "/export.xlsx", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != export.ContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="sales-report.xlsx"` {
		t.Errorf("Content-Disposition = %q", cd)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows(export.SheetProducts)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[1][0] != "Gadget" {
		t.Errorf("products = %v", rows)
	}
}

func TestExportHandlers_NoDataset(t *testing.T) {
	handlers := NewExportHandlers(newDashboard(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleWorkbook(w, httptest.NewRequest(http.MethodGet, "/export.xlsx", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestWorkbookName(t *testing.T) {
	tests := map[string]string{
		"sales.csv": "sales-report.xlsx",
		"Q1.CSV":    "Q1-report.xlsx",
		".csv":      "sales-report.xlsx",
	}
	for in, want := range tests {
		if got := workbookName(in); got != want {
			t.Errorf("workbookName(%q) = %q, want %q", in, got, want)
		}
	}
}
