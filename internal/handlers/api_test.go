package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type revenueRow struct {
	Label   string
	Revenue string
}

func TestNewAPIHandlers(t *testing.T) {
	dashboard := newDashboard()
	handlers := NewAPIHandlers(dashboard, testLogger())

	if handlers == nil {
		t.Fatal("NewAPIHandlers() returned nil")
	}
	if handlers.dashboard != dashboard {
		t.Error("NewAPIHandlers() should set dashboard field")
	}
}

func TestAPIHandlers_NoDataset(t *testing.T) {
	handlers := NewAPIHandlers(newDashboard(), testLogger())

	endpoints := map[string]http.HandlerFunc{
		"/api/summary":         handlers.HandleSummary,
		"/api/monthly-revenue": handlers.HandleMonthlyRevenue,
		"/api/top-products":    handlers.HandleTopProducts,
		"/api/region-revenue":  handlers.HandleRegionRevenue,
		"/api/raw":             handlers.HandleRaw,
		"/api/charts":          handlers.HandleCharts,
	}

	for path, handler := range endpoints {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(http.MethodGet, path, nil))

			if w.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", w.Code)
			}
			env := decodeEnvelope(t, w.Body.Bytes())
			if env.Success || env.Error == nil || env.Error.Message != "no dataset loaded" {
				t.Errorf("unexpected body: %s", w.Body.String())
			}
		})
	}
}

func TestAPIHandlers_HandleSummary(t *testing.T) {
	handlers := NewAPIHandlers(loadedDashboard(t), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleSummary(w, httptest.NewRequest(http.MethodGet, "/api/summary", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}

	var summary struct {
		FileName    string `json:"file_name"`
		RecordCount int    `json:"record_count"`
		Totals      struct {
			Revenue  string `json:"total_revenue"`
			Quantity int64  `json:"total_quantity"`
		} `json:"totals"`
		FirstDate string `json:"first_date"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w.Body.Bytes()).Data, &summary); err != nil {
		t.Fatal(err)
	}

	if summary.FileName != "sales.csv" || summary.RecordCount != 3 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Totals.Revenue != "380" || summary.Totals.Quantity != 18 {
		t.Errorf("totals = %+v, want 380 / 18", summary.Totals)
	}
	if summary.FirstDate[:10] != "2024-01-05" {
		t.Errorf("first_date = %q", summary.FirstDate)
	}
}

func TestAPIHandlers_Breakdowns(t *testing.T) {
	handlers := NewAPIHandlers(loadedDashboard(t), testLogger())

	tests := []struct {
		name    string
		target  string
		handler http.HandlerFunc
		label   string
		want    []revenueRow
	}{
		{
			name:    "monthly ascending",
			target:  "/api/monthly-revenue",
			handler: handlers.HandleMonthlyRevenue,
			label:   "month",
			want:    []revenueRow{{"2024-01", "350"}, {"2024-02", "30"}},
		},
		{
			name:    "products descending",
			target:  "/api/top-products",
			handler: handlers.HandleTopProducts,
			label:   "product",
			want:    []revenueRow{{"Gadget", "250"}, {"Widget", "130"}},
		},
		{
			name:    "products limited",
			target:  "/api/top-products?limit=1",
			handler: handlers.HandleTopProducts,
			label:   "product",
			want:    []revenueRow{{"Gadget", "250"}},
		},
		{
			name:    "regions",
			target:  "/api/region-revenue",
			handler: handlers.HandleRegionRevenue,
			label:   "region",
			want:    []revenueRow{{"North", "130"}, {"South", "250"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}

			var rows []map[string]string
			if err := json.Unmarshal(decodeEnvelope(t, w.Body.Bytes()).Data, &rows); err != nil {
				t.Fatal(err)
			}
			got := make([]revenueRow, len(rows))
			for i, row := range rows {
				got[i] = revenueRow{row[tt.label], row["revenue"]}
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAPIHandlers_TopProductsBadLimit(t *testing.T) {
	handlers := NewAPIHandlers(loadedDashboard(t), testLogger())

	for _, limit := range []string{"0", "-3", "ten"} {
		w := httptest.NewRecorder()
		handlers.HandleTopProducts(w, httptest.NewRequest(http.MethodGet, "/api/top-products?limit="+limit, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", limit, w.Code)
		}
	}
}

func TestAPIHandlers_HandleRaw(t *testing.T) {
	handlers := NewAPIHandlers(loadedDashboard(t), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleRaw(w, httptest.NewRequest(http.MethodGet, "/api/raw", nil))

	var raw struct {
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w.Body.Bytes()).Data, &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw.Columns) != 5 || len(raw.Rows) != 3 || raw.Rows[1][1] != "Gadget" {
		t.Errorf("raw = %+v", raw)
	}
}

func TestAPIHandlers_HandleCharts(t *testing.T) {
	handlers := NewAPIHandlers(loadedDashboard(t), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleCharts(w, httptest.NewRequest(http.MethodGet, "/api/charts", nil))

	var charts struct {
		Monthly struct {
			Labels []string  `json:"labels"`
			Values []float64 `json:"values"`
		} `json:"monthly"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w.Body.Bytes()).Data, &charts); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{350, 30}, charts.Monthly.Values); diff != "" {
		t.Errorf("monthly values mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := NewAPIHandlers(newDashboard(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var health map[string]string
	if err := json.Unmarshal(decodeEnvelope(t, w.Body.Bytes()).Data, &health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", health["status"])
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	handlers := NewAPIHandlers(loadedDashboard(t), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	var stats map[string]any
	if err := json.Unmarshal(decodeEnvelope(t, w.Body.Bytes()).Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats["loaded"] != true || stats["record_count"] != float64(3) {
		t.Errorf("stats = %v", stats)
	}
}
