package templates

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/shopspring/decimal"

	"sales-analytics/internal/config"
	"sales-analytics/internal/models"
	"sales-analytics/internal/services"
)

const sampleCSV = `date,product,region,quantity,revenue
2024-01-05,Widget,North,10,100
2024-01-20,Gadget,South,5,250
2024-02-03,Widget,North,3,30
`

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var sb strings.Builder
	if err := c.Render(context.Background(), &sb); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return sb.String()
}

func loadedState(t *testing.T) *services.State {
	t.Helper()
	d := services.NewDashboard(config.DefaultDateLayouts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	state, err := d.Load(context.Background(), "sales.csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return state
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0"},
		{"380", "$380"},
		{"1234567", "$1,234,567"},
		{"999.4", "$999"},
		{"2.5", "$2"},
		{"3.5", "$4"},
		{"-1234.2", "$-1,234"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := FormatCurrency(decimal.RequireFromString(tt.in)); got != tt.want {
				t.Errorf("FormatCurrency(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatQuantity(t *testing.T) {
	if got := FormatQuantity(18); got != "18" {
		t.Errorf("FormatQuantity(18) = %q", got)
	}
	if got := FormatQuantity(1234567); got != "1234567" {
		t.Errorf("FormatQuantity(1234567) = %q", got)
	}
}

func TestDashboard_Empty(t *testing.T) {
	html := render(t, Dashboard(DashboardView{CSRFField: "csrf_token", CSRFToken: "tok"}))

	for _, want := range []string{
		"<title>Sales Analytics Lite</title>",
		`name="csrf_token" value="tok"`,
		`<div id="error-banner"></div>`,
		"Upload a CSV",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(html, `id="metrics"`) {
		t.Error("metrics should not render without a dataset")
	}
}

func TestDashboard_Loaded(t *testing.T) {
	html := render(t, Dashboard(DashboardView{State: loadedState(t), RawMaxRows: 500}))

	for _, want := range []string{
		"$380",
		">18<",
		"Total Units Sold",
		`id="monthly-chart"`,
		`id="products-chart"`,
		`id="regions-chart"`,
		"&#34;monthlyData&#34;",
		"sales.csv",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(html, `name="csrf_token"`) {
		t.Error("no csrf field expected when protection is off")
	}
}

func TestErrorBanner_Escapes(t *testing.T) {
	html := render(t, ErrorBanner(`row 1: cannot parse date "<script>"`))
	if strings.Contains(html, "<script>") {
		t.Errorf("banner not escaped: %s", html)
	}
	if !strings.Contains(html, `role="alert"`) {
		t.Errorf("banner = %s", html)
	}
}

func TestRawTable_Cap(t *testing.T) {
	raw := &models.RawTable{
		Columns: []string{"date", "product"},
		Rows:    [][]string{{"2024-01-01", "A"}, {"2024-01-02", "B"}, {"2024-01-03", "C"}},
	}

	capped := render(t, RawTable(raw, 2))
	if strings.Count(capped, "<tr>") != 3 {
		t.Errorf("want header + 2 rows, got %d rows", strings.Count(capped, "<tr>"))
	}
	if !strings.Contains(capped, "Showing first 2 of 3 rows.") {
		t.Errorf("missing cap note: %s", capped)
	}

	all := render(t, RawTable(raw, 0))
	if strings.Count(all, "<tr>") != 4 || strings.Contains(all, "Showing first") {
		t.Errorf("uncapped table = %s", all)
	}
}

func TestChartSignals(t *testing.T) {
	state := loadedState(t)
	signals := ChartSignals(state.Charts)

	monthly, ok := signals["monthlyData"].(models.Series)
	if !ok {
		t.Fatalf("monthlyData = %T", signals["monthlyData"])
	}
	if strings.Join(monthly.Labels, ",") != "2024-01,2024-02" {
		t.Errorf("monthly labels = %v", monthly.Labels)
	}
	if _, ok := signals["productsData"]; !ok {
		t.Error("missing productsData")
	}
	if _, ok := signals["regionsData"]; !ok {
		t.Error("missing regionsData")
	}
}

func TestDashboard_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sb strings.Builder
	if err := Dashboard(DashboardView{}).Render(ctx, &sb); err != context.Canceled {
		t.Errorf("Render() error = %v, want context.Canceled", err)
	}
	if sb.Len() != 0 {
		t.Errorf("canceled render wrote %d bytes", sb.Len())
	}
}

func TestDashboard_EmptySignals(t *testing.T) {
	html := render(t, Dashboard(DashboardView{}))
	if !strings.Contains(html, `data-signals="{&#34;monthlyData&#34;:{&#34;labels&#34;:[]`) {
		t.Errorf("empty dataset should still seed chart signals: %s", html)
	}
}
