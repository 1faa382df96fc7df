package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.943 generate

import (
	"encoding/json"

	"sales-analytics/internal/models"
	"sales-analytics/internal/services"
)

// DashboardView is what the page needs from one request.
type DashboardView struct {
	State      *services.State
	Error      string
	CSRFField  string
	CSRFToken  string
	RawMaxRows int
}

// ChartSignals is the Datastar signal payload that drives the three charts.
func ChartSignals(charts models.Charts) map[string]any {
	return map[string]any{
		"monthlyData":  charts.Monthly,
		"productsData": charts.Products,
		"regionsData":  charts.Regions,
	}
}

// signalsJSON seeds the page with chart data; without a dataset the charts
// get empty series.
func signalsJSON(state *services.State) (string, error) {
	charts := models.EmptyCharts()
	if state != nil {
		charts = state.Charts
	}
	b, err := json.Marshal(ChartSignals(charts))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func visibleRows(rows [][]string, maxRows int) [][]string {
	if maxRows > 0 && len(rows) > maxRows {
		return rows[:maxRows]
	}
	return rows
}
