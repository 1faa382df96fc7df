package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"sales-analytics/internal/errors"
	"sales-analytics/internal/models"
	"sales-analytics/internal/observability"
	"sales-analytics/internal/services"
)

const noStore = "no-store"

type APIHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
}

func NewAPIHandlers(dashboard *services.Dashboard, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		dashboard: dashboard,
		logger:    logger,
	}
}

// Summary is the reply of /api/summary and of a successful JSON upload.
type Summary struct {
	LoadID      string        `json:"load_id"`
	FileName    string        `json:"file_name"`
	LoadedAt    time.Time     `json:"loaded_at"`
	RecordCount int           `json:"record_count"`
	Totals      models.Totals `json:"totals"`
	FirstDate   *time.Time    `json:"first_date,omitempty"`
	LastDate    *time.Time    `json:"last_date,omitempty"`
	Products    int           `json:"products"`
	Months      int           `json:"months"`
	Regions     int           `json:"regions"`
}

func newSummary(state *services.State) Summary {
	report := state.Report
	s := Summary{
		LoadID:      state.ID.String(),
		FileName:    state.FileName,
		LoadedAt:    state.LoadedAt,
		RecordCount: report.RecordCount,
		Totals:      report.Totals,
		Products:    len(report.Products),
		Months:      len(report.Monthly),
		Regions:     len(report.Regions),
	}
	if report.RecordCount > 0 {
		s.FirstDate = &report.FirstDate
		s.LastDate = &report.LastDate
	}
	return s
}

// current writes a 404 and returns nil when no dataset is loaded.
func (h *APIHandlers) current(w http.ResponseWriter, r *http.Request) *services.State {
	state, lastErr := h.dashboard.Current()
	if state != nil {
		return state
	}

	appErr := errors.NotFound("no dataset loaded")
	if lastErr != nil {
		appErr.WithDetails(map[string]string{"last_error": lastErr.Error()})
	}
	errors.WriteError(w, r, h.logger, appErr, observability.GetRequestID(r.Context()))
	return nil
}

func (h *APIHandlers) writeData(w http.ResponseWriter, data any) {
	errors.WriteSuccessWithHeaders(w, data, map[string]string{"Cache-Control": noStore})
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	state := h.current(w, r)
	if state == nil {
		return
	}
	h.writeData(w, newSummary(state))
}

func (h *APIHandlers) HandleMonthlyRevenue(w http.ResponseWriter, r *http.Request) {
	state := h.current(w, r)
	if state == nil {
		return
	}
	h.writeData(w, nonNil(state.Report.Monthly))
}

// HandleTopProducts serves products by descending revenue. ?limit=N keeps
// the first N.
func (h *APIHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			appErr := errors.BadRequest("limit must be a positive integer")
			errors.WriteError(w, r, h.logger, appErr, observability.GetRequestID(r.Context()))
			return
		}
		limit = n
	}

	state := h.current(w, r)
	if state == nil {
		return
	}

	products := nonNil(state.Report.Products)
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	h.writeData(w, products)
}

func (h *APIHandlers) HandleRegionRevenue(w http.ResponseWriter, r *http.Request) {
	state := h.current(w, r)
	if state == nil {
		return
	}
	h.writeData(w, nonNil(state.Report.Regions))
}

func (h *APIHandlers) HandleRaw(w http.ResponseWriter, r *http.Request) {
	state := h.current(w, r)
	if state == nil {
		return
	}

	raw := *state.Table.Raw
	raw.Rows = nonNil(raw.Rows)
	h.writeData(w, raw)
}

func (h *APIHandlers) HandleCharts(w http.ResponseWriter, r *http.Request) {
	state := h.current(w, r)
	if state == nil {
		return
	}
	h.writeData(w, state.Charts)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.dashboard.Stats())
}

// nonNil keeps empty series as [] rather than null in JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
