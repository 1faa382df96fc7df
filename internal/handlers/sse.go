package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"sales-analytics/internal/models"
	"sales-analytics/internal/observability"
	"sales-analytics/internal/services"
	"sales-analytics/internal/ui/templates"
)

type SSEHandlers struct {
	dashboard  *services.Dashboard
	logger     *slog.Logger
	rawMaxRows int
}

func NewSSEHandlers(dashboard *services.Dashboard, rawMaxRows int, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		dashboard:  dashboard,
		logger:     logger,
		rawMaxRows: rawMaxRows,
	}
}

func renderHTML(ctx context.Context, c templ.Component) (string, error) {
	var buf strings.Builder
	err := c.Render(ctx, &buf)
	return buf.String(), err
}

// fragments returns the elements to patch for the current state, in page
// order.
func (h *SSEHandlers) fragments(state *services.State, lastErr error) []templ.Component {
	message := ""
	if lastErr != nil {
		message = lastErr.Error()
	}

	parts := []templ.Component{templates.ErrorBanner(message)}
	if state != nil {
		parts = append(parts,
			templates.FileInfo(state),
			templates.Metrics(state.Report),
			templates.RawTable(state.Table.Raw, h.rawMaxRows),
		)
	}
	return parts
}

// HandleRefreshAll re-sends every dashboard element and the chart signals.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerFrom(ctx, h.logger)
	state, lastErr := h.dashboard.Current()

	sse := datastar.NewSSE(w, r)

	for _, c := range h.fragments(state, lastErr) {
		html, err := renderHTML(ctx, c)
		if err != nil {
			logger.Error("render fragment", "error", err)
			return
		}
		if err := sse.PatchElements(html); err != nil {
			logger.Warn("patch elements", "error", err)
			return
		}
	}

	charts := models.EmptyCharts()
	if state != nil {
		charts = state.Charts
	}

	allSignals, err := json.Marshal(templates.ChartSignals(charts))
	if err != nil {
		logger.Error("marshal chart signals", "error", err)
		return
	}
	if err := sse.PatchSignals(allSignals); err != nil {
		logger.Warn("patch signals", "error", err)
		return
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
