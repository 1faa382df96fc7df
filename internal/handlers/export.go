package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"sales-analytics/internal/errors"
	"sales-analytics/internal/export"
	"sales-analytics/internal/observability"
	"sales-analytics/internal/services"
)

type ExportHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
}

func NewExportHandlers(dashboard *services.Dashboard, logger *slog.Logger) *ExportHandlers {
	return &ExportHandlers{
		dashboard: dashboard,
		logger:    logger,
	}
}

// HandleWorkbook streams the current report as an XLSX download.
func (h *ExportHandlers) HandleWorkbook(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	state, _ := h.dashboard.Current()
	if state == nil {
		errors.WriteError(w, r, h.logger, errors.NotFound("no dataset loaded"), requestID)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, state); err != nil {
		errors.WriteError(w, r, h.logger, errors.InternalWrap(err, "failed to build workbook"), requestID)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", workbookName(state.FileName)))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.Header().Set("Cache-Control", noStore)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "write workbook", "error", err)
	}
}

func workbookName(csvName string) string {
	base := strings.TrimSuffix(csvName, ".csv")
	base = strings.TrimSuffix(base, ".CSV")
	if base == "" {
		base = "sales"
	}
	return base + "-report.xlsx"
}
