package handlers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"sales-analytics/internal/errors"
	"sales-analytics/internal/middleware"
	"sales-analytics/internal/services"
	"sales-analytics/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

type PageHandlers struct {
	dashboard  *services.Dashboard
	uploader   *Uploader
	logger     *slog.Logger
	rawMaxRows int
}

func NewPageHandlers(dashboard *services.Dashboard, uploader *Uploader, rawMaxRows int, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		dashboard:  dashboard,
		uploader:   uploader,
		logger:     logger,
		rawMaxRows: rawMaxRows,
	}
}

func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	state, lastErr := h.dashboard.Current()

	message := ""
	if lastErr != nil {
		message = lastErr.Error()
	}
	h.render(w, r, http.StatusOK, state, message)
}

// HandleUpload takes the form post. Pipeline failures are kept by the
// dashboard and shown after the redirect; a rejected upload never reaches
// the pipeline, so the page is rendered with the error instead.
func (h *PageHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	name, file, err := h.uploader.Open(w, r)
	if err != nil {
		status, message := http.StatusBadRequest, err.Error()
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			status, message = appErr.StatusCode, appErr.Message
		}
		h.logger.WarnContext(r.Context(), "upload rejected", "error", err, "status", status)

		state, _ := h.dashboard.Current()
		h.render(w, r, status, state, message)
		return
	}
	defer file.Close()

	if _, err := h.dashboard.Load(r.Context(), name, file); err != nil && !services.IsInputError(err) && !stderrors.Is(err, services.ErrSuperseded) {
		h.logger.ErrorContext(r.Context(), "upload failed", "file", name, "error", err)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PageHandlers) render(w http.ResponseWriter, r *http.Request, status int, state *services.State, message string) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	view := templates.DashboardView{
		State:      state,
		Error:      message,
		CSRFField:  middleware.CSRFFieldName,
		CSRFToken:  middleware.CSRFToken(r),
		RawMaxRows: h.rawMaxRows,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", noStore)
	w.WriteHeader(status)
	if err := templates.Dashboard(view).Render(ctx, w); err != nil {
		h.logger.ErrorContext(ctx, "render dashboard", "error", err)
	}
}
