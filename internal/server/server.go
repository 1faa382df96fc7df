package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sales-analytics/internal/errors"
	"sales-analytics/internal/handlers"
	"sales-analytics/internal/middleware"
	"sales-analytics/internal/observability"
	"sales-analytics/internal/services"
)

type Server struct {
	dashboard      *services.Dashboard
	router         chi.Router
	logger         *slog.Logger
	apiHandlers    *handlers.APIHandlers
	uploadHandlers *handlers.UploadHandlers
	pageHandlers   *handlers.PageHandlers
	sseHandlers    *handlers.SSEHandlers
	exportHandlers *handlers.ExportHandlers
	uploadLimiter  *middleware.UploadLimiter
}

// Options are the request-handling limits taken from configuration.
type Options struct {
	MaxUploadBytes  int64
	RawTableMaxRows int

	// UploadLimiter throttles both upload routes; nil leaves them open.
	UploadLimiter *middleware.UploadLimiter
}

func NewServer(dashboard *services.Dashboard, logger *slog.Logger, opts Options) *Server {
	uploader := handlers.NewUploader(opts.MaxUploadBytes)

	s := &Server{
		dashboard:      dashboard,
		router:         chi.NewRouter(),
		logger:         logger,
		apiHandlers:    handlers.NewAPIHandlers(dashboard, logger),
		uploadHandlers: handlers.NewUploadHandlers(dashboard, uploader, logger),
		pageHandlers:   handlers.NewPageHandlers(dashboard, uploader, opts.RawTableMaxRows, logger),
		sseHandlers:    handlers.NewSSEHandlers(dashboard, opts.RawTableMaxRows, logger),
		exportHandlers: handlers.NewExportHandlers(dashboard, logger),
		uploadLimiter:  opts.UploadLimiter,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	limitUploads := middleware.LimitUploads(s.uploadLimiter, s.logger)

	// Dashboard routes
	r.Get("/", s.pageHandlers.HandleDashboard)
	r.With(limitUploads).Post("/upload", s.pageHandlers.HandleUpload)
	r.Get("/export.xlsx", s.exportHandlers.HandleWorkbook)
	r.Get("/health", s.apiHandlers.HandleHealth)
	r.Get("/admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	r.Route("/api", func(api chi.Router) {
		api.With(limitUploads).Post("/upload", s.uploadHandlers.HandleUpload)
		api.Get("/summary", s.apiHandlers.HandleSummary)
		api.Get("/monthly-revenue", s.apiHandlers.HandleMonthlyRevenue)
		api.Get("/top-products", s.apiHandlers.HandleTopProducts)
		api.Get("/region-revenue", s.apiHandlers.HandleRegionRevenue)
		api.Get("/raw", s.apiHandlers.HandleRaw)
		api.Get("/charts", s.apiHandlers.HandleCharts)
	})

	// Datastar SSE endpoints
	r.Get("/sse/refresh-all", s.sseHandlers.HandleRefreshAll)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, r, s.logger, errors.NotFound("route not found"), observability.GetRequestID(r.Context()))
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
