package handlers

import (
	"SHLink/internal/config"
	"SHLink/internal/middleware"
	"SHLink/internal/service"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handler struct {
	Router chi.Router
}

// NewHandler разводящий для хендлеров
func NewHandler(
	shlService *service.ShlService,
	manifestService *service.ManifestService,
	logger *zap.SugaredLogger,
	config *config.Config,
) *Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.WithGzip)
	r.Use(middleware.WithLogging)
	r.Use(middleware.WithMetrics)

	// Handlers
	protocolHandler := NewProtocolHandler(manifestService, logger)
	linkHandler := NewLinkHandler(shlService, logger, config)

	// Protocol routes
	r.Post("/api/shl/manifest/{manifestId}", protocolHandler.Manifest)
	r.Get("/api/shl/manifest/{manifestId}", protocolHandler.DirectAccess)
	r.Get("/api/shl/file/{tokenId}", protocolHandler.File)

	// Management routes
	r.Post("/api/shl", linkHandler.Create)
	r.Get("/api/shl", linkHandler.List)
	r.Get("/api/shl/{id}", linkHandler.Detail)
	r.Delete("/api/shl/{id}", linkHandler.Deactivate)
	r.Get("/api/shl/{id}/access-log", linkHandler.AccessLog)
	r.Post("/api/shl/{id}/content", linkHandler.AddContent)

	// Operational routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Handler{Router: r}
}
