package handlers

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/lessonbank/dedup/internal/api"
)

// Version is reported by /health
const Version = "1.0.0"

// HTTPHandler serves the operational endpoints
type HTTPHandler struct {
	db       *gorm.DB
	gatherer prometheus.Gatherer
}

// NewHTTPHandler creates a new HTTP handler. A nil gatherer leaves /metrics unrouted.
func NewHTTPHandler(db *gorm.DB, gatherer prometheus.Gatherer) *HTTPHandler {
	return &HTTPHandler{
		db:       db,
		gatherer: gatherer,
	}
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// handleHealth reports liveness and whether the catalog database answers
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	response := map[string]string{
		"status":   "ok",
		"version":  Version,
		"database": "ok",
	}
	status := http.StatusOK

	if err := h.pingDB(r); err != nil {
		log.Printf("Warning: health check could not reach database: %v", err)
		response["status"] = "degraded"
		response["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}

	api.RespondJSON(w, status, response)
}

func (h *HTTPHandler) pingDB(r *http.Request) error {
	if h.db == nil {
		return nil
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(r.Context())
}
