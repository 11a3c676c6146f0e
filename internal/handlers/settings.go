package handlers

import (
	"log"
	"net/http"

	"github.com/lessonbank/dedup/internal/api"
	"github.com/lessonbank/dedup/internal/services"
)

// SettingsHandler serves the detection tunables
type SettingsHandler struct {
	settings *services.SettingsService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// SetupRoutes sets up the settings routes
func (h *SettingsHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/settings/duplicates", h.handleDedupSettings)
}

// handleDedupSettings handles GET /api/settings/duplicates and PUT /api/settings/duplicates
func (h *SettingsHandler) handleDedupSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := h.settings.GetSettings(r.Context())
		if err != nil {
			log.Printf("SettingsHandler: failed to load settings: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to load settings")
			return
		}
		api.RespondJSON(w, http.StatusOK, settings)

	case http.MethodPut:
		var req api.UpdateDedupSettingsRequest
		if !api.DecodeAndValidate(w, r, &req) {
			return
		}

		settings, err := h.settings.GetSettings(r.Context())
		if err != nil {
			log.Printf("SettingsHandler: failed to load settings: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to load settings")
			return
		}

		api.ApplySettingsUpdate(settings, req)
		if err := settings.Validate(); err != nil {
			api.RespondErrorWithCode(w, http.StatusUnprocessableEntity, api.CodeInvalidSettings, err.Error())
			return
		}
		if err := h.settings.UpdateSettings(r.Context(), settings); err != nil {
			log.Printf("SettingsHandler: failed to update settings: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to update settings")
			return
		}

		log.Printf("SettingsHandler: detection settings updated by %s", reviewerFromRequest(r))
		api.RespondJSON(w, http.StatusOK, settings)

	default:
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
