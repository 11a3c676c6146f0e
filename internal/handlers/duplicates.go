package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/lessonbank/dedup/internal/api"
	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/duplicates"
	"github.com/lessonbank/dedup/internal/services"
)

// DuplicateHandler serves the duplicate review API
type DuplicateHandler struct {
	duplicates  *services.DuplicateService
	resolutions *services.ResolutionService
	catalog     *services.CatalogStore
	dismissals  *services.DismissalStore
}

// NewDuplicateHandler creates a new duplicate review handler
func NewDuplicateHandler(
	duplicateService *services.DuplicateService,
	resolutionService *services.ResolutionService,
	catalog *services.CatalogStore,
	dismissals *services.DismissalStore,
) *DuplicateHandler {
	return &DuplicateHandler{
		duplicates:  duplicateService,
		resolutions: resolutionService,
		catalog:     catalog,
		dismissals:  dismissals,
	}
}

// SetupRoutes sets up the duplicate review routes
func (h *DuplicateHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/duplicates", h.handleListGroups)
	mux.HandleFunc("POST /api/duplicates/refresh", h.handleRefresh)
	mux.HandleFunc("POST /api/duplicates/resolve", h.handleResolve)
	mux.HandleFunc("POST /api/duplicates/dismiss", h.handleDismiss)
	mux.HandleFunc("GET /api/duplicates/dismissed", h.handleListDismissed)
	mux.HandleFunc("GET /api/duplicates/archived", h.handleListArchived)
	mux.HandleFunc("GET /api/duplicates/canonical/{id}", h.handleCanonical)
}

// handleListGroups handles GET /api/duplicates?include_resolved=bool
func (h *DuplicateHandler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	includeResolved, ok := parseIncludeResolved(w, r)
	if !ok {
		return
	}

	groups, err := h.duplicates.FetchDuplicateGroups(r.Context(), includeResolved)
	if err != nil {
		log.Printf("DuplicateHandler: failed to fetch duplicate groups: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to detect duplicates")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.ReviewGroupsToResponse(groups))
}

// handleRefresh handles POST /api/duplicates/refresh, bypassing the run cache
func (h *DuplicateHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	includeResolved, ok := parseIncludeResolved(w, r)
	if !ok {
		return
	}

	groups, err := h.duplicates.Refresh(r.Context(), includeResolved)
	if err != nil {
		log.Printf("DuplicateHandler: refresh failed: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to detect duplicates")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.ReviewGroupsToResponse(groups))
}

// handleResolve handles POST /api/duplicates/resolve. A failure after some
// archives committed is reported as 409 with the partial counts.
func (h *DuplicateHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req api.ResolveGroupRequest
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.resolutions.ResolveGroup(r.Context(), req.ToGroupResolution(), reviewerFromRequest(r))
	api.RespondResolveResult(w, result, err)
}

// handleDismiss handles POST /api/duplicates/dismiss
func (h *DuplicateHandler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	var req api.DismissGroupRequest
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}

	record, err := h.duplicates.DismissGroup(r.Context(), req.MemberIDs, req.DetectionMethod, req.Notes, reviewerFromRequest(r))
	if err != nil {
		if duplicates.IsValidationError(err) {
			api.RespondErrorWithCode(w, http.StatusUnprocessableEntity, api.CodeInvalidDismissal, err.Error())
			return
		}
		log.Printf("DuplicateHandler: dismissal failed: %v", err)
		api.RespondJSON(w, http.StatusInternalServerError, api.DismissGroupResponse{Error: "Failed to dismiss group"})
		return
	}
	api.RespondJSON(w, http.StatusOK, api.DismissGroupResponse{Success: true, Dismissal: record})
}

// handleListDismissed handles GET /api/duplicates/dismissed
func (h *DuplicateHandler) handleListDismissed(w http.ResponseWriter, r *http.Request) {
	records, err := h.dismissals.List(r.Context())
	if err != nil {
		log.Printf("DuplicateHandler: failed to list dismissals: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list dismissals")
		return
	}
	if records == nil {
		records = []database.DismissedGroup{}
	}
	api.RespondJSON(w, http.StatusOK, records)
}

// handleListArchived handles GET /api/duplicates/archived?page&per_page
func (h *DuplicateHandler) handleListArchived(w http.ResponseWriter, r *http.Request) {
	p, err := api.ParsePageRequest(r)
	if err != nil {
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeInvalidQuery, err.Error())
		return
	}

	archived, total, err := h.catalog.ListArchived(r.Context(), p.Offset(), p.PerPage)
	if err != nil {
		log.Printf("DuplicateHandler: failed to list archived lessons: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list archived lessons")
		return
	}
	if archived == nil {
		archived = []database.ArchivedLesson{}
	}
	api.RespondJSON(w, http.StatusOK, api.NewPaginatedResponse(archived, p, total))
}

// handleCanonical handles GET /api/duplicates/canonical/{id}
func (h *DuplicateHandler) handleCanonical(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	chain, canonicalID, err := h.catalog.CanonicalChain(r.Context(), id)
	if errors.Is(err, services.ErrLessonNotFound) {
		api.RespondError(w, http.StatusNotFound, "Lesson not found")
		return
	}
	if err != nil {
		log.Printf("DuplicateHandler: failed to resolve canonical for %s: %v", id, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to resolve canonical lesson")
		return
	}
	if chain == nil {
		chain = []database.CanonicalMapping{}
	}
	api.RespondJSON(w, http.StatusOK, api.CanonicalResponse{
		LessonID:    id,
		CanonicalID: canonicalID,
		Chain:       chain,
	})
}

func parseIncludeResolved(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := r.URL.Query().Get("include_resolved")
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeInvalidQuery, "include_resolved must be a boolean")
		return false, false
	}
	return v, true
}
