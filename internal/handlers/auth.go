package handlers

import (
	"log"
	"net/http"

	"github.com/lessonbank/dedup/internal/api"
	"github.com/lessonbank/dedup/internal/middleware"
	"github.com/lessonbank/dedup/internal/utils"
)

// anonymousReviewer is recorded as the actor when authentication is off
const anonymousReviewer = "anonymous"

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	jwtAuth *middleware.JWTAuthMiddleware
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(jwtAuth *middleware.JWTAuthMiddleware) *AuthHandler {
	return &AuthHandler{
		jwtAuth: jwtAuth,
	}
}

// SetupRoutes sets up authentication routes
func (h *AuthHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/verify", h.handleVerify)
}

// handleLogin handles POST /auth/login
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if h.jwtAuth == nil || !h.jwtAuth.IsEnabled() {
		api.RespondErrorWithCode(w, http.StatusNotFound, api.CodeAuthDisabled, "Authentication is disabled")
		return
	}

	var req api.LoginRequest
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}

	username := utils.EscapeForLogging(req.Username, 100)
	if !h.jwtAuth.ValidateCredentials(req.Username, req.Password) {
		log.Printf("AuthHandler: Failed login attempt for user '%s' from %s", username, r.RemoteAddr)
		api.RespondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.jwtAuth.GenerateToken(req.Username)
	if err != nil {
		log.Printf("AuthHandler: Failed to generate token for user '%s': %v", username, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	log.Printf("AuthHandler: User '%s' logged in from %s", username, r.RemoteAddr)

	api.RespondJSON(w, http.StatusOK, api.LoginResponse{
		Token:     token,
		Username:  req.Username,
		ExpiresIn: int(h.jwtAuth.TokenTTL().Seconds()),
	})
}

// handleVerify handles GET /auth/verify - verifies if the current token is valid
func (h *AuthHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if h.jwtAuth == nil || !h.jwtAuth.IsEnabled() {
		api.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"valid":        true,
			"username":     anonymousReviewer,
			"auth_enabled": false,
		})
		return
	}

	user := middleware.GetUserFromContext(r.Context())
	if user == "" {
		api.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":        true,
		"username":     user,
		"auth_enabled": true,
	})
}

// reviewerFromRequest returns who resolutions and dismissals are attributed to
func reviewerFromRequest(r *http.Request) string {
	if user := middleware.GetUserFromContext(r.Context()); user != "" {
		return user
	}
	return anonymousReviewer
}
