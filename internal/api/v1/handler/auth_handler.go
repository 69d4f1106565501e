package handler

import (
	"encoding/json"
	"net/http"

	"audiotour/internal/api/v1/dto"
	"audiotour/internal/middleware"
	"audiotour/internal/service"
	"audiotour/internal/session"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type AuthHandler struct {
	authService service.AuthService
	sessions    *session.Store
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewAuthHandler(authService service.AuthService, sessions *session.Store, v *validator.Validate, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		validate:    v,
		logger:      logger.With().Str("handler", "AuthHandler").Logger(),
	}
}

// RegisterRoutes mounts v1 auth routes. Login is unauthenticated; logout
// requires a live session.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, sessionMw func(http.Handler) http.Handler) {
	mux.Handle("/auth/login", http.HandlerFunc(h.login))
	mux.Handle("/auth/logout", sessionMw(http.HandlerFunc(h.logout)))
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	sess := &session.Session{}
	result := h.authService.AttemptLogin(r.Context(), sess, req.Email)

	resp := dto.LoginResponse{
		Outcome: string(result.Outcome),
		Message: result.Message,
		IsAdmin: result.IsAdmin,
	}
	statusCode := http.StatusOK
	switch result.Outcome {
	case service.LoginAdmitted:
		resp.Token = h.sessions.Create(sess)
	case service.LoginInvalidFormat:
		statusCode = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, "Session not found in context", http.StatusUnauthorized)
		return
	}
	h.authService.Logout(sess)
	if token := middleware.TokenFromContext(r.Context()); token != "" {
		h.sessions.Delete(token)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dto.StatusResponse{Success: true, Message: "Logged out."})
}
