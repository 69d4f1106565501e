package handler

import (
	"encoding/json"
	"net/http"

	"audiotour/internal/api/v1/dto"
	"audiotour/internal/middleware"
	"audiotour/internal/model"
	"audiotour/internal/service"
)

type UsageHandler struct {
	usageService service.UsageService
}

func NewUsageHandler(usageService service.UsageService) *UsageHandler {
	return &UsageHandler{usageService: usageService}
}

// RegisterRoutes mounts v1 usage routes.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux, sessionMw func(http.Handler) http.Handler) {
	mux.Handle("/usage/me", sessionMw(http.HandlerFunc(h.getMyUsage)))
}

func (h *UsageHandler) getMyUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, "Session not found in context", http.StatusUnauthorized)
		return
	}

	status := h.usageService.GetStatus(r.Context(), sess.UserEmail)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(usageStatusToDTO(status))
}

func usageStatusToDTO(s model.UsageStatus) dto.UsageStatusDTO {
	return dto.UsageStatusDTO{
		Email:             s.Email,
		Month:             s.Month,
		TokensUsed:        s.TokensUsed,
		TTSCharsUsed:      s.TTSCharsUsed,
		TokenLimit:        s.TokenLimit,
		TTSCharLimit:      s.TTSCharLimit,
		TokensRemaining:   s.TokensRemaining,
		TTSCharsRemaining: s.TTSCharsRemaining,
	}
}
