package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"audiotour/internal/api/v1/dto"
	"audiotour/internal/middleware"
	"audiotour/internal/model"
	"audiotour/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AdminHandler backs the administration panel: whitelist management, usage
// overview, limit overrides, and usage resets.
type AdminHandler struct {
	whitelist service.WhitelistService
	usage     service.UsageService
	validate  *validator.Validate
	logger    zerolog.Logger
}

func NewAdminHandler(whitelist service.WhitelistService, usage service.UsageService, v *validator.Validate, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		whitelist: whitelist,
		usage:     usage,
		validate:  v,
		logger:    logger.With().Str("handler", "AdminHandler").Logger(),
	}
}

// RegisterRoutes mounts v1 admin routes.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, sessionMw func(http.Handler) http.Handler) {
	mux.Handle("/admin/users", sessionMw(http.HandlerFunc(h.handleUsers)))
	mux.Handle("/admin/users/", sessionMw(http.HandlerFunc(h.removeUser)))
	mux.Handle("/admin/pending", sessionMw(http.HandlerFunc(h.listPending)))
	mux.Handle("/admin/approve", sessionMw(http.HandlerFunc(h.approve)))
	mux.Handle("/admin/reject", sessionMw(http.HandlerFunc(h.reject)))
	mux.Handle("/admin/role", sessionMw(http.HandlerFunc(h.setRole)))
	mux.Handle("/admin/usage", sessionMw(http.HandlerFunc(h.listUsage)))
	mux.Handle("/admin/limit", sessionMw(http.HandlerFunc(h.updateLimit)))
	mux.Handle("/admin/usage/reset", sessionMw(http.HandlerFunc(h.resetUsage)))
}

// requireAdmin re-checks the admin role against the whitelist on every
// call instead of trusting the session snapshot, so a role revocation takes
// effect immediately. Fail-closed.
func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, "Session not found in context", http.StatusUnauthorized)
		return false
	}
	if !h.whitelist.IsAdmin(r.Context(), sess.UserEmail) {
		http.Error(w, "Admin role required", http.StatusForbidden)
		return false
	}
	return true
}

func (h *AdminHandler) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listUsers(w, r)
	case http.MethodPost:
		h.addUser(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	entries, err := h.whitelist.ListAll(r.Context())
	if err != nil {
		http.Error(w, "Failed to list users: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entriesToDTO(entries))
}

func (h *AdminHandler) addUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var req dto.AddUserRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if !h.whitelist.AddToWhitelist(r.Context(), req.Email, req.Role) {
		writeJSON(w, http.StatusConflict, dto.StatusResponse{Success: false, Message: "Email already exists in the whitelist."})
		return
	}
	writeJSON(w, http.StatusCreated, dto.StatusResponse{Success: true, Message: "User added."})
}

func (h *AdminHandler) removeUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}
	email := strings.TrimPrefix(r.URL.Path, "/admin/users/")
	if email == "" {
		http.Error(w, "Email path segment required", http.StatusBadRequest)
		return
	}
	if !h.whitelist.Remove(r.Context(), email) {
		writeJSON(w, http.StatusInternalServerError, dto.StatusResponse{Success: false, Message: "Failed to remove user."})
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Success: true, Message: "User removed."})
}

func (h *AdminHandler) listPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}
	entries, err := h.whitelist.ListPending(r.Context())
	if err != nil {
		http.Error(w, "Failed to list pending requests: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entriesToDTO(entries))
}

func (h *AdminHandler) approve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}
	var req dto.EmailRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if !h.whitelist.Approve(r.Context(), req.Email) {
		writeJSON(w, http.StatusNotFound, dto.StatusResponse{Success: false, Message: "No access request found for that email."})
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Success: true, Message: "User approved."})
}

func (h *AdminHandler) reject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}
	var req dto.EmailRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if !h.whitelist.Reject(r.Context(), req.Email) {
		writeJSON(w, http.StatusInternalServerError, dto.StatusResponse{Success: false, Message: "Failed to reject request."})
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Success: true, Message: "Request rejected."})
}

func (h *AdminHandler) setRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}
	var req dto.SetRoleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if !h.whitelist.SetRole(r.Context(), req.Email, req.Role) {
		writeJSON(w, http.StatusNotFound, dto.StatusResponse{Success: false, Message: "No whitelist entry found for that email."})
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Success: true, Message: "Role updated."})
}

func (h *AdminHandler) listUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}
	records, err := h.usage.GetAllUsage(r.Context())
	if err != nil {
		http.Error(w, "Failed to list usage: "+err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]dto.UsageRecordDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, dto.UsageRecordDTO{
			Email:        rec.Email,
			Month:        rec.Month,
			TokensUsed:   rec.TokensUsed,
			TTSCharsUsed: rec.TTSCharsUsed,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) updateLimit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}
	var req dto.UpdateLimitRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if !h.usage.UpdateTokenLimit(r.Context(), req.Email, req.TokenLimit) {
		writeJSON(w, http.StatusNotFound, dto.StatusResponse{Success: false, Message: "No whitelist entry found for that email."})
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Success: true, Message: "Token limit updated."})
}

func (h *AdminHandler) resetUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}
	var req dto.EmailRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if !h.usage.ResetUsage(r.Context(), req.Email) {
		writeJSON(w, http.StatusInternalServerError, dto.StatusResponse{Success: false, Message: "Failed to reset usage."})
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Success: true, Message: "Usage reset."})
}

func (h *AdminHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func entriesToDTO(entries []model.WhitelistEntry) []dto.WhitelistEntryDTO {
	out := make([]dto.WhitelistEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.WhitelistEntryDTO{
			Email:      e.Email,
			Role:       e.Role,
			IsActive:   e.IsActive,
			TokenLimit: e.TokenLimit,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
