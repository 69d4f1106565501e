package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"audiotour/internal/api/v1/dto"
	"audiotour/internal/middleware"
	"audiotour/internal/model"
	"audiotour/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type TourHandler struct {
	tourService     service.TourService
	defaultDuration int
	validate        *validator.Validate
	logger          zerolog.Logger
}

func NewTourHandler(tourService service.TourService, defaultDuration int, v *validator.Validate, logger zerolog.Logger) *TourHandler {
	return &TourHandler{
		tourService:     tourService,
		defaultDuration: defaultDuration,
		validate:        v,
		logger:          logger.With().Str("handler", "TourHandler").Logger(),
	}
}

// RegisterRoutes mounts v1 tour routes.
func (h *TourHandler) RegisterRoutes(mux *http.ServeMux, sessionMw func(http.Handler) http.Handler) {
	mux.Handle("/tours", sessionMw(http.HandlerFunc(h.createTour)))
}

func (h *TourHandler) createTour(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, "Session not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.TourCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = h.defaultDuration
	}
	if req.Mode == "" {
		req.Mode = model.ModeNormal
	}

	tour, err := h.tourService.GenerateTour(r.Context(), sess.UserEmail, model.TourRequest{
		Location:        req.Location,
		Interests:       req.Interests,
		DurationMinutes: req.DurationMinutes,
		Mode:            req.Mode,
		VisitorInfo:     req.VisitorInfo,
	})
	if err != nil {
		var quotaErr *service.TourQuotaError
		if errors.As(err, &quotaErr) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(dto.QuotaExceededDTO{
				Message: "You have reached your monthly quota.",
				Usage:   usageStatusToDTO(quotaErr.Status),
			})
			return
		}
		h.logger.Error().Err(err).Str("email", sess.UserEmail).Msg("Tour generation failed")
		http.Error(w, "Failed to generate tour: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := dto.TourResponseDTO{
		Script:       tour.Script,
		AudioURL:     tour.AudioURL,
		AudioSkipped: tour.AudioSkipped,
		TokensUsed:   tour.TokensUsed,
		TTSCharsUsed: tour.TTSCharsUsed,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}
