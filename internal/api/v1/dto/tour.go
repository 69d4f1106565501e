package dto

// TourCreateDTO is the body of POST /tours.
type TourCreateDTO struct {
	Location        string   `json:"location" validate:"required"`
	Interests       []string `json:"interests"`
	DurationMinutes int      `json:"duration_minutes" validate:"omitempty,gte=2,lte=60"`
	Mode            string   `json:"mode" validate:"omitempty,oneof=normal savage ultra_savage"`
	VisitorInfo     string   `json:"visitor_info"`
}

// TourResponseDTO is the generated tour.
type TourResponseDTO struct {
	Script       string `json:"script"`
	AudioURL     string `json:"audio_url,omitempty"`
	AudioSkipped bool   `json:"audio_skipped"`
	TokensUsed   int    `json:"tokens_used"`
	TTSCharsUsed int    `json:"tts_chars_used"`
}

// QuotaExceededDTO is returned with 429 when a pre-flight check denies the
// generation, so the client can show the caller where they stand.
type QuotaExceededDTO struct {
	Message string         `json:"message"`
	Usage   UsageStatusDTO `json:"usage"`
}
