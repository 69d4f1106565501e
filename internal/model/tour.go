package model

// Narration modes supported by the prompt builder.
const (
	ModeNormal      = "normal"
	ModeSavage      = "savage"
	ModeUltraSavage = "ultra_savage"
)

// TourRequest describes the tour a user wants generated.
type TourRequest struct {
	Location        string   `json:"location"`
	Interests       []string `json:"interests"`
	DurationMinutes int      `json:"duration_minutes"`
	Mode            string   `json:"mode"`
	VisitorInfo     string   `json:"visitor_info"`
}

// Tour is a generated tour: the narration script, where the audio ended up,
// and what the generation cost.
type Tour struct {
	Email        string `json:"email"`
	Script       string `json:"script"`
	AudioURL     string `json:"audio_url,omitempty"`
	AudioSkipped bool   `json:"audio_skipped"`
	TokensUsed   int    `json:"tokens_used"`
	TTSCharsUsed int    `json:"tts_chars_used"`
}
