package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"production"`

	// Supabase Postgres connection (fatal when missing, see cmd/app).
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Monthly quota defaults. A per-user token_limit row overrides the
	// token default; the TTS limit is global.
	MonthlyTokenLimit   int `envconfig:"MONTHLY_TOKEN_LIMIT" default:"10000"`
	MonthlyTTSCharLimit int `envconfig:"MONTHLY_TTS_CHAR_LIMIT" default:"100000"`

	// OpenAI settings. When OPENAI_API_KEY is empty the key is fetched
	// from Secret Manager (OPENAI_SECRET_NAME in GCP_PROJECT_ID).
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel         string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	TTSModel            string `envconfig:"OPENAI_TTS_MODEL" default:"tts-1"`
	TTSVoice            string `envconfig:"OPENAI_TTS_VOICE" default:"nova"`
	MaxCompletionTokens int    `envconfig:"MAX_COMPLETION_TOKENS" default:"2000"`

	// Audio object storage (Supabase storage, S3-compatible).
	S3URL       string `envconfig:"AUDIO_S3_URL" required:"true"`
	S3Bucket    string `envconfig:"AUDIO_S3_BUCKET" default:"audio-tours"`
	S3Region    string `envconfig:"AUDIO_S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"AUDIO_S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"AUDIO_S3_SECRET_KEY" required:"true"`

	// Admin notification settings. Publishing is disabled when the
	// project ID is empty.
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	AccessRequestTopic string `envconfig:"ACCESS_REQUEST_TOPIC" default:"access-requests"`
	OpenAISecretName   string `envconfig:"OPENAI_SECRET_NAME" default:"openai-api-key"`

	// Tour defaults, mirrored in the UI.
	TourDefaultLocation string `envconfig:"TOUR_DEFAULT_LOCATION" default:"Barcelona, Spain"`
	TourDefaultDuration int    `envconfig:"TOUR_DEFAULT_DURATION" default:"5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
