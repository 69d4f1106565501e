package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// TourGenerator produces narration text and speech audio. Implemented by
// openAIClient; faked in tests.
type TourGenerator interface {
	// GenerateText runs a chat completion and returns the narration along
	// with the total tokens the call consumed.
	GenerateText(ctx context.Context, systemMessage, prompt string, temperature float64) (string, int, error)
	// SynthesizeSpeech converts text to MP3 audio and returns the bytes
	// along with the character count billed (the input length).
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, int, error)
}

// OpenAIOptions carries the model settings for the OpenAI client.
type OpenAIOptions struct {
	BaseURL   string
	APIKey    string
	Model     string
	TTSModel  string
	TTSVoice  string
	MaxTokens int
}

type openAIClient struct {
	opts   OpenAIOptions
	client *http.Client
	logger zerolog.Logger
}

// NewOpenAIClient creates a TourGenerator backed by the OpenAI HTTP API.
func NewOpenAIClient(opts OpenAIOptions, logger zerolog.Logger) TourGenerator {
	return &openAIClient{
		opts: opts,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger.With().Str("service", "OpenAIClient").Logger(),
	}
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *openAIClient) GenerateText(ctx context.Context, systemMessage, prompt string, temperature float64) (string, int, error) {
	reqBody := chatCompletionRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemMessage},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   c.opts.MaxTokens,
	}
	var resp chatCompletionResponse
	if err := c.post(ctx, "/chat/completions", reqBody, &resp); err != nil {
		return "", 0, err
	}
	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, resp.Usage.TotalTokens, nil
}

type speechRequest struct {
	Model          string  `json:"model"`
	Voice          string  `json:"voice"`
	Input          string  `json:"input"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
}

func (c *openAIClient) SynthesizeSpeech(ctx context.Context, text string) ([]byte, int, error) {
	reqBody := speechRequest{
		Model:          c.opts.TTSModel,
		Voice:          c.opts.TTSVoice,
		Input:          text,
		ResponseFormat: "mp3",
		Speed:          1.0,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("marshaling speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/audio/speech", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, 0, fmt.Errorf("creating speech request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("calling speech API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, c.apiError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading speech response: %w", err)
	}
	return audio, len(text), nil
}

// post sends a JSON request and decodes the JSON response into out.
func (c *openAIClient) post(ctx context.Context, path string, body, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding OpenAI response: %w", err)
	}
	return nil
}

func (c *openAIClient) apiError(resp *http.Response) error {
	bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if readErr != nil {
		c.logger.Warn().Err(readErr).Int("status_code", resp.StatusCode).Msg("Failed to read error body from OpenAI")
		return fmt.Errorf("openai returned status %d", resp.StatusCode)
	}
	c.logger.Error().
		Int("status_code", resp.StatusCode).
		Str("error_body", string(bodyBytes)).
		Msg("OpenAI returned error")
	return fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(bodyBytes))
}
