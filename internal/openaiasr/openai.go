// Package openaiasr transcribes segments through an OpenAI-compatible
// /audio/transcriptions endpoint.
package openaiasr

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/wav"
)

// APIKeyEnv is consulted when the config carries no api_key.
const APIKeyEnv = "OPENAI_API_KEY"

// Transcriber uploads each segment as a 16-bit PCM WAV file.
type Transcriber struct {
	client *openai.Client
	cfg    config.OpenAIASR
}

// New builds a transcriber. It fails when no API key can be resolved.
func New(cfg config.OpenAIASR) (*Transcriber, error) {
	apiKey := ResolveAPIKey(cfg)
	if apiKey == "" {
		return nil, errors.New("openai api key is not set (engine.transcription.openai.api_key or " + APIKeyEnv + ")")
	}

	httpClient := &http.Client{}
	if cfg.TimeoutSeconds > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutSeconds * float64(time.Second))
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(1),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &Transcriber{client: &client, cfg: cfg}, nil
}

// ResolveAPIKey prefers the configured key over the environment.
func ResolveAPIKey(cfg config.OpenAIASR) string {
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv(APIKeyEnv))
}

// Transcribe sends one segment and returns the recognized text.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(t.cfg.Model),
		File:  openai.File(bytes.NewReader(wav.Encode(samples, sampleRate)), "segment.wav", "audio/wav"),
	}
	if t.cfg.Language != "" {
		params.Language = openai.String(t.cfg.Language)
	}
	if t.cfg.Prompt != "" {
		params.Prompt = openai.String(t.cfg.Prompt)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// MaxConcurrency bounds parallel uploads.
func (t *Transcriber) MaxConcurrency() int {
	return max(1, t.cfg.MaxConcurrency)
}

// Close is a no-op; the HTTP client holds no exclusive resources.
func (t *Transcriber) Close() error {
	return nil
}
