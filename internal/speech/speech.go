// Package speech converts between audio and text using the OpenAI audio
// endpoints.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/config"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/httpkit"
)

// maxAudioBytes bounds a synthesized reply.
const maxAudioBytes = 16 << 20

// Client transcribes recordings and synthesizes replies.
type Client struct {
	baseURL         string
	apiKey          string
	transcribeModel string
	speechModel     string
	voice           string
	httpClient      *http.Client
	logger          *slog.Logger
}

// New creates a speech client from the OpenAI settings.
func New(cfg config.OpenAIConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:          cfg.APIKey,
		transcribeModel: cfg.TranscribeModel,
		speechModel:     cfg.SpeechModel,
		voice:           cfg.Voice,
		httpClient:      httpkit.NewClient(httpkit.WithTimeout(90*time.Second), httpkit.WithLogger(logger)),
		logger:          logger,
	}
}

// Transcribe converts a recording to text. filename carries the audio
// format to the service (e.g. "question.wav").
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("model", c.transcribeModel); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(part, audio)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var out struct {
		Text string `json:"text"`
	}
	if err := httpkit.DoJSON(c.httpClient, req, &out); err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	c.logger.Debug("transcribed audio", "file", filename, "bytes", n, "chars", len(out.Text))
	return out.Text, nil
}

// Synthesize renders text as MP3 audio.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	req, err := httpkit.NewJSONRequest(ctx, http.MethodPost, c.baseURL+"/audio/speech", map[string]string{
		"model": c.speechModel,
		"voice": c.voice,
		"input": text,
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesize: %w", &httpkit.StatusError{
			StatusCode: resp.StatusCode,
			Body:       httpkit.ReadErrorBody(resp.Body, 512),
		})
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}

	c.logger.Debug("synthesized speech", "chars", len(text), "bytes", len(audio))
	return audio, nil
}
