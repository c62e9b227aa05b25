package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"finbot/pkg/config"
)

// Transcriber sends voice notes to an OpenAI-compatible transcription
// endpoint and returns the transcript text.
type Transcriber struct {
	config     *config.TranscriberConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewTranscriber(cfg *config.TranscriberConfig, logger *zap.Logger) *Transcriber {
	return &Transcriber{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func (t *Transcriber) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("model", t.config.Model); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}

	filename := "voice" + extensionForMime(mimeType)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.config.URL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if t.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.config.APIKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcription failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var transcription struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&transcription); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}

	t.logger.Debug("Audio transcribed",
		zap.String("mime_type", mimeType),
		zap.Int("transcript_length", len(transcription.Text)),
	)
	return transcription.Text, nil
}

func extensionForMime(mimeType string) string {
	switch mimeType {
	case "audio/ogg", "audio/ogg; codecs=opus":
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mp4", "audio/m4a":
		return ".m4a"
	default:
		return ".ogg"
	}
}
