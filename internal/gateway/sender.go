// Package gateway is the client side of the conversational-channel
// gateway: the external service that actually delivers messages to users.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"finbot/internal/queue"
	"finbot/pkg/config"
)

// Sender delivers replies through the gateway's HTTP API.
type Sender struct {
	config     *config.GatewayConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewSender(cfg *config.GatewayConfig, logger *zap.Logger) *Sender {
	return &Sender{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func (s *Sender) SendText(ctx context.Context, chatID, text string) error {
	return s.post(ctx, "/send-text", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
}

func (s *Sender) SendMedia(ctx context.Context, chatID string, media *queue.MediaPayload) error {
	return s.post(ctx, "/send-media", map[string]interface{}{
		"chat_id":  chatID,
		"mimetype": media.MimeType,
		"filename": media.Filename,
		"data":     base64.StdEncoding.EncodeToString(media.Data),
	})
}

func (s *Sender) post(ctx context.Context, path string, body map[string]interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.URL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway send failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	s.logger.Debug("Reply delivered", zap.String("path", path))
	return nil
}
