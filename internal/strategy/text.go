package strategy

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"finbot/internal/models"
)

// ContextProvider reads a user's stored conversation turns.
type ContextProvider interface {
	GetContext(ctx context.Context, userID string) ([]models.Turn, error)
}

// TextStrategy runs a free-text message as a conversational model turn.
// The model may answer in prose or embed a JSON extraction; deciding which
// happened is the orchestrator's job.
type TextStrategy struct {
	conversationalist Conversationalist
	contexts          ContextProvider
	logger            *zap.Logger
}

func NewTextStrategy(conversationalist Conversationalist, contexts ContextProvider, logger *zap.Logger) *TextStrategy {
	return &TextStrategy{
		conversationalist: conversationalist,
		contexts:          contexts,
		logger:            logger,
	}
}

func (s *TextStrategy) Extract(ctx context.Context, item InboundItem) (*Result, error) {
	message := strings.TrimSpace(item.Caption)
	if message == "" {
		message = strings.TrimSpace(string(item.Data))
	}
	if message == "" {
		return SystemError("Recebi uma mensagem vazia. Pode repetir?"), nil
	}

	turns, err := s.contexts.GetContext(ctx, item.UserID)
	if err != nil {
		// Lost context degrades the answer but should not fail the turn.
		s.logger.Warn("Failed to load conversation context", zap.Error(err))
		turns = nil
	}

	reply, err := s.conversationalist.Converse(ctx, turns, message)
	if err != nil {
		return nil, fmt.Errorf("conversation turn failed: %w", err)
	}

	return TextCommand(reply), nil
}
