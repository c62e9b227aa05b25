package strategy

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// AudioStrategy transcribes a voice note and extracts transactions from
// the transcript.
type AudioStrategy struct {
	transcriber Transcriber
	extractor   Extractor
	logger      *zap.Logger
}

func NewAudioStrategy(transcriber Transcriber, extractor Extractor, logger *zap.Logger) *AudioStrategy {
	return &AudioStrategy{
		transcriber: transcriber,
		extractor:   extractor,
		logger:      logger,
	}
}

func (s *AudioStrategy) Extract(ctx context.Context, item InboundItem) (*Result, error) {
	transcript, err := s.transcriber.Transcribe(ctx, item.Data, item.MimeType)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return SystemError("Não consegui entender o áudio. Pode tentar de novo?"), nil
	}

	s.logger.Debug("Audio transcribed",
		zap.String("mime_type", item.MimeType),
		zap.Int("transcript_length", len(transcript)),
	)

	resp, err := s.extractor.ExtractFromText(ctx, transcript, item.Caption)
	if err != nil {
		return nil, fmt.Errorf("transcript analysis failed: %w", err)
	}

	return Extraction(resp), nil
}
