package strategy

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var supportedImageMimes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// ImageStrategy extracts transactions from photos of receipts, invoices
// and banking-app screenshots via the vision model.
type ImageStrategy struct {
	vision    VisionExtractor
	extractor Extractor
	logger    *zap.Logger
}

func NewImageStrategy(vision VisionExtractor, extractor Extractor, logger *zap.Logger) *ImageStrategy {
	return &ImageStrategy{
		vision:    vision,
		extractor: extractor,
		logger:    logger,
	}
}

func (s *ImageStrategy) Extract(ctx context.Context, item InboundItem) (*Result, error) {
	if !supportedImageMimes[strings.ToLower(item.MimeType)] {
		return SystemError(fmt.Sprintf("Formato de imagem não suportado: %s", item.MimeType)), nil
	}

	text, err := s.vision.ExtractTextFromImage(ctx, item.Data, item.Filename)
	if err != nil {
		return nil, fmt.Errorf("vision extraction failed: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return SystemError("Não consegui ler nenhum texto nesta imagem."), nil
	}

	s.logger.Debug("Image text extracted",
		zap.String("filename", item.Filename),
		zap.Int("text_length", len(text)),
	)

	resp, err := s.extractor.ExtractFromText(ctx, text, item.Caption)
	if err != nil {
		return nil, fmt.Errorf("image analysis failed: %w", err)
	}

	return Extraction(resp), nil
}
