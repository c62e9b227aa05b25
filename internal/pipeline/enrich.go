package pipeline

import (
	"context"

	"go.uber.org/zap"

	"finbot/internal/ai"
	"finbot/internal/models"
)

// Converter resolves a foreign amount into the default currency.
type Converter interface {
	Convert(ctx context.Context, amount float64, from, to string) (*ai.Conversion, error)
}

// Embedder produces similarity-search vectors for descriptions.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Enricher adds converted values and embeddings to a gated batch. Currency
// conversion keeps the original value alongside the converted one; the
// original is never discarded. Embeddings are best-effort: their failure
// never blocks persistence.
type Enricher struct {
	converter       Converter
	embedder        Embedder
	defaultCurrency string
	logger          *zap.Logger
}

func NewEnricher(converter Converter, embedder Embedder, defaultCurrency string, logger *zap.Logger) *Enricher {
	return &Enricher{
		converter:       converter,
		embedder:        embedder,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// Enrich mutates the batch in place.
func (e *Enricher) Enrich(ctx context.Context, batch []*models.CanonicalTransaction) {
	for _, tx := range batch {
		if tx.MoedaOriginal == "" || tx.MoedaOriginal == e.defaultCurrency {
			continue
		}
		conversion, err := e.converter.Convert(ctx, tx.Valor, tx.MoedaOriginal, e.defaultCurrency)
		if err != nil {
			e.logger.Warn("Currency conversion failed, keeping original value only",
				zap.String("currency", tx.MoedaOriginal),
				zap.Error(err),
			)
			continue
		}
		converted := conversion.ConvertedValue
		rate := conversion.ExchangeRate
		tx.ValorConvertido = &converted
		tx.TaxaCambio = &rate
	}

	e.embed(ctx, batch)
}

func (e *Enricher) embed(ctx context.Context, batch []*models.CanonicalTransaction) {
	if len(batch) == 0 {
		return
	}
	texts := make([]string, len(batch))
	for i, tx := range batch {
		texts[i] = tx.Descricao
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		e.logger.Warn("Embedding failed, persisting without vectors", zap.Error(err))
		return
	}
	for i := range batch {
		if i < len(vectors) {
			batch[i].Embedding = vectors[i]
		}
	}
}
