package pipeline

import (
	"time"

	"github.com/google/uuid"

	"finbot/internal/models"
)

// DefaultConfidenceThreshold gates a batch into confirmed at or above this
// score. Below it the batch awaits human review; an absent score counts as
// 0.0 and therefore review.
const DefaultConfidenceThreshold = 0.8

// Decision is the gate output: a batch status and the canonical records
// shaped for persistence. Status is all-or-nothing per batch so a single
// extraction never ends up partially confirmed.
type Decision struct {
	Status  models.TransactionStatus
	Payload []*models.CanonicalTransaction
}

// Gate assigns the persistence status from the model-reported confidence.
type Gate struct {
	threshold       float64
	defaultCurrency string
}

func NewGate(threshold float64, defaultCurrency string) *Gate {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Gate{
		threshold:       threshold,
		defaultCurrency: defaultCurrency,
	}
}

// Apply builds the persistence payload for one normalized batch.
func (g *Gate) Apply(userID string, items []models.RawTransactionItem, confidence float64) *Decision {
	status := models.StatusPendingReview
	validated := false
	if confidence >= g.threshold {
		status = models.StatusConfirmed
		validated = true
	}

	now := time.Now()
	payload := make([]*models.CanonicalTransaction, 0, len(items))
	for _, item := range items {
		date, err := time.Parse("2006-01-02", item.Data)
		if err != nil {
			date = now
		}

		moeda := item.Moeda
		if moeda == "" {
			moeda = g.defaultCurrency
		}

		payload = append(payload, &models.CanonicalTransaction{
			ID:               uuid.New(),
			UserID:           userID,
			Descricao:        item.Descricao,
			Valor:            *item.Valor,
			MoedaOriginal:    moeda,
			Categoria:        item.Categoria,
			Tipo:             item.Tipo,
			Data:             date,
			Status:           status,
			IsValidated:      validated,
			IsHumanCorrected: false,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	return &Decision{Status: status, Payload: payload}
}
