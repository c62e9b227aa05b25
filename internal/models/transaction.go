package models

import (
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	StatusConfirmed     TransactionStatus = "confirmed"
	StatusPendingReview TransactionStatus = "pending_review"
)

// CanonicalTransaction is the normalized, currency-resolved,
// confidence-gated record handed to persistence. It is immutable after
// handoff; later mutation happens only through explicit user correction.
type CanonicalTransaction struct {
	ID               uuid.UUID         `db:"id"`
	UserID           string            `db:"user_id"`
	Descricao        string            `db:"descricao"`
	Valor            float64           `db:"valor"`
	ValorConvertido  *float64          `db:"valor_convertido"`
	MoedaOriginal    string            `db:"moeda_original"`
	TaxaCambio       *float64          `db:"taxa_cambio"`
	Categoria        string            `db:"categoria"`
	Tipo             TransactionType   `db:"tipo"`
	Data             time.Time         `db:"data"`
	Status           TransactionStatus `db:"status"`
	IsValidated      bool              `db:"is_validated"`
	IsHumanCorrected bool              `db:"is_human_corrected"`
	Embedding        []float32         `db:"embedding"`
	CreatedAt        time.Time         `db:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at"`
}
