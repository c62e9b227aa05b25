package models

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoEmbeddedJSON indicates that a free-text reply carries no parseable
// JSON object and should be delivered to the user verbatim.
var ErrNoEmbeddedJSON = errors.New("no embedded JSON object in text")

type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

const DefaultCategory = "Other"

// RawTransactionItem is one transaction as the model reports it. Every
// field is optional: the model is untrusted and nothing here may be
// assumed present downstream of validation.
type RawTransactionItem struct {
	Descricao string          `json:"descricao,omitempty"`
	Valor     *float64        `json:"valor,omitempty"`
	Categoria string          `json:"categoria,omitempty"`
	Tipo      TransactionType `json:"tipo,omitempty"`
	Data      string          `json:"data,omitempty"`
	Moeda     string          `json:"moeda,omitempty"`
}

// RawAIResponse is the permissive schema a model may emit. Absence of every
// transaction-bearing field is valid: it is a pure conversation turn, not
// an error.
type RawAIResponse struct {
	Transacoes      []RawTransactionItem `json:"transacoes,omitempty"`
	Gastos          []RawTransactionItem `json:"gastos,omitempty"`
	Valor           *float64             `json:"valor,omitempty"`
	TotalFatura     *float64             `json:"total_fatura,omitempty"`
	Vencimento      string               `json:"vencimento,omitempty"`
	ConfidenceScore *float64             `json:"confidence_score,omitempty"`
	Pergunta        string               `json:"pergunta,omitempty"`
	Resposta        string               `json:"resposta,omitempty"`
}

// HasFinancialContent reports whether any transaction-bearing field is set.
func (r *RawAIResponse) HasFinancialContent() bool {
	if r == nil {
		return false
	}
	return len(r.Transacoes) > 0 || len(r.Gastos) > 0 || r.Valor != nil || r.TotalFatura != nil
}

// Confidence returns the model-reported score, defaulting to 0.0 when
// absent so unverified batches land in review rather than confirmed.
func (r *RawAIResponse) Confidence() float64 {
	if r == nil || r.ConfidenceScore == nil {
		return 0.0
	}
	return *r.ConfidenceScore
}

// ParseEmbedded extracts the substring between the first '{' and the last
// '}' of a model reply and decodes it as a RawAIResponse. Markdown fences
// and prose around the object are tolerated. A reply with no object, or an
// object with neither financial content nor a conversational answer, fails
// validation and the caller falls back to a plain chat reply.
func ParseEmbedded(text string) (*RawAIResponse, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, ErrNoEmbeddedJSON
	}

	var resp RawAIResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
		return nil, ErrNoEmbeddedJSON
	}
	if !resp.HasFinancialContent() && resp.Resposta == "" && resp.Pergunta == "" {
		return nil, ErrNoEmbeddedJSON
	}
	return &resp, nil
}
