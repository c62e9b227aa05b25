// Package pipeline wires extraction results into stored transactions:
// normalization of untrusted model output, confidence gating, currency and
// embedding enrichment, and the per-job orchestration over all of it.
package pipeline

import (
	"time"

	"finbot/internal/models"
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2006-01-02T15:04:05Z07:00",
}

// Normalize turns a raw model response into canonical transaction items.
// It never fails: unparseable or empty input yields an empty list, which
// callers treat as "no financial content in this turn", not as an error.
//
// Rules, in order: transacoes and gastos merge into one list (transacoes
// first, duplicates kept); a legacy bare valor synthesizes a single item;
// an invoice total synthesizes a "Pagamento de Fatura" item; items without
// a numeric valor are silently dropped; unparseable dates fall back to
// today.
func Normalize(resp *models.RawAIResponse) []models.RawTransactionItem {
	if resp == nil {
		return nil
	}

	merged := make([]models.RawTransactionItem, 0, len(resp.Transacoes)+len(resp.Gastos))
	merged = append(merged, resp.Transacoes...)
	merged = append(merged, resp.Gastos...)

	if len(merged) == 0 && resp.Valor != nil {
		merged = append(merged, models.RawTransactionItem{Valor: resp.Valor})
	}

	if len(merged) == 0 && resp.TotalFatura != nil {
		merged = append(merged, models.RawTransactionItem{
			Descricao: "Pagamento de Fatura",
			Valor:     resp.TotalFatura,
			Data:      resp.Vencimento,
		})
	}

	items := make([]models.RawTransactionItem, 0, len(merged))
	for _, item := range merged {
		// An item with no value carries no financial meaning.
		if item.Valor == nil {
			continue
		}
		if item.Categoria == "" {
			item.Categoria = models.DefaultCategory
		}
		if item.Tipo != models.TypeIncome {
			item.Tipo = models.TypeExpense
		}
		item.Data = resolveDate(item.Data)
		items = append(items, item)
	}

	return items
}

// resolveDate returns the item's date in ISO form, falling back to today
// for anything absent or unparseable.
func resolveDate(value string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return time.Now().Format("2006-01-02")
}
