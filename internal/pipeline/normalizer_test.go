package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbot/internal/models"
)

func f(v float64) *float64 { return &v }

func TestNormalizeMergesTransacoesAndGastos(t *testing.T) {
	resp := &models.RawAIResponse{
		Transacoes: []models.RawTransactionItem{
			{Descricao: "mercado", Valor: f(120.50)},
			{Descricao: "uber", Valor: f(23.90)},
		},
		Gastos: []models.RawTransactionItem{
			{Descricao: "farmácia", Valor: f(45.00)},
		},
	}

	items := Normalize(resp)

	require.Len(t, items, 3)
	// Order-preserving: transacoes first, then gastos.
	assert.Equal(t, "mercado", items[0].Descricao)
	assert.Equal(t, "uber", items[1].Descricao)
	assert.Equal(t, "farmácia", items[2].Descricao)
}

func TestNormalizeKeepsDuplicates(t *testing.T) {
	item := models.RawTransactionItem{Descricao: "assinatura", Valor: f(29.90)}
	resp := &models.RawAIResponse{
		Transacoes: []models.RawTransactionItem{item},
		Gastos:     []models.RawTransactionItem{item},
	}

	items := Normalize(resp)

	assert.Len(t, items, 2)
}

func TestNormalizeLegacyValor(t *testing.T) {
	resp := &models.RawAIResponse{Valor: f(99.90)}

	items := Normalize(resp)

	require.Len(t, items, 1)
	assert.Equal(t, 99.90, *items[0].Valor)
	assert.Equal(t, models.DefaultCategory, items[0].Categoria)
	assert.Equal(t, models.TypeExpense, items[0].Tipo)
}

func TestNormalizeLegacyValorIgnoredWhenListPresent(t *testing.T) {
	resp := &models.RawAIResponse{
		Transacoes: []models.RawTransactionItem{{Descricao: "luz", Valor: f(180.00)}},
		Valor:      f(99.90),
	}

	items := Normalize(resp)

	require.Len(t, items, 1)
	assert.Equal(t, "luz", items[0].Descricao)
}

func TestNormalizeSynthesizesInvoicePayment(t *testing.T) {
	resp := &models.RawAIResponse{
		TotalFatura: f(1530.77),
		Vencimento:  "2026-09-10",
	}

	items := Normalize(resp)

	require.Len(t, items, 1)
	assert.Contains(t, items[0].Descricao, "Pagamento de Fatura")
	assert.Equal(t, 1530.77, *items[0].Valor)
	assert.Equal(t, "2026-09-10", items[0].Data)
}

func TestNormalizeDropsItemsWithoutValor(t *testing.T) {
	resp := &models.RawAIResponse{
		Transacoes: []models.RawTransactionItem{
			{Valor: f(10)},
			{Descricao: "x"},
		},
	}

	items := Normalize(resp)

	require.Len(t, items, 1)
	assert.Equal(t, 10.0, *items[0].Valor)
}

func TestNormalizeDateFallback(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"iso", "2026-08-01", "2026-08-01"},
		{"brazilian", "15/03/2026", "2026-03-15"},
		{"garbage", "amanhã", time.Now().Format("2006-01-02")},
		{"absent", "", time.Now().Format("2006-01-02")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &models.RawAIResponse{
				Transacoes: []models.RawTransactionItem{{Valor: f(1), Data: tt.data}},
			}
			items := Normalize(resp)
			require.Len(t, items, 1)
			assert.Equal(t, tt.want, items[0].Data)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	resp := &models.RawAIResponse{
		Transacoes: []models.RawTransactionItem{
			{Descricao: "mercado", Valor: f(120.50), Data: "2026-08-01"},
			{Descricao: "uber", Valor: f(23.90), Data: "02/08/2026"},
			{Descricao: "sem valor"},
		},
	}

	first := Normalize(resp)
	second := Normalize(&models.RawAIResponse{Transacoes: first})

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, *first[i].Valor, *second[i].Valor)
		assert.Equal(t, first[i].Data, second[i].Data)
		assert.Equal(t, first[i].Categoria, second[i].Categoria)
	}
}

func TestNormalizeNeverFails(t *testing.T) {
	assert.Empty(t, Normalize(nil))
	assert.Empty(t, Normalize(&models.RawAIResponse{}))
	assert.Empty(t, Normalize(&models.RawAIResponse{Pergunta: "quanto gastei?", Resposta: "R$ 100"}))
}
