package strategy

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"finbot/internal/models"
)

// stubExtractor records what the strategy hands to the model and returns a
// canned response. Shared by the CSV, XLSX, image and audio tests.
type stubExtractor struct {
	gotText    string
	gotCaption string
	resp       *models.RawAIResponse
	err        error
}

func (e *stubExtractor) ExtractFromText(_ context.Context, text, caption string) (*models.RawAIResponse, error) {
	e.gotText = text
	e.gotCaption = caption
	return e.resp, e.err
}

func TestCsvExtractCommaDelimited(t *testing.T) {
	extractor := &stubExtractor{resp: &models.RawAIResponse{}}
	strat := NewCsvStrategy(extractor, zap.NewNop())

	data := "data,descricao,valor\n2026-08-01,mercado,-120.50\n"
	result, err := strat.Extract(context.Background(), InboundItem{
		Data:    []byte(data),
		Caption: "extrato de agosto",
	})

	require.NoError(t, err)
	assert.Equal(t, KindDataExtraction, result.Kind)
	assert.Contains(t, extractor.gotText, "data | descricao | valor")
	assert.Contains(t, extractor.gotText, "2026-08-01 | mercado | -120.50")
	assert.Equal(t, "extrato de agosto", extractor.gotCaption)
}

func TestCsvExtractSemicolonDelimited(t *testing.T) {
	extractor := &stubExtractor{resp: &models.RawAIResponse{}}
	strat := NewCsvStrategy(extractor, zap.NewNop())

	data := "data;descricao;valor\n2026-08-01;padaria, do bairro;-8.50\n"
	result, err := strat.Extract(context.Background(), InboundItem{Data: []byte(data)})

	require.NoError(t, err)
	assert.Equal(t, KindDataExtraction, result.Kind)
	// The comma inside the field survives because the delimiter is ';'.
	assert.Contains(t, extractor.gotText, "padaria, do bairro")
}

func TestCsvExtractEmptyFileIsRecoverable(t *testing.T) {
	strat := NewCsvStrategy(&stubExtractor{}, zap.NewNop())

	result, err := strat.Extract(context.Background(), InboundItem{Data: []byte("")})

	require.NoError(t, err)
	assert.Equal(t, KindSystemError, result.Kind)
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ',', detectDelimiter("a,b,c\nd;e"))
	assert.Equal(t, ';', detectDelimiter("a;b;c"))
	assert.Equal(t, ',', detectDelimiter("sem delimitador"))
}

func TestTabulateCapsRows(t *testing.T) {
	rows := make([][]string, maxTabularRows+50)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("linha-%d", i)}
	}

	text := tabulate(rows)

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	assert.Len(t, lines, maxTabularRows+1)
	assert.Contains(t, lines[maxTabularRows], "50 linhas omitidas")
	assert.NotContains(t, text, fmt.Sprintf("linha-%d", maxTabularRows))
}
