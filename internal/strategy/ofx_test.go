package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"finbot/internal/models"
)

const sampleOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20260815120000[0:GMT]
<LANGUAGE>POR
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>BRL
<BANKACCTFROM>
<BANKID>0260
<ACCTID>12345-6
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20260801120000[0:GMT]
<DTEND>20260815120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260803120000[0:GMT]
<TRNAMT>-120.50
<FITID>tx-001
<NAME>SUPERMERCADO PAGUE MENOS
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20260805120000[0:GMT]
<TRNAMT>2500.00
<FITID>tx-002
<NAME>SALARIO ACME LTDA
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>2379.50
<DTASOF>20260815120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

func TestOfxExtractParsesStatement(t *testing.T) {
	strat := NewOfxStrategy(zap.NewNop())

	result, err := strat.Extract(context.Background(), InboundItem{
		Data:     []byte(sampleOFX),
		Filename: "extrato.ofx",
	})

	require.NoError(t, err)
	require.Equal(t, KindDataExtraction, result.Kind)
	resp := result.Extraction
	require.Len(t, resp.Transacoes, 2)

	debit := resp.Transacoes[0]
	assert.Equal(t, "SUPERMERCADO PAGUE MENOS", debit.Descricao)
	assert.Equal(t, 120.50, *debit.Valor)
	assert.Equal(t, models.TypeExpense, debit.Tipo)
	assert.Equal(t, "2026-08-03", debit.Data)

	credit := resp.Transacoes[1]
	assert.Equal(t, 2500.00, *credit.Valor)
	assert.Equal(t, models.TypeIncome, credit.Tipo)

	// Deterministic parse: confirmed without review.
	require.NotNil(t, resp.ConfidenceScore)
	assert.Equal(t, 1.0, *resp.ConfidenceScore)
}

func TestOfxExtractToleratesSloppyFormatting(t *testing.T) {
	// Leading blank lines appear in real bank exports and break strict
	// parsers that expect the header on line one.
	sloppy := "\r\n  \r\n" + sampleOFX

	strat := NewOfxStrategy(zap.NewNop())
	result, err := strat.Extract(context.Background(), InboundItem{Data: []byte(sloppy)})

	require.NoError(t, err)
	require.Equal(t, KindDataExtraction, result.Kind)
	assert.Len(t, result.Extraction.Transacoes, 2)
}

func TestOfxExtractCorruptFileIsRecoverable(t *testing.T) {
	strat := NewOfxStrategy(zap.NewNop())

	result, err := strat.Extract(context.Background(), InboundItem{Data: []byte("isto não é OFX")})

	require.NoError(t, err)
	assert.Equal(t, KindSystemError, result.Kind)
	assert.Contains(t, result.Message, "OFX")
}

func TestPreprocessOFX(t *testing.T) {
	assert.Equal(t, "<OFX>", preprocessOFX("\n\r\n  <OFX>"))
	assert.Equal(t, "<SEVERITY>ERROR</SEVERITY>", preprocessOFX("<SEVERITY>Error</SEVERITY>"))
	assert.Equal(t, "<BANKTRANLIST>", preprocessOFX("<BANKTRANLIST"))
}
