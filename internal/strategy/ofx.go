package strategy

import (
	"context"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"go.uber.org/zap"

	"finbot/internal/models"
)

// ofxConfidence marks deterministic parses: no model was involved, so the
// batch is confirmed without review.
const ofxConfidence = 1.0

// OfxStrategy parses OFX/QFX bank exports directly, without a model call.
type OfxStrategy struct {
	logger *zap.Logger
}

func NewOfxStrategy(logger *zap.Logger) *OfxStrategy {
	return &OfxStrategy{logger: logger}
}

func (s *OfxStrategy) Extract(_ context.Context, item InboundItem) (*Result, error) {
	content := preprocessOFX(string(item.Data))

	resp, err := ofxgo.ParseResponse(strings.NewReader(content))
	if err != nil {
		// Corrupt export: recoverable, no retry.
		return SystemError("Não consegui ler este arquivo OFX. Verifique se a exportação do banco está completa."), nil
	}

	var items []models.RawTransactionItem
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			for _, tx := range stmt.BankTranList.Transactions {
				items = append(items, convertOfxTransaction(tx))
			}
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			for _, tx := range stmt.BankTranList.Transactions {
				items = append(items, convertOfxTransaction(tx))
			}
		}
	}

	if len(items) == 0 {
		return SystemError("Nenhuma transação encontrada neste arquivo OFX."), nil
	}

	s.logger.Info("Parsed OFX export",
		zap.String("filename", item.Filename),
		zap.Int("transactions", len(items)),
	)

	confidence := ofxConfidence
	return Extraction(&models.RawAIResponse{
		Transacoes:      items,
		ConfidenceScore: &confidence,
	}), nil
}

func convertOfxTransaction(tx ofxgo.Transaction) models.RawTransactionItem {
	amount, _ := tx.TrnAmt.Float64()

	// OFX uses negative amounts for debits.
	tipo := models.TypeIncome
	if amount < 0 {
		tipo = models.TypeExpense
		amount = -amount
	}

	descricao := string(tx.Name)
	if tx.Payee != nil && tx.Payee.Name != "" {
		descricao = string(tx.Payee.Name)
	}
	if memo := string(tx.Memo); memo != "" && descricao == "" {
		descricao = memo
	}

	return models.RawTransactionItem{
		Descricao: descricao,
		Valor:     &amount,
		Tipo:      tipo,
		Data:      tx.DtPosted.Time.Format("2006-01-02"),
	}
}

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocessOFX fixes common formatting issues in real-world OFX files:
// leading blank lines, mixed-case SEVERITY values and SGML-style tags
// missing their closing bracket.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	content = tagFixRegex.ReplaceAllString(content, "$1>")
	return content
}
