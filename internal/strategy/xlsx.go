package strategy

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// XlsxStrategy renders the first sheet of a workbook as a plain-text table
// and lets the model structure it.
type XlsxStrategy struct {
	extractor Extractor
	logger    *zap.Logger
}

func NewXlsxStrategy(extractor Extractor, logger *zap.Logger) *XlsxStrategy {
	return &XlsxStrategy{
		extractor: extractor,
		logger:    logger,
	}
}

func (s *XlsxStrategy) Extract(ctx context.Context, item InboundItem) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(item.Data))
	if err != nil {
		return SystemError("Não consegui abrir esta planilha. O arquivo pode estar corrompido."), nil
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return SystemError("A planilha está vazia."), nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return SystemError("Não consegui ler a planilha. Verifique o formato."), nil
	}
	if len(rows) == 0 {
		return SystemError("A planilha está vazia."), nil
	}

	text := tabulate(rows)
	s.logger.Debug("Spreadsheet rendered for analysis",
		zap.String("filename", item.Filename),
		zap.String("sheet", sheets[0]),
		zap.Int("rows", len(rows)),
	)

	resp, err := s.extractor.ExtractFromText(ctx, text, item.Caption)
	if err != nil {
		return nil, fmt.Errorf("spreadsheet analysis failed: %w", err)
	}

	return Extraction(resp), nil
}
