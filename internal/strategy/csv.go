package strategy

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// maxTabularRows caps how much of a spreadsheet is handed to the model.
const maxTabularRows = 200

// CsvStrategy renders a CSV bank export as a plain-text table and lets the
// model structure it.
type CsvStrategy struct {
	extractor Extractor
	logger    *zap.Logger
}

func NewCsvStrategy(extractor Extractor, logger *zap.Logger) *CsvStrategy {
	return &CsvStrategy{
		extractor: extractor,
		logger:    logger,
	}
}

func (s *CsvStrategy) Extract(ctx context.Context, item InboundItem) (*Result, error) {
	reader := csv.NewReader(strings.NewReader(string(item.Data)))
	reader.Comma = detectDelimiter(string(item.Data))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return SystemError("Não consegui ler este arquivo CSV. Verifique o formato."), nil
	}
	if len(rows) == 0 {
		return SystemError("O arquivo CSV está vazio."), nil
	}

	text := tabulate(rows)
	s.logger.Debug("CSV rendered for analysis",
		zap.String("filename", item.Filename),
		zap.Int("rows", len(rows)),
	)

	resp, err := s.extractor.ExtractFromText(ctx, text, item.Caption)
	if err != nil {
		return nil, fmt.Errorf("CSV analysis failed: %w", err)
	}

	return Extraction(resp), nil
}

// detectDelimiter picks between comma and semicolon based on the first
// line; Brazilian bank exports commonly use semicolons.
func detectDelimiter(content string) rune {
	firstLine := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		firstLine = content[:idx]
	}
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		return ';'
	}
	return ','
}

// tabulate renders rows as pipe-separated lines, capped at maxTabularRows.
func tabulate(rows [][]string) string {
	var b strings.Builder
	for i, row := range rows {
		if i >= maxTabularRows {
			fmt.Fprintf(&b, "... (%d linhas omitidas)\n", len(rows)-maxTabularRows)
			break
		}
		b.WriteString(strings.Join(row, " | "))
		b.WriteString("\n")
	}
	return b.String()
}
