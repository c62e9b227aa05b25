package strategy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// ErrWrongPassword indicates the supplied password does not open the
// document. It is recoverable: the user is asked again.
var ErrWrongPassword = errors.New("wrong PDF password")

// PdfStrategy extracts text from PDF statements and invoices. Encrypted
// documents short-circuit into a password request; RetryWithPassword is
// the re-entry point once the user replies with one.
type PdfStrategy struct {
	extractor Extractor
	logger    *zap.Logger
}

func NewPdfStrategy(extractor Extractor, logger *zap.Logger) *PdfStrategy {
	return &PdfStrategy{
		extractor: extractor,
		logger:    logger,
	}
}

func (s *PdfStrategy) Extract(ctx context.Context, item InboundItem) (*Result, error) {
	if isEncrypted(item.Data) {
		s.logger.Info("Encrypted PDF received, requesting password",
			zap.String("filename", item.Filename),
		)
		return PdfPasswordRequest(item.Data), nil
	}
	return s.extractText(ctx, item.Data, item.Caption)
}

// RetryWithPassword decrypts a previously stored document and runs the
// normal extraction path on the plaintext bytes.
func (s *PdfStrategy) RetryWithPassword(ctx context.Context, data []byte, password string) (*Result, error) {
	decrypted, err := decryptPDF(data, password)
	if err != nil {
		if errors.Is(err, ErrWrongPassword) {
			return SystemError("Senha incorreta. Envie o documento novamente e tente outra senha."), nil
		}
		return nil, fmt.Errorf("failed to decrypt PDF: %w", err)
	}
	return s.extractText(ctx, decrypted, "")
}

func (s *PdfStrategy) extractText(ctx context.Context, data []byte, caption string) (*Result, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		// Corrupt or not actually a PDF: recoverable, no retry.
		return SystemError("Não consegui abrir este PDF. O arquivo pode estar corrompido."), nil
	}
	defer doc.Close()

	var textBuilder strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			s.logger.Warn("Failed to extract text from page",
				zap.Int("page", i+1),
				zap.Error(err),
			)
			continue
		}
		if pageText != "" {
			textBuilder.WriteString(pageText)
			textBuilder.WriteString("\n")
		}
	}

	text := strings.TrimSpace(textBuilder.String())
	if text == "" {
		return SystemError("Este PDF não contém texto legível."), nil
	}

	s.logger.Debug("PDF text extracted",
		zap.Int("pages", doc.NumPage()),
		zap.Int("text_length", len(text)),
	)

	resp, err := s.extractor.ExtractFromText(ctx, text, caption)
	if err != nil {
		return nil, fmt.Errorf("PDF analysis failed: %w", err)
	}

	return Extraction(resp), nil
}

// isEncrypted reports whether the document refuses to open without
// credentials.
func isEncrypted(data []byte) bool {
	conf := pdfmodel.NewDefaultConfiguration()
	_, err := pdfapi.ReadContext(bytes.NewReader(data), conf)
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "password")
}

func decryptPDF(data []byte, password string) ([]byte, error) {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password

	var out bytes.Buffer
	if err := pdfapi.Decrypt(bytes.NewReader(data), &out, conf); err != nil {
		return nil, ErrWrongPassword
	}
	return out.Bytes(), nil
}
