package strategy

import "finbot/internal/models"

// ResultKind tags the variant of a strategy outcome.
type ResultKind string

const (
	// KindDataExtraction carries a structured model response ready for
	// normalization.
	KindDataExtraction ResultKind = "data_extraction"
	// KindTextCommand carries a full conversational turn from the model.
	KindTextCommand ResultKind = "text_command"
	// KindSystemError carries a recoverable, user-facing failure message.
	KindSystemError ResultKind = "system_error"
	// KindPdfPasswordRequest carries the still-encrypted document bytes;
	// the user must supply a password before extraction can proceed.
	KindPdfPasswordRequest ResultKind = "pdf_password_request"
)

// Result is the tagged union every strategy returns. Exactly one variant
// field is populated, selected by Kind.
type Result struct {
	Kind         ResultKind
	Extraction   *models.RawAIResponse
	Text         string
	Message      string
	EncryptedPDF []byte
}

func Extraction(resp *models.RawAIResponse) *Result {
	return &Result{Kind: KindDataExtraction, Extraction: resp}
}

func TextCommand(text string) *Result {
	return &Result{Kind: KindTextCommand, Text: text}
}

func SystemError(message string) *Result {
	return &Result{Kind: KindSystemError, Message: message}
}

func PdfPasswordRequest(encrypted []byte) *Result {
	return &Result{Kind: KindPdfPasswordRequest, EncryptedPDF: encrypted}
}
