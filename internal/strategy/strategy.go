// Package strategy holds the per-format extraction routines. Each strategy
// takes a normalized inbound item and returns a tagged Result. Expected
// failures (unsupported or corrupt input, wrong password) become
// SystemError results; unexpected infrastructure failures are returned as
// errors so the queue can redeliver the job.
package strategy

import (
	"context"

	"finbot/internal/models"
)

// InboundItem is the normalized view of one inbound media item.
type InboundItem struct {
	Data     []byte
	MimeType string
	Filename string
	Caption  string
	UserID   string
}

// Strategy is one format-specific extraction routine.
type Strategy interface {
	Extract(ctx context.Context, item InboundItem) (*Result, error)
}

// Extractor turns extracted document text into a structured model response.
type Extractor interface {
	ExtractFromText(ctx context.Context, text, caption string) (*models.RawAIResponse, error)
}

// VisionExtractor reads text out of an image.
type VisionExtractor interface {
	ExtractTextFromImage(ctx context.Context, data []byte, filename string) (string, error)
}

// Transcriber turns an audio clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Conversationalist answers a free-text message given prior context turns.
type Conversationalist interface {
	Converse(ctx context.Context, turns []models.Turn, message string) (string, error)
}

// Registry maps a job kind to its strategy. The retry kind is handled by
// the orchestrator through the PDF strategy's password entry point and has
// no registry slot.
type Registry map[models.JobKind]Strategy
