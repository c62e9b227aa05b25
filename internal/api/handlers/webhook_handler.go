package handlers

import (
	"context"
	"encoding/base64"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"finbot/internal/models"
)

// kindReset is a control message, not a media job: it wipes the user's
// session state instead of entering the queue.
const kindReset = "reset"

// WebhookRequest is the payload the conversational gateway posts for each
// inbound item. MediaData is base64-encoded.
type WebhookRequest struct {
	ChatID    string `json:"chatId"`
	UserID    string `json:"userId"`
	Kind      string `json:"kind"`
	MediaData string `json:"mediaData,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Body      string `json:"body,omitempty"`
	Password  string `json:"password,omitempty"`
}

// JobEnqueuer accepts one inbound job for asynchronous processing.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *models.InboundJob) error
}

// SessionResetter wipes a user's session state.
type SessionResetter interface {
	ClearAll(ctx context.Context, userID string) error
}

// ReplySender queues an immediate text reply.
type ReplySender interface {
	EnqueueText(ctx context.Context, chatID, text string) error
}

type WebhookHandler struct {
	jobs     JobEnqueuer
	sessions SessionResetter
	replies  ReplySender
	logger   *zap.Logger
}

func NewWebhookHandler(jobs JobEnqueuer, sessions SessionResetter, replies ReplySender, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		jobs:     jobs,
		sessions: sessions,
		replies:  replies,
		logger:   logger,
	}
}

// HandleMessage accepts one inbound item and enqueues it. The model is
// never invoked on the request path: a 202 means the job is durably queued.
func (h *WebhookHandler) HandleMessage(c *fiber.Ctx) error {
	var req WebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.ChatID == "" || req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "chatId and userId are required",
		})
	}

	ctx := c.UserContext()

	if req.Kind == kindReset {
		if err := h.sessions.ClearAll(ctx, req.UserID); err != nil {
			h.logger.Error("Failed to reset session", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to reset session",
			})
		}
		if err := h.replies.EnqueueText(ctx, req.ChatID, "🧹 Pronto! Apaguei nosso histórico de conversa."); err != nil {
			h.logger.Warn("Failed to enqueue reset confirmation", zap.Error(err))
		}
		return c.SendStatus(fiber.StatusNoContent)
	}

	var media []byte
	if req.MediaData != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.MediaData)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "mediaData is not valid base64",
			})
		}
		media = decoded
	}

	job := &models.InboundJob{
		JobID:     uuid.New().String(),
		Kind:      models.JobKind(req.Kind),
		ChatID:    req.ChatID,
		UserID:    req.UserID,
		MediaData: media,
		MimeType:  req.MimeType,
		Filename:  req.Filename,
		Body:      req.Body,
		Password:  req.Password,
	}

	if err := h.jobs.Enqueue(ctx, job); err != nil {
		h.logger.Error("Failed to enqueue inbound job", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": job.JobID,
	})
}
