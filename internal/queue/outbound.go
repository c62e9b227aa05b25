package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"finbot/pkg/config"
)

// MediaPayload is an outbound file attachment.
type MediaPayload struct {
	MimeType string `json:"mimetype"`
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// ReplyPayload is one queued reply: plain text or a media object.
type ReplyPayload struct {
	ChatID string        `json:"chat_id"`
	Text   string        `json:"text,omitempty"`
	Media  *MediaPayload `json:"media,omitempty"`
}

// OutboundClient enqueues replies for the send workers.
type OutboundClient struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
	logger   *zap.Logger
}

func NewOutboundClient(client *asynq.Client, cfg *config.QueueConfig, logger *zap.Logger) *OutboundClient {
	return &OutboundClient{
		client:   client,
		maxRetry: cfg.MaxRetry,
		timeout:  cfg.TaskTimeout,
		logger:   logger,
	}
}

func (c *OutboundClient) EnqueueText(ctx context.Context, chatID, text string) error {
	return c.enqueue(ctx, &ReplyPayload{ChatID: chatID, Text: text})
}

func (c *OutboundClient) EnqueueMedia(ctx context.Context, chatID string, media *MediaPayload) error {
	return c.enqueue(ctx, &ReplyPayload{ChatID: chatID, Media: media})
}

func (c *OutboundClient) enqueue(ctx context.Context, payload *ReplyPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}

	task := asynq.NewTask(TypeOutboundReply, data)
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueOutbound),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(c.timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue reply: %w", err)
	}

	c.logger.Debug("Reply enqueued",
		zap.String("chat_id", payload.ChatID),
		zap.String("task_id", info.ID),
		zap.Bool("has_media", payload.Media != nil),
	)
	return nil
}

// Transport is the external send channel draining the outbound queue.
type Transport interface {
	SendText(ctx context.Context, chatID, text string) error
	SendMedia(ctx context.Context, chatID string, media *MediaPayload) error
}

// NewReplyHandler builds the outbound worker: it decodes a reply payload
// and pushes it through the send transport. A send failure returns an
// error so the queue retries the delivery.
func NewReplyHandler(transport Transport, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReplyPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			// Undecodable payloads can never succeed.
			return fmt.Errorf("failed to decode reply payload: %v: %w", err, asynq.SkipRetry)
		}

		var err error
		if payload.Media != nil {
			err = transport.SendMedia(ctx, payload.ChatID, payload.Media)
		} else {
			err = transport.SendText(ctx, payload.ChatID, payload.Text)
		}
		if err != nil {
			logger.Warn("Reply delivery failed",
				zap.String("chat_id", payload.ChatID),
				zap.Error(err),
			)
			return err
		}
		return nil
	}
}
