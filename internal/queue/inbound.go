// Package queue wraps the durable Redis-backed task queues. One queue
// carries inbound media jobs into the extraction workers; a second,
// independently sized queue carries replies out to the send transport so
// slow or failing sends never block extraction.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"finbot/internal/models"
	"finbot/pkg/config"
)

const (
	QueueInbound  = "inbound"
	QueueOutbound = "outbound"

	TypeInboundMedia  = "inbound:media"
	TypeOutboundReply = "outbound:reply"
)

// InboundClient enqueues media jobs. Enqueue is non-blocking and durable:
// once acknowledged, the job survives a worker crash.
type InboundClient struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
	logger   *zap.Logger
}

func NewInboundClient(client *asynq.Client, cfg *config.QueueConfig, logger *zap.Logger) *InboundClient {
	return &InboundClient{
		client:   client,
		maxRetry: cfg.MaxRetry,
		timeout:  cfg.TaskTimeout,
		logger:   logger,
	}
}

func (c *InboundClient) Enqueue(ctx context.Context, job *models.InboundJob) error {
	if err := job.Validate(); err != nil {
		return err
	}

	payload, err := job.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	task := asynq.NewTask(TypeInboundMedia, payload)
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueInbound),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(c.timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue inbound job: %w", err)
	}

	c.logger.Info("Inbound job enqueued",
		zap.String("job_id", job.JobID),
		zap.String("kind", string(job.Kind)),
		zap.String("task_id", info.ID),
	)
	return nil
}
