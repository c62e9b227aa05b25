package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 5 * time.Minute
)

// NewRedisOpt builds the asynq connection options.
func NewRedisOpt(addr, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	}
}

// NewServer builds a worker-pool server bound to a single queue. Failed
// tasks are redelivered with exponential backoff up to the task's retry
// limit, then archived for manual inspection.
func NewServer(opt asynq.RedisClientOpt, queue string, concurrency int, logger *zap.Logger) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			delay := retryBaseDelay << uint(n)
			if delay > retryMaxDelay {
				delay = retryMaxDelay
			}
			return delay
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error("Task processing failed",
				zap.String("queue", queue),
				zap.String("type", task.Type()),
				zap.Error(err),
			)
		}),
		Logger: &zapAdapter{logger: logger.Sugar()},
	})
}

// zapAdapter satisfies asynq's logging interface with the shared zap
// logger.
type zapAdapter struct {
	logger *zap.SugaredLogger
}

func (a *zapAdapter) Debug(args ...interface{}) { a.logger.Debug(args...) }
func (a *zapAdapter) Info(args ...interface{})  { a.logger.Info(args...) }
func (a *zapAdapter) Warn(args ...interface{})  { a.logger.Warn(args...) }
func (a *zapAdapter) Error(args ...interface{}) { a.logger.Error(args...) }
func (a *zapAdapter) Fatal(args ...interface{}) { a.logger.Fatal(args...) }
