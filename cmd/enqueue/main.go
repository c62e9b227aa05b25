// Command enqueue injects a single job into the inbound queue, bypassing
// the gateway webhook. Useful for exercising the pipeline locally:
//
//	enqueue -kind pdf -chat 5511999999999 -user 5511999999999 -file extrato.pdf -mime application/pdf
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"finbot/internal/models"
	"finbot/internal/queue"
	"finbot/pkg/config"
	"finbot/pkg/logger"
)

func main() {
	kind := flag.String("kind", "text", "job kind: image|audio|pdf|ofx|csv|xlsx|text")
	chatID := flag.String("chat", "", "chat id")
	userID := flag.String("user", "", "user id")
	file := flag.String("file", "", "media file to attach")
	mime := flag.String("mime", "", "mime type of the media file")
	body := flag.String("body", "", "caption or message text")
	flag.Parse()

	if *chatID == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "both -chat and -user are required")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	var media []byte
	var filename string
	if *file != "" {
		media, err = os.ReadFile(*file)
		if err != nil {
			appLogger.Fatal("Failed to read media file", zap.Error(err))
		}
		filename = filepath.Base(*file)
	}

	client := asynq.NewClient(queue.NewRedisOpt(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB))
	defer client.Close()

	inbound := queue.NewInboundClient(client, &cfg.Queue, appLogger)
	job := &models.InboundJob{
		JobID:     uuid.New().String(),
		Kind:      models.JobKind(*kind),
		ChatID:    *chatID,
		UserID:    *userID,
		MediaData: media,
		MimeType:  *mime,
		Filename:  filename,
		Body:      *body,
	}

	if err := inbound.Enqueue(context.Background(), job); err != nil {
		appLogger.Fatal("Failed to enqueue job", zap.Error(err))
	}
	fmt.Printf("enqueued job %s (%s)\n", job.JobID, job.Kind)
}
