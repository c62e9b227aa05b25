package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"finbot/internal/models"
	"finbot/internal/session"
	"finbot/internal/strategy"
)

// User-visible messages are short and non-technical; internal identifiers
// and stack traces never reach a reply.
const (
	msgGenericFailure  = "❌ Não consegui processar sua mensagem. Tente novamente em instantes."
	msgPasswordPrompt  = "📄 Este PDF está protegido por senha. Responda com a senha para continuar."
	msgPasswordExpired = "⏳ O tempo para enviar a senha expirou. Envie o documento novamente."
	msgNoTransactions  = "Não encontrei nenhuma transação nessa mensagem."
	errorPrefix        = "⚠️ "
)

// SessionStore is the per-user TTL'd state the orchestrator coordinates
// through, the only shared mutable resource between workers.
type SessionStore interface {
	GetContext(ctx context.Context, userID string) ([]models.Turn, error)
	SetContext(ctx context.Context, userID string, turns []models.Turn, ttl time.Duration) error
	SetPdfState(ctx context.Context, userID, base64Data string, ttl time.Duration) error
	GetPdfState(ctx context.Context, userID string) (string, error)
	ClearPdfState(ctx context.Context, userID string) error
}

// TransactionCreator persists one gated batch.
type TransactionCreator interface {
	CreateBatch(ctx context.Context, batch []*models.CanonicalTransaction) error
}

// ReplyEnqueuer queues an outbound reply for delivery.
type ReplyEnqueuer interface {
	EnqueueText(ctx context.Context, chatID, text string) error
}

// PasswordRetrier is the PDF strategy's password entry point.
type PasswordRetrier interface {
	RetryWithPassword(ctx context.Context, data []byte, password string) (*strategy.Result, error)
}

// Orchestrator is the inbound worker's job handler: it dispatches each job
// to its strategy and drives the result through normalization, gating,
// enrichment, persistence and the reply. It is the single boundary that
// decides retry versus terminal: strategies surface expected failures as
// SystemError results, while unexpected errors propagate out of the
// handler so the queue redelivers the job.
type Orchestrator struct {
	strategies   strategy.Registry
	pdfRetry     PasswordRetrier
	sessions     SessionStore
	transactions TransactionCreator
	replies      ReplyEnqueuer
	gate         *Gate
	enricher     *Enricher
	contextTTL   time.Duration
	pdfTTL       time.Duration
	logger       *zap.Logger
}

func NewOrchestrator(
	strategies strategy.Registry,
	pdfRetry PasswordRetrier,
	sessions SessionStore,
	transactions TransactionCreator,
	replies ReplyEnqueuer,
	gate *Gate,
	enricher *Enricher,
	contextTTL time.Duration,
	pdfTTL time.Duration,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		strategies:   strategies,
		pdfRetry:     pdfRetry,
		sessions:     sessions,
		transactions: transactions,
		replies:      replies,
		gate:         gate,
		enricher:     enricher,
		contextTTL:   contextTTL,
		pdfTTL:       pdfTTL,
		logger:       logger,
	}
}

// HandleInbound processes one inbound job. Returning nil acknowledges the
// job; returning an error triggers queue-level redelivery with backoff.
// The user sees a generic failure message only on the final attempt.
func (o *Orchestrator) HandleInbound(ctx context.Context, t *asynq.Task) error {
	job, err := models.DecodeInboundJob(t.Payload())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log := o.logger.With(
		zap.String("job_id", job.JobID),
		zap.String("kind", string(job.Kind)),
		zap.String("user_id", job.UserID),
	)
	log.Info("Processing inbound job")

	result, err := o.dispatch(ctx, job)
	if err == nil {
		err = o.handleResult(ctx, job, result)
	}
	if err != nil {
		log.Error("Job failed", zap.Error(err))
		if isFinalAttempt(ctx) && !errors.Is(err, asynq.SkipRetry) {
			if replyErr := o.replies.EnqueueText(ctx, job.ChatID, msgGenericFailure); replyErr != nil {
				log.Error("Failed to enqueue failure reply", zap.Error(replyErr))
			}
		}
		return err
	}

	log.Info("Inbound job completed")
	return nil
}

// dispatch routes the job to its strategy.
func (o *Orchestrator) dispatch(ctx context.Context, job *models.InboundJob) (*strategy.Result, error) {
	if job.Kind == models.JobKindRetryPdfPassword {
		return o.retryPdfPassword(ctx, job)
	}

	strat, ok := o.strategies[job.Kind]
	if !ok {
		return nil, fmt.Errorf("no strategy registered for kind %q: %w", job.Kind, asynq.SkipRetry)
	}

	item := strategy.InboundItem{
		Data:     job.MediaData,
		MimeType: job.MimeType,
		Filename: job.Filename,
		Caption:  job.Body,
		UserID:   job.UserID,
	}
	return strat.Extract(ctx, item)
}

// retryPdfPassword re-enters the PDF flow with the stored encrypted bytes
// and the user-supplied password. An expired pending document is a
// recoverable outcome, not a failure.
func (o *Orchestrator) retryPdfPassword(ctx context.Context, job *models.InboundJob) (*strategy.Result, error) {
	stored, err := o.sessions.GetPdfState(ctx, job.UserID)
	if errors.Is(err, session.ErrNotFound) {
		return strategy.SystemError(msgPasswordExpired), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending PDF: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return nil, fmt.Errorf("corrupt pending PDF state: %v: %w", err, asynq.SkipRetry)
	}

	result, err := o.pdfRetry.RetryWithPassword(ctx, data, job.Password)
	if err != nil {
		return nil, err
	}
	if result.Kind == strategy.KindDataExtraction {
		if clearErr := o.sessions.ClearPdfState(ctx, job.UserID); clearErr != nil {
			o.logger.Warn("Failed to clear pending PDF state", zap.Error(clearErr))
		}
	}
	return result, nil
}

// handleResult is the state machine over the strategy result variant.
func (o *Orchestrator) handleResult(ctx context.Context, job *models.InboundJob, result *strategy.Result) error {
	switch result.Kind {
	case strategy.KindDataExtraction:
		return o.handleExtraction(ctx, job, result.Extraction)

	case strategy.KindTextCommand:
		return o.handleTextCommand(ctx, job, result.Text)

	case strategy.KindSystemError:
		return o.replies.EnqueueText(ctx, job.ChatID, errorPrefix+result.Message)

	case strategy.KindPdfPasswordRequest:
		encoded := base64.StdEncoding.EncodeToString(result.EncryptedPDF)
		if err := o.sessions.SetPdfState(ctx, job.UserID, encoded, o.pdfTTL); err != nil {
			return fmt.Errorf("failed to store pending PDF: %w", err)
		}
		return o.replies.EnqueueText(ctx, job.ChatID, msgPasswordPrompt)

	default:
		return fmt.Errorf("unhandled strategy result kind %q: %w", result.Kind, asynq.SkipRetry)
	}
}

// handleExtraction runs normalize → gate → enrich → persist → reply.
func (o *Orchestrator) handleExtraction(ctx context.Context, job *models.InboundJob, resp *models.RawAIResponse) error {
	items := Normalize(resp)
	if len(items) == 0 {
		// No financial content in this turn; reply conversationally if
		// the model said something, neutrally otherwise.
		reply := resp.Resposta
		if reply == "" {
			reply = msgNoTransactions
		}
		return o.replies.EnqueueText(ctx, job.ChatID, reply)
	}

	decision := o.gate.Apply(job.UserID, items, resp.Confidence())
	o.enricher.Enrich(ctx, decision.Payload)

	if err := o.transactions.CreateBatch(ctx, decision.Payload); err != nil {
		return fmt.Errorf("failed to persist transactions: %w", err)
	}

	o.logger.Info("Transactions persisted",
		zap.String("job_id", job.JobID),
		zap.Int("count", len(decision.Payload)),
		zap.String("status", string(decision.Status)),
	)

	return o.replies.EnqueueText(ctx, job.ChatID, buildSummary(decision, resp.Resposta))
}

// handleTextCommand runs a full conversational turn: persist the exchange
// to the session context, then decide whether the model's reply embeds an
// extraction or is ordinary chat.
func (o *Orchestrator) handleTextCommand(ctx context.Context, job *models.InboundJob, text string) error {
	o.appendContext(ctx, job, text)

	resp, err := models.ParseEmbedded(text)
	if err != nil {
		// Not a transaction: deliver the model's text verbatim.
		return o.replies.EnqueueText(ctx, job.ChatID, text)
	}
	return o.handleExtraction(ctx, job, resp)
}

// appendContext records the user message and assistant reply. Context loss
// degrades later turns but never fails the current one; writes are
// last-write-wins by design.
func (o *Orchestrator) appendContext(ctx context.Context, job *models.InboundJob, assistantText string) {
	turns, err := o.sessions.GetContext(ctx, job.UserID)
	if err != nil {
		o.logger.Warn("Failed to load session context", zap.Error(err))
		turns = nil
	}
	now := time.Now()
	turns = models.AppendTurn(turns, models.Turn{Role: models.RoleUser, Content: job.Body, At: now})
	turns = models.AppendTurn(turns, models.Turn{Role: models.RoleAssistant, Content: assistantText, At: now})
	if err := o.sessions.SetContext(ctx, job.UserID, turns, o.contextTTL); err != nil {
		o.logger.Warn("Failed to persist session context", zap.Error(err))
	}
}

// buildSummary renders the per-item success reply.
func buildSummary(decision *Decision, resposta string) string {
	var b strings.Builder
	if resposta != "" {
		b.WriteString(resposta)
		b.WriteString("\n\n")
	}

	if len(decision.Payload) == 1 {
		b.WriteString("✅ 1 transação registrada:\n")
	} else {
		fmt.Fprintf(&b, "✅ %d transações registradas:\n", len(decision.Payload))
	}

	for _, tx := range decision.Payload {
		descricao := tx.Descricao
		if descricao == "" {
			descricao = tx.Categoria
		}
		fmt.Fprintf(&b, "• %s: %.2f %s (%s)\n", descricao, tx.Valor, tx.MoedaOriginal, tx.Categoria)
	}

	if decision.Status == models.StatusPendingReview {
		b.WriteString("\n🔎 Confiança baixa na extração: os lançamentos aguardam sua revisão.")
	}
	return strings.TrimRight(b.String(), "\n")
}

// isFinalAttempt reports whether the queue will not redeliver this task
// again. Missing retry metadata (as in tests) counts as final.
func isFinalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}
