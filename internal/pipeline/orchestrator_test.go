package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"finbot/internal/ai"
	"finbot/internal/models"
	"finbot/internal/session"
	"finbot/internal/strategy"
)

type fakeSessions struct {
	contexts   map[string][]models.Turn
	pdfStates  map[string]string
	pdfTTLs    map[string]time.Duration
	pdfErr     error
	contextErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		contexts:  make(map[string][]models.Turn),
		pdfStates: make(map[string]string),
		pdfTTLs:   make(map[string]time.Duration),
	}
}

func (s *fakeSessions) GetContext(_ context.Context, userID string) ([]models.Turn, error) {
	return s.contexts[userID], s.contextErr
}

func (s *fakeSessions) SetContext(_ context.Context, userID string, turns []models.Turn, _ time.Duration) error {
	s.contexts[userID] = turns
	return s.contextErr
}

func (s *fakeSessions) SetPdfState(_ context.Context, userID, data string, ttl time.Duration) error {
	if s.pdfErr != nil {
		return s.pdfErr
	}
	s.pdfStates[userID] = data
	s.pdfTTLs[userID] = ttl
	return nil
}

func (s *fakeSessions) GetPdfState(_ context.Context, userID string) (string, error) {
	data, ok := s.pdfStates[userID]
	if !ok {
		return "", session.ErrNotFound
	}
	return data, nil
}

func (s *fakeSessions) ClearPdfState(_ context.Context, userID string) error {
	delete(s.pdfStates, userID)
	return nil
}

type fakeCreator struct {
	batches [][]*models.CanonicalTransaction
	err     error
}

func (c *fakeCreator) CreateBatch(_ context.Context, batch []*models.CanonicalTransaction) error {
	if c.err != nil {
		return c.err
	}
	c.batches = append(c.batches, batch)
	return nil
}

type fakeReplies struct {
	texts []string
	err   error
}

func (r *fakeReplies) EnqueueText(_ context.Context, _, text string) error {
	if r.err != nil {
		return r.err
	}
	r.texts = append(r.texts, text)
	return nil
}

type fakeStrategy struct {
	result *strategy.Result
	err    error
	gotten strategy.InboundItem
}

func (s *fakeStrategy) Extract(_ context.Context, item strategy.InboundItem) (*strategy.Result, error) {
	s.gotten = item
	return s.result, s.err
}

type fakeRetrier struct {
	result   *strategy.Result
	err      error
	data     []byte
	password string
}

func (r *fakeRetrier) RetryWithPassword(_ context.Context, data []byte, password string) (*strategy.Result, error) {
	r.data = data
	r.password = password
	return r.result, r.err
}

type noopConverter struct{}

func (noopConverter) Convert(context.Context, float64, string, string) (*ai.Conversion, error) {
	return nil, errors.New("unavailable")
}

type noopEmbedder struct{}

func (noopEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("unavailable")
}

type fixture struct {
	orch     *Orchestrator
	sessions *fakeSessions
	creator  *fakeCreator
	replies  *fakeReplies
	strat    *fakeStrategy
	retrier  *fakeRetrier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	f := &fixture{
		sessions: newFakeSessions(),
		creator:  &fakeCreator{},
		replies:  &fakeReplies{},
		strat:    &fakeStrategy{},
		retrier:  &fakeRetrier{},
	}
	registry := strategy.Registry{
		models.JobKindText: f.strat,
		models.JobKindPdf:  f.strat,
	}
	f.orch = NewOrchestrator(
		registry,
		f.retrier,
		f.sessions,
		f.creator,
		f.replies,
		NewGate(0.8, "BRL"),
		NewEnricher(noopConverter{}, noopEmbedder{}, "BRL", logger),
		24*time.Hour,
		5*time.Minute,
		logger,
	)
	return f
}

func taskFor(t *testing.T, job *models.InboundJob) *asynq.Task {
	t.Helper()
	payload, err := job.Encode()
	require.NoError(t, err)
	return asynq.NewTask("inbound:media", payload)
}

func textJob() *models.InboundJob {
	return &models.InboundJob{
		JobID:  "job-1",
		Kind:   models.JobKindText,
		ChatID: "chat-1",
		UserID: "user-1",
		Body:   "gastei 50 no mercado",
	}
}

func TestHandleInboundSystemErrorRepliesWithoutPersisting(t *testing.T) {
	f := newFixture(t)
	f.strat.result = strategy.SystemError("Formato de imagem não suportado.")

	err := f.orch.HandleInbound(context.Background(), taskFor(t, textJob()))

	require.NoError(t, err)
	require.Len(t, f.replies.texts, 1)
	assert.Equal(t, "⚠️ Formato de imagem não suportado.", f.replies.texts[0])
	assert.Empty(t, f.creator.batches)
}

func TestHandleInboundPasswordRequestStoresStateAndPrompts(t *testing.T) {
	f := newFixture(t)
	encrypted := []byte("%PDF-1.7 encrypted")
	f.strat.result = strategy.PdfPasswordRequest(encrypted)

	err := f.orch.HandleInbound(context.Background(), taskFor(t, textJob()))

	require.NoError(t, err)
	stored, ok := f.sessions.pdfStates["user-1"]
	require.True(t, ok)
	assert.Equal(t, base64.StdEncoding.EncodeToString(encrypted), stored)
	assert.Equal(t, 5*time.Minute, f.sessions.pdfTTLs["user-1"])
	require.Len(t, f.replies.texts, 1)
	assert.Equal(t, msgPasswordPrompt, f.replies.texts[0])
	assert.Empty(t, f.creator.batches)
}

func TestHandleInboundTextCommandWithEmbeddedJSONPersists(t *testing.T) {
	f := newFixture(t)
	f.strat.result = strategy.TextCommand(
		`Anotado! {"transacoes":[{"descricao":"mercado","valor":50.0,"categoria":"Food","tipo":"expense","data":"2026-08-01"}],"confidence_score":0.95}`,
	)

	err := f.orch.HandleInbound(context.Background(), taskFor(t, textJob()))

	require.NoError(t, err)
	require.Len(t, f.creator.batches, 1)
	require.Len(t, f.creator.batches[0], 1)
	tx := f.creator.batches[0][0]
	assert.Equal(t, "mercado", tx.Descricao)
	assert.Equal(t, models.StatusConfirmed, tx.Status)
	require.Len(t, f.replies.texts, 1)
	assert.Contains(t, f.replies.texts[0], "✅ 1 transação registrada")
	// The conversational exchange is recorded either way.
	assert.Len(t, f.sessions.contexts["user-1"], 2)
}

func TestHandleInboundTextCommandWithoutJSONRepliesVerbatim(t *testing.T) {
	f := newFixture(t)
	f.strat.result = strategy.TextCommand("Olá! Como posso ajudar com suas finanças?")

	err := f.orch.HandleInbound(context.Background(), taskFor(t, textJob()))

	require.NoError(t, err)
	require.Len(t, f.replies.texts, 1)
	assert.Equal(t, "Olá! Como posso ajudar com suas finanças?", f.replies.texts[0])
	assert.Empty(t, f.creator.batches)
	assert.Len(t, f.sessions.contexts["user-1"], 2)
}

func TestHandleInboundLowConfidenceLandsInReview(t *testing.T) {
	f := newFixture(t)
	score := 0.4
	f.strat.result = strategy.Extraction(&models.RawAIResponse{
		Transacoes:      []models.RawTransactionItem{{Descricao: "recibo borrado", Valor: f64(80)}},
		ConfidenceScore: &score,
	})

	err := f.orch.HandleInbound(context.Background(), taskFor(t, textJob()))

	require.NoError(t, err)
	require.Len(t, f.creator.batches, 1)
	assert.Equal(t, models.StatusPendingReview, f.creator.batches[0][0].Status)
	require.Len(t, f.replies.texts, 1)
	assert.Contains(t, f.replies.texts[0], "aguardam sua revisão")
}

func TestHandleInboundEmptyExtractionStillReplies(t *testing.T) {
	f := newFixture(t)
	f.strat.result = strategy.Extraction(&models.RawAIResponse{
		Pergunta: "quanto gastei este mês?",
		Resposta: "Você gastou R$ 1.200 este mês.",
	})

	err := f.orch.HandleInbound(context.Background(), taskFor(t, textJob()))

	require.NoError(t, err)
	require.Len(t, f.replies.texts, 1)
	assert.Equal(t, "Você gastou R$ 1.200 este mês.", f.replies.texts[0])
	assert.Empty(t, f.creator.batches)
}

func TestHandleInboundStrategyErrorNotifiesAndPropagates(t *testing.T) {
	f := newFixture(t)
	f.strat.err = errors.New("upstream timeout")

	err := f.orch.HandleInbound(context.Background(), taskFor(t, textJob()))

	require.Error(t, err)
	// Without queue retry metadata the attempt counts as final, so the
	// user is told before the error propagates.
	require.Len(t, f.replies.texts, 1)
	assert.Equal(t, msgGenericFailure, f.replies.texts[0])
}

func TestHandleInboundUndecodablePayloadSkipsRetry(t *testing.T) {
	f := newFixture(t)

	err := f.orch.HandleInbound(context.Background(), asynq.NewTask("inbound:media", []byte("{not json")))

	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, f.replies.texts)
}

func TestHandleInboundUnknownKindSkipsRetry(t *testing.T) {
	f := newFixture(t)
	job := textJob()
	job.Kind = models.JobKindOfx // valid kind, but not registered in this fixture

	err := f.orch.HandleInbound(context.Background(), taskFor(t, job))

	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestPasswordRetrySucceedsAndClearsState(t *testing.T) {
	f := newFixture(t)
	encrypted := []byte("%PDF-1.7 encrypted")
	f.sessions.pdfStates["user-1"] = base64.StdEncoding.EncodeToString(encrypted)
	score := 0.9
	f.retrier.result = strategy.Extraction(&models.RawAIResponse{
		Transacoes:      []models.RawTransactionItem{{Descricao: "fatura", Valor: f64(300), Data: "2026-08-10"}},
		ConfidenceScore: &score,
	})

	job := textJob()
	job.Kind = models.JobKindRetryPdfPassword
	job.Password = "s3cret"

	err := f.orch.HandleInbound(context.Background(), taskFor(t, job))

	require.NoError(t, err)
	assert.Equal(t, encrypted, f.retrier.data)
	assert.Equal(t, "s3cret", f.retrier.password)
	require.Len(t, f.creator.batches, 1)
	_, stillStored := f.sessions.pdfStates["user-1"]
	assert.False(t, stillStored)
}

func TestPasswordRetryExpiredStateIsRecoverable(t *testing.T) {
	f := newFixture(t)
	job := textJob()
	job.Kind = models.JobKindRetryPdfPassword
	job.Password = "s3cret"

	err := f.orch.HandleInbound(context.Background(), taskFor(t, job))

	require.NoError(t, err)
	require.Len(t, f.replies.texts, 1)
	assert.Equal(t, "⚠️ "+msgPasswordExpired, f.replies.texts[0])
	assert.Empty(t, f.creator.batches)
}

func TestPasswordRetryWrongPasswordKeepsState(t *testing.T) {
	f := newFixture(t)
	stored := base64.StdEncoding.EncodeToString([]byte("doc"))
	f.sessions.pdfStates["user-1"] = stored
	f.retrier.result = strategy.SystemError("Senha incorreta. Tente novamente.")

	job := textJob()
	job.Kind = models.JobKindRetryPdfPassword
	job.Password = "wrong"

	err := f.orch.HandleInbound(context.Background(), taskFor(t, job))

	require.NoError(t, err)
	assert.Equal(t, stored, f.sessions.pdfStates["user-1"])
	require.Len(t, f.replies.texts, 1)
	assert.Contains(t, f.replies.texts[0], "Senha incorreta")
}

func f64(v float64) *float64 { return &v }
