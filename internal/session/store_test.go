package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"finbot/internal/models"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, zap.NewNop()), mr
}

func TestContextRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	turns := []models.Turn{
		{Role: models.RoleUser, Content: "gastei 50 no mercado"},
		{Role: models.RoleAssistant, Content: "Anotado!"},
	}
	require.NoError(t, store.SetContext(ctx, "user-1", turns, time.Hour))

	got, err := store.GetContext(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "gastei 50 no mercado", got[0].Content)
	assert.Equal(t, models.RoleAssistant, got[1].Role)
}

func TestContextMissingKeyIsEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.GetContext(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestContextTrimsToCap(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	turns := make([]models.Turn, 0, models.MaxContextTurns+4)
	for i := 0; i < models.MaxContextTurns+4; i++ {
		turns = append(turns, models.Turn{Role: models.RoleUser, Content: "msg"})
	}
	require.NoError(t, store.SetContext(ctx, "user-1", turns, time.Hour))

	got, err := store.GetContext(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, got, models.MaxContextTurns)
}

func TestCorruptContextIsDropped(t *testing.T) {
	store, mr := newTestStore(t)

	require.NoError(t, mr.Set("session:context:user-1", "{{not json"))

	got, err := store.GetContext(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPdfStateExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetPdfState(ctx, "user-1", "ZG9j", 5*time.Minute))

	got, err := store.GetPdfState(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ZG9j", got)

	mr.FastForward(6 * time.Minute)

	_, err = store.GetPdfState(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearAllWipesEveryKey(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetContext(ctx, "user-1", []models.Turn{{Role: models.RoleUser, Content: "oi"}}, time.Hour))
	require.NoError(t, store.SetPdfState(ctx, "user-1", "ZG9j", time.Hour))
	require.NoError(t, store.SetPendingCorrection(ctx, "user-1", "tx-42", time.Hour))

	require.NoError(t, store.ClearAll(ctx, "user-1"))

	got, err := store.GetContext(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	_, err = store.GetPdfState(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetPendingCorrection(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
