// Package session holds short-lived per-user conversational state in
// Redis. Entries expire by TTL; reset/forget commands clear them
// explicitly. Writes are last-write-wins: concurrent jobs for the same
// user may race on context, which is accepted: all atomicity comes from
// Redis's own per-key guarantees, never from in-process locks.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"finbot/internal/models"
)

// ErrNotFound indicates the requested state is absent or has expired.
var ErrNotFound = errors.New("session state not found")

type Store struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewStore(rdb *redis.Client, logger *zap.Logger) *Store {
	return &Store{
		rdb:    rdb,
		logger: logger,
	}
}

func contextKey(userID string) string    { return "session:context:" + userID }
func pdfKey(userID string) string        { return "session:pdf:" + userID }
func correctionKey(userID string) string { return "session:correction:" + userID }

// GetContext returns the user's conversation turns; a missing key is an
// empty context, not an error.
func (s *Store) GetContext(ctx context.Context, userID string) ([]models.Turn, error) {
	data, err := s.rdb.Get(ctx, contextKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read context: %w", err)
	}

	var turns []models.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		// A corrupt context is dropped rather than poisoning every
		// following turn.
		s.logger.Warn("Dropping corrupt conversation context", zap.String("user_id", userID), zap.Error(err))
		return nil, nil
	}
	return turns, nil
}

// SetContext stores the turns, trimmed to the context cap, under the TTL.
func (s *Store) SetContext(ctx context.Context, userID string, turns []models.Turn, ttl time.Duration) error {
	if len(turns) > models.MaxContextTurns {
		turns = turns[len(turns)-models.MaxContextTurns:]
	}
	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}
	if err := s.rdb.Set(ctx, contextKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write context: %w", err)
	}
	return nil
}

func (s *Store) ClearContext(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, contextKey(userID)).Err()
}

// SetPdfState stores a base64 encrypted document while the user is asked
// for its password.
func (s *Store) SetPdfState(ctx context.Context, userID, base64Data string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, pdfKey(userID), base64Data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write pending PDF: %w", err)
	}
	s.logger.Info("Pending PDF stored",
		zap.String("user_id", userID),
		zap.Duration("ttl", ttl),
	)
	return nil
}

// GetPdfState returns the pending document, or ErrNotFound once the TTL
// has expired.
func (s *Store) GetPdfState(ctx context.Context, userID string) (string, error) {
	data, err := s.rdb.Get(ctx, pdfKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read pending PDF: %w", err)
	}
	return data, nil
}

func (s *Store) ClearPdfState(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, pdfKey(userID)).Err()
}

func (s *Store) SetPendingCorrection(ctx context.Context, userID, payload string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, correctionKey(userID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write pending correction: %w", err)
	}
	return nil
}

func (s *Store) GetPendingCorrection(ctx context.Context, userID string) (string, error) {
	data, err := s.rdb.Get(ctx, correctionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read pending correction: %w", err)
	}
	return data, nil
}

func (s *Store) ClearPendingCorrection(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, correctionKey(userID)).Err()
}

// ClearAll wipes every piece of session state for the user (reset/forget
// command).
func (s *Store) ClearAll(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, contextKey(userID), pdfKey(userID), correctionKey(userID)).Err()
}
