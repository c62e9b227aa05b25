package repository

import (
	"context"
	"encoding/json"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"finbot/internal/models"
)

var transactionColumns = []string{
	"id", "user_id", "descricao", "valor", "valor_convertido",
	"moeda_original", "taxa_cambio", "categoria", "tipo", "data",
	"status", "is_validated", "is_human_corrected", "embedding",
	"created_at", "updated_at",
}

type TransactionRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTransactionRepository(db *pgxpool.Pool, logger *zap.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts one gated batch in a single statement.
func (r *TransactionRepository) CreateBatch(ctx context.Context, batch []*models.CanonicalTransaction) error {
	if len(batch) == 0 {
		return nil
	}

	builder := squirrel.Insert("transactions").
		Columns(transactionColumns...).
		PlaceholderFormat(squirrel.Dollar)

	for _, tx := range batch {
		builder = builder.Values(
			tx.ID, tx.UserID, tx.Descricao, tx.Valor, tx.ValorConvertido,
			tx.MoedaOriginal, tx.TaxaCambio, tx.Categoria, tx.Tipo, tx.Data,
			tx.Status, tx.IsValidated, tx.IsHumanCorrected, encodeEmbedding(tx.Embedding),
			tx.CreatedAt, tx.UpdatedAt,
		)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return err
	}

	r.logger.Debug("Transaction batch stored", zap.Int("count", len(batch)))
	return nil
}

// ListPendingReview returns a user's transactions awaiting human review.
func (r *TransactionRepository) ListPendingReview(ctx context.Context, userID string, limit int) ([]*models.CanonicalTransaction, error) {
	query := squirrel.Select(transactionColumns...).
		From("transactions").
		Where(squirrel.Eq{"user_id": userID, "status": models.StatusPendingReview}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*models.CanonicalTransaction
	for rows.Next() {
		var tx models.CanonicalTransaction
		var embedding []byte
		if err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.Descricao, &tx.Valor, &tx.ValorConvertido,
			&tx.MoedaOriginal, &tx.TaxaCambio, &tx.Categoria, &tx.Tipo, &tx.Data,
			&tx.Status, &tx.IsValidated, &tx.IsHumanCorrected, &embedding,
			&tx.CreatedAt, &tx.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if len(embedding) > 0 {
			_ = json.Unmarshal(embedding, &tx.Embedding)
		}
		transactions = append(transactions, &tx)
	}

	return transactions, rows.Err()
}

// encodeEmbedding stores the vector as jsonb; a missing embedding is NULL.
func encodeEmbedding(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return nil
	}
	return data
}
