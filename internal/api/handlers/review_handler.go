package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"finbot/internal/models"
)

const defaultReviewLimit = 20

// PendingReviewLister reads a user's transactions awaiting human review.
type PendingReviewLister interface {
	ListPendingReview(ctx context.Context, userID string, limit int) ([]*models.CanonicalTransaction, error)
}

type ReviewHandler struct {
	transactions PendingReviewLister
	logger       *zap.Logger
}

func NewReviewHandler(transactions PendingReviewLister, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{
		transactions: transactions,
		logger:       logger,
	}
}

// ListPending returns the low-confidence batches waiting on the user, newest
// first. The gateway surfaces them for confirmation or correction.
func (h *ReviewHandler) ListPending(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId is required",
		})
	}

	limit := defaultReviewLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a positive integer",
			})
		}
		limit = parsed
	}

	transactions, err := h.transactions.ListPendingReview(c.UserContext(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to list pending-review transactions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list transactions",
		})
	}

	items := make([]fiber.Map, 0, len(transactions))
	for _, tx := range transactions {
		items = append(items, fiber.Map{
			"id":        tx.ID.String(),
			"descricao": tx.Descricao,
			"valor":     tx.Valor,
			"moeda":     tx.MoedaOriginal,
			"categoria": tx.Categoria,
			"tipo":      tx.Tipo,
			"data":      tx.Data.Format("2006-01-02"),
		})
	}

	return c.JSON(fiber.Map{
		"transactions": items,
		"count":        len(items),
	})
}
