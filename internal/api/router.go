package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"finbot/internal/api/handlers"
)

// HealthChecker reports reachability of a backing service.
type HealthChecker func(ctx context.Context) error

func SetupRouter(
	webhookHandler *handlers.WebhookHandler,
	reviewHandler *handlers.ReviewHandler,
	webhookToken string,
	redisCheck HealthChecker,
	dbCheck HealthChecker,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if err := redisCheck(ctx); err != nil {
			appLogger.Warn("Redis health check failed", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "redis unavailable"})
		}
		if err := dbCheck(ctx); err != nil {
			appLogger.Warn("Database health check failed", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "database unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	webhook := app.Group("/webhook", sharedSecretMiddleware(webhookToken, appLogger))
	webhook.Post("/message", webhookHandler.HandleMessage)

	transactions := app.Group("/transactions", sharedSecretMiddleware(webhookToken, appLogger))
	transactions.Get("/pending-review", reviewHandler.ListPending)

	return app
}

// sharedSecretMiddleware authenticates the gateway with a static token.
func sharedSecretMiddleware(token string, appLogger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}
		if c.Get("X-Webhook-Token") != token {
			appLogger.Warn("Webhook request with bad token", zap.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}
		return c.Next()
	}
}
