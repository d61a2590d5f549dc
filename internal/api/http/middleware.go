package http

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"github.com/spec-kit/twofa-auth-service/internal/observability"
	apperrors "github.com/spec-kit/twofa-auth-service/pkg/util"
)

// MiddlewareConfig collects what the global middleware chain needs.
type MiddlewareConfig struct {
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	RequestTimeout time.Duration
	// AllowedOrigins lists browser origins allowed to call the API. Empty or "*"
	// allows any origin.
	AllowedOrigins []string
}

// RegisterMiddlewares installs the global chain, outermost first: request
// logging, error rendering, CORS and the per-request deadline.
func RegisterMiddlewares(app *fiber.App, cfg MiddlewareConfig) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	app.Use(observability.RequestLogger(cfg.Logger, cfg.Metrics))
	app.Use(renderErrors(cfg.Logger, cfg.Metrics))
	app.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	if cfg.RequestTimeout > 0 {
		app.Use(withDeadline(cfg.RequestTimeout))
	}
}

// corsConfig allows bearer-authenticated JSON calls. Tokens travel in the
// Authorization header, so credentials (cookies) are not enabled.
func corsConfig(origins []string) cors.Config {
	allowed := "*"
	if len(origins) > 0 {
		allowed = strings.Join(origins, ",")
	}
	return cors.Config{
		AllowOrigins: allowed,
		AllowMethods: strings.Join([]string{fiber.MethodGet, fiber.MethodPost, fiber.MethodOptions}, ","),
		AllowHeaders: strings.Join([]string{
			fiber.HeaderOrigin,
			fiber.HeaderContentType,
			fiber.HeaderAccept,
			fiber.HeaderAuthorization,
		}, ","),
		MaxAge: 600,
	}
}

func withDeadline(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// renderErrors turns handler errors and panics into the JSON error envelope.
func renderErrors(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
			}
			if err != nil {
				err = writeError(c, logger, metrics, err)
			}
		}()
		return c.Next()
	}
}

func writeError(c *fiber.Ctx, logger *zap.Logger, metrics *observability.Metrics, err error) error {
	de := apperrors.ToDomainError(err)
	metrics.RecordError(c.Path(), c.Method(), de.Code)

	if de.HTTPStatus >= fiber.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("code", de.Code),
			zap.Error(de),
		)
	}

	var details map[string]any
	if len(de.Details) > 0 {
		details = de.Details
	}
	return c.Status(de.HTTPStatus).JSON(errorEnvelope{Error: errorPayload{
		Code:    de.Code,
		Message: de.Message,
		Details: details,
	}})
}
