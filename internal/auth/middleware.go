package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/twofa-auth-service/internal/domain"
	apperrors "github.com/spec-kit/twofa-auth-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User *domain.User
}

// UserFinder loads the user named by a token subject.
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenIssuer
	users  UserFinder
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenIssuer, users UserFinder, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, users: users, logger: logger}
}

// Handle enforces authentication for protected routes. Every token failure,
// including a subject whose account no longer exists, answers the same way.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], domain.TokenTypeBearer) {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	subject, err := m.tokens.Verify(strings.TrimSpace(parts[1]), m.tokens.now())
	if err != nil {
		m.logger.Debug("bearer token rejected", zap.Error(err))
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.FindByUsername(c.UserContext(), subject)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			m.logger.Debug("bearer token subject missing", zap.String("subject", subject))
			return apperrors.NewUnauthorized("invalid token")
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, &Principal{User: user})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal.User != nil
}

// RequireSelf ensures the caller owns the account named by the :id route param.
func RequireSelf(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.User.ID != c.Params(param) {
			return apperrors.NewForbidden("cannot act on another account")
		}
		return c.Next()
	}
}
