package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/twofa-auth-service/internal/api/dto"
	"github.com/spec-kit/twofa-auth-service/internal/auth"
	"github.com/spec-kit/twofa-auth-service/internal/domain"
	"github.com/spec-kit/twofa-auth-service/internal/service"
	apperrors "github.com/spec-kit/twofa-auth-service/pkg/util"
)

// AuthHandler exposes login and second-factor endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /login. Users with a second factor and no code get a
// challenge instead of a token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	outcome, err := h.login(c)
	if err != nil {
		return err
	}

	switch outcome.Status {
	case domain.LoginAuthenticated:
		return c.JSON(dto.NewAuthResponse(outcome.Token))
	case domain.LoginSecondFactorRequired:
		return c.JSON(dto.SecondFactorChallenge{RequiresTwoFactor: true, UserID: outcome.UserID})
	default:
		return rejection(outcome)
	}
}

// LoginTwoFactor handles POST /login/2fa, where a code is mandatory for users with
// a second factor.
func (h *AuthHandler) LoginTwoFactor(c *fiber.Ctx) error {
	outcome, err := h.login(c)
	if err != nil {
		return err
	}

	switch outcome.Status {
	case domain.LoginAuthenticated:
		return c.JSON(dto.NewAuthResponse(outcome.Token))
	case domain.LoginSecondFactorRequired:
		return apperrors.NewOTPRequired()
	default:
		return rejection(outcome)
	}
}

// EnableSecondFactor handles POST /enable-2fa/:id.
func (h *AuthHandler) EnableSecondFactor(c *fiber.Ctx) error {
	_, uri, err := h.auth.EnableSecondFactor(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.EnableSecondFactorResponse{Success: true, ProvisioningURI: uri})
}

// ProvisioningURI handles GET /provisioning-uri/:id.
func (h *AuthHandler) ProvisioningURI(c *fiber.Ctx) error {
	uri, err := h.auth.ProvisioningURI(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.ProvisioningURIResponse{URI: uri})
}

// Me handles GET /me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(dto.NewUserResponse(principal.User))
}

func (h *AuthHandler) login(c *fiber.Ctx) (domain.LoginOutcome, error) {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.LoginOutcome{}, apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" || req.Password == "" {
		return domain.LoginOutcome{}, apperrors.NewValidationError("username and password required", nil)
	}
	return h.auth.Login(c.UserContext(), req.Username, req.Password, req.OTPCode)
}

func rejection(outcome domain.LoginOutcome) error {
	if outcome.Reason == domain.RejectInvalidOTP {
		return apperrors.NewInvalidOTP()
	}
	return apperrors.NewInvalidCredentials()
}
