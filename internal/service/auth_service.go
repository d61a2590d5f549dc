package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/twofa-auth-service/internal/auth"
	"github.com/spec-kit/twofa-auth-service/internal/config"
	"github.com/spec-kit/twofa-auth-service/internal/domain"
	"github.com/spec-kit/twofa-auth-service/internal/observability"
	"github.com/spec-kit/twofa-auth-service/internal/repository"
	apperrors "github.com/spec-kit/twofa-auth-service/pkg/util"
)

const maxUsernameLength = 150

// AuthService coordinates registration, login and second-factor enrollment on top
// of the authentication core.
type AuthService struct {
	users         repository.UserRepository
	authenticator *auth.Authenticator
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewAuthService builds the core primitives from configuration and wires them to
// the user repository.
func NewAuthService(cfg config.Config, deps AuthDependencies) (*AuthService, error) {
	if deps.UserRepo == nil {
		return nil, errors.New("auth service requires a user repository")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	skew := cfg.TOTP.Skew
	if skew == 0 {
		skew = auth.NoSkew
	}
	totp, err := auth.NewTOTPProvisioner(auth.TOTPConfig{
		Issuer:    cfg.TOTP.Issuer,
		Digits:    cfg.TOTP.Digits,
		Period:    cfg.TOTP.PeriodSeconds,
		Algorithm: cfg.TOTP.Algorithm,
		Skew:      skew,
	})
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		SigningKey: []byte(cfg.Auth.JWTSecret),
		TTL:        cfg.Auth.AccessTokenTTL,
		Issuer:     cfg.Auth.JWTIssuer,
	})
	if err != nil {
		return nil, err
	}
	authenticator, err := auth.NewAuthenticator(auth.AuthenticatorDeps{
		Hasher: hasher,
		TOTP:   totp,
		Tokens: tokens,
		Logger: deps.Logger,
		Now:    deps.Now,
	})
	if err != nil {
		return nil, err
	}

	return &AuthService{
		users:         deps.UserRepo,
		authenticator: authenticator,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
	}, nil
}

// RegisterUser creates a new account with second factor disabled.
func (s *AuthService) RegisterUser(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password required", nil)
	}
	if len(username) > maxUsernameLength {
		return nil, apperrors.NewValidationError("username too long", map[string]any{"max_length": maxUsernameLength})
	}

	hash, err := s.authenticator.Hasher().Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrEncoding) {
			return nil, apperrors.NewValidationError("password cannot be encoded", nil)
		}
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return nil, apperrors.NewConflict("username already registered", nil)
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login runs the login state machine and records the outcome.
func (s *AuthService) Login(ctx context.Context, username, password, otpCode string) (domain.LoginOutcome, error) {
	outcome, err := s.authenticator.Login(ctx, s.users, auth.LoginRequest{
		Username: username,
		Password: password,
		OTPCode:  strings.TrimSpace(otpCode),
	})
	if err != nil {
		s.metrics.RecordLogin("error")
		return domain.LoginOutcome{}, err
	}

	label := outcome.Status.String()
	if outcome.Status == domain.LoginRejected {
		label += ":" + string(outcome.Reason)
	}
	s.metrics.RecordLogin(label)
	return outcome, nil
}

// EnableSecondFactor enrolls the user with a fresh secret and returns the updated
// record with its provisioning URI.
func (s *AuthService) EnableSecondFactor(ctx context.Context, userID string) (*domain.User, string, error) {
	user, err := s.authenticator.EnableSecondFactor(ctx, s.users, userID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, "", apperrors.NewNotFound("user", nil)
		}
		return nil, "", err
	}

	uri, err := s.authenticator.ProvisioningURI(user)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("second factor enabled", zap.String("user_id", user.ID))
	return user, uri, nil
}

// ProvisioningURI returns the otpauth URI for the user's current secret.
func (s *AuthService) ProvisioningURI(ctx context.Context, userID string) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return "", apperrors.NewNotFound("user", nil)
		}
		return "", err
	}

	uri, err := s.authenticator.ProvisioningURI(user)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return "", apperrors.NewNotFound("second factor", nil)
		}
		return "", err
	}
	return uri, nil
}

// GetUser loads a user by id.
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}
	return user, nil
}

// GetUserByUsername loads a user by username.
func (s *AuthService) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}
	return user, nil
}

// VerifyToken returns the subject of a valid bearer token.
func (s *AuthService) VerifyToken(token string, now time.Time) (string, error) {
	return s.authenticator.Tokens().Verify(token, now)
}

// TokenIssuer exposes the underlying issuer for middleware usage.
func (s *AuthService) TokenIssuer() *auth.TokenIssuer {
	return s.authenticator.Tokens()
}

// Users exposes the repository for middleware and health checks.
func (s *AuthService) Users() repository.UserRepository {
	return s.users
}
