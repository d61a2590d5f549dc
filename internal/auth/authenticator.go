package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/twofa-auth-service/internal/domain"
)

// dummyPassword is hashed once so unknown usernames pay the same bcrypt cost as a
// wrong password.
const dummyPassword = "not-a-real-password"

// UserStore is the record store the authenticator reads and writes. Save must
// replace the whole record atomically. UpdatePasswordHash must change only the
// hash, and only while the stored hash still equals oldHash.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
	UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error
}

// LoginRequest carries presented credentials. An empty OTPCode means no code was
// supplied.
type LoginRequest struct {
	Username string
	Password string
	OTPCode  string
}

// AuthenticatorDeps bundles the primitives the authenticator orchestrates.
type AuthenticatorDeps struct {
	Hasher *PasswordHasher
	TOTP   *TOTPProvisioner
	Tokens *TokenIssuer
	Logger *zap.Logger
	Now    func() time.Time
}

// Authenticator turns credentials into login outcomes and manages TOTP enrollment.
// It holds no per-user state; the store is passed to every call.
type Authenticator struct {
	hasher    *PasswordHasher
	totp      *TOTPProvisioner
	tokens    *TokenIssuer
	logger    *zap.Logger
	now       func() time.Time
	dummyHash string
}

// NewAuthenticator validates dependencies and precomputes the dummy hash.
func NewAuthenticator(deps AuthenticatorDeps) (*Authenticator, error) {
	if deps.Hasher == nil || deps.TOTP == nil || deps.Tokens == nil {
		return nil, errors.New("authenticator requires hasher, totp provisioner and token issuer")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	dummy, err := deps.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}
	return &Authenticator{
		hasher:    deps.Hasher,
		totp:      deps.TOTP,
		tokens:    deps.Tokens.WithClock(deps.Now),
		logger:    deps.Logger,
		now:       deps.Now,
		dummyHash: dummy,
	}, nil
}

// Tokens exposes the issuer for bearer verification.
func (a *Authenticator) Tokens() *TokenIssuer {
	return a.tokens
}

// TOTP exposes the provisioner for URI generation.
func (a *Authenticator) TOTP() *TOTPProvisioner {
	return a.totp
}

// Hasher exposes the password hasher for registration.
func (a *Authenticator) Hasher() *PasswordHasher {
	return a.hasher
}

// Login runs one attempt to completion. Expected rejections are outcomes; an error
// is returned only for store failures or corrupt stored data.
func (a *Authenticator) Login(ctx context.Context, store UserStore, req LoginRequest) (domain.LoginOutcome, error) {
	user, err := store.FindByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			return domain.LoginOutcome{}, fmt.Errorf("find user: %w", err)
		}
		a.hasher.Verify(req.Password, a.dummyHash)
		return domain.Rejected(domain.RejectInvalidCredentials), nil
	}

	if !a.hasher.Verify(req.Password, user.PasswordHash) {
		return domain.Rejected(domain.RejectInvalidCredentials), nil
	}
	a.upgradeHash(ctx, store, user, req.Password)

	if user.HasSecondFactor() {
		if req.OTPCode == "" {
			return domain.SecondFactorRequired(user.Username, user.ID), nil
		}
		ok, err := a.totp.VerifyCode(user.TOTPSecret, req.OTPCode, a.now())
		if err != nil {
			return domain.LoginOutcome{}, fmt.Errorf("verify otp for user %s: %w", user.ID, err)
		}
		if !ok {
			return domain.Rejected(domain.RejectInvalidOTP), nil
		}
	}

	token, err := a.tokens.Issue(user.Username)
	if err != nil {
		return domain.LoginOutcome{}, err
	}
	return domain.Authenticated(token), nil
}

// EnableSecondFactor replaces any existing secret with a fresh one and turns 2FA on.
// Codes from a previously provisioned secret stop verifying.
func (a *Authenticator) EnableSecondFactor(ctx context.Context, store UserStore, userID string) (*domain.User, error) {
	user, err := store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	secret, err := a.totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	updated := *user
	updated.EnableSecondFactor(secret)
	if err := store.Save(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ProvisioningURI renders the enrollment URI for a user's stored secret.
func (a *Authenticator) ProvisioningURI(user *domain.User) (string, error) {
	if user == nil || user.TOTPSecret == "" {
		return "", domain.ErrRecordNotFound
	}
	return a.totp.ProvisioningURI(user.TOTPSecret, user.Username, "")
}

func (a *Authenticator) upgradeHash(ctx context.Context, store UserStore, user *domain.User, password string) {
	if !a.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	hashed, err := a.hasher.Hash(password)
	if err != nil {
		a.logger.Warn("password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	// Writes only the hash; a concurrent enrollment must survive.
	if err := store.UpdatePasswordHash(ctx, user.ID, user.PasswordHash, hashed); err != nil {
		if errors.Is(err, domain.ErrStaleRecord) {
			a.logger.Debug("password rehash skipped; record changed", zap.String("user_id", user.ID))
			return
		}
		a.logger.Warn("saving rehashed password failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = hashed
}
