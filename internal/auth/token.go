package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/twofa-auth-service/internal/domain"
)

const (
	// ClaimsVersion is bumped whenever the claim layout changes.
	ClaimsVersion = 1

	// DefaultAccessTokenTTL is used when TokenConfig.TTL is zero.
	DefaultAccessTokenTTL = 30 * time.Minute
)

// TokenConfig is fixed at construction; the issuer never mutates it.
type TokenConfig struct {
	SigningKey []byte
	TTL        time.Duration
	Issuer     string
}

// Claims is the JWT payload. Subject carries the username.
type Claims struct {
	Version int `json:"ver"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256 access tokens.
type TokenIssuer struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenIssuer builds an issuer; the signing key is copied.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("token signing key is required")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("token ttl must not be negative")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultAccessTokenTTL
	}
	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)
	return &TokenIssuer{key: key, ttl: cfg.TTL, issuer: cfg.Issuer, now: time.Now}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (ti *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	clone := *ti
	clone.now = now
	return &clone
}

// TTL returns the default token lifetime.
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// Issue signs a token for subject with the default lifetime.
func (ti *TokenIssuer) Issue(subject string) (*domain.AccessToken, error) {
	return ti.IssueWithTTL(subject, ti.ttl)
}

// IssueWithTTL signs a token for subject that expires ttl after issuance.
func (ti *TokenIssuer) IssueWithTTL(subject string, ttl time.Duration) (*domain.AccessToken, error) {
	if subject == "" {
		return nil, errors.New("token subject is required")
	}
	if ttl < 0 {
		return nil, errors.New("token ttl must not be negative")
	}

	issuedAt := jwt.NewNumericDate(ti.now())
	expiresAt := jwt.NewNumericDate(issuedAt.Add(ttl))
	claims := &Claims{
		Version: ClaimsVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    ti.issuer,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &domain.AccessToken{
		Token:     signed,
		Type:      domain.TokenTypeBearer,
		Subject:   subject,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// Verify checks the signature and that now is before the expiry, returning the
// subject. Errors always wrap ErrInvalidToken plus the specific cause.
func (ti *TokenIssuer) Verify(tokenStr string, now time.Time) (string, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if ti.issuer != "" {
		options = append(options, jwt.WithIssuer(ti.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return ti.key, nil
	})
	if err != nil {
		return "", invalidToken(classifyTokenError(err))
	}
	if !parsed.Valid || claims.Version != ClaimsVersion || claims.Subject == "" {
		return "", invalidToken(ErrTokenMalformed)
	}
	return claims.Subject, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenSignature
	default:
		return ErrTokenMalformed
	}
}

func invalidToken(cause error) error {
	return fmt.Errorf("%w: %w", ErrInvalidToken, cause)
}
