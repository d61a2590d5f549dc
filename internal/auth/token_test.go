package auth

import (
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestIssuer(t *testing.T, cfg TokenConfig) *TokenIssuer {
	t.Helper()
	if cfg.SigningKey == nil {
		cfg.SigningKey = []byte("test-signing-key")
	}
	ti, err := NewTokenIssuer(cfg)
	require.NoError(t, err)
	return ti.WithClock(func() time.Time { return fixedNow })
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti := newTestIssuer(t, TokenConfig{})

	tok, err := ti.Issue("alice")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.Type)
	assert.Equal(t, "alice", tok.Subject)
	assert.Equal(t, fixedNow, tok.IssuedAt)
	assert.Equal(t, fixedNow.Add(30*time.Minute), tok.ExpiresAt)

	subject, err := ti.Verify(tok.Token, tok.IssuedAt)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestTokenIssuer_DefaultTTL(t *testing.T) {
	ti, err := NewTokenIssuer(TokenConfig{SigningKey: []byte("k")})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, ti.TTL())
}

func TestTokenIssuer_Expiry(t *testing.T) {
	ti := newTestIssuer(t, TokenConfig{})

	tok, err := ti.IssueWithTTL("alice", 0)
	require.NoError(t, err)

	_, err = ti.Verify(tok.Token, tok.IssuedAt.Add(time.Second))
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, ErrTokenExpired)

	tok, err = ti.Issue("alice")
	require.NoError(t, err)
	_, err = ti.Verify(tok.Token, tok.ExpiresAt.Add(-time.Second))
	assert.NoError(t, err)
	_, err = ti.Verify(tok.Token, tok.ExpiresAt)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenIssuer_WrongKey(t *testing.T) {
	issuer := newTestIssuer(t, TokenConfig{SigningKey: []byte("right")})
	verifier := newTestIssuer(t, TokenConfig{SigningKey: []byte("wrong")})

	tok, err := issuer.Issue("alice")
	require.NoError(t, err)

	_, err = verifier.Verify(tok.Token, fixedNow)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestTokenIssuer_TamperedPayload(t *testing.T) {
	ti := newTestIssuer(t, TokenConfig{})
	tok, err := ti.Issue("alice")
	require.NoError(t, err)

	other, err := ti.Issue("mallory")
	require.NoError(t, err)

	parts := strings.Split(tok.Token, ".")
	otherParts := strings.Split(other.Token, ".")
	forged := parts[0] + "." + otherParts[1] + "." + parts[2]

	_, err = ti.Verify(forged, fixedNow)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestTokenIssuer_Malformed(t *testing.T) {
	ti := newTestIssuer(t, TokenConfig{})

	for _, raw := range []string{"", "not.a.jwt", "abc", "a.b.c.d"} {
		_, err := ti.Verify(raw, fixedNow)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
		assert.ErrorIs(t, err, ErrTokenMalformed, raw)
	}
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	ti := newTestIssuer(t, TokenConfig{})
	claims := &Claims{
		Version: ClaimsVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
		},
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ti.Verify(none, fixedNow)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RequiresClaims(t *testing.T) {
	ti := newTestIssuer(t, TokenConfig{})
	key := []byte("test-signing-key")

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Version:          ClaimsVersion,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	}).SignedString(key)
	require.NoError(t, err)
	_, err = ti.Verify(noExp, fixedNow)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	wrongVersion, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Version: ClaimsVersion + 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
		},
	}).SignedString(key)
	require.NoError(t, err)
	_, err = ti.Verify(wrongVersion, fixedNow)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestTokenIssuer_Issuer(t *testing.T) {
	a := newTestIssuer(t, TokenConfig{Issuer: "svc-a"})
	b := newTestIssuer(t, TokenConfig{Issuer: "svc-b"})

	tok, err := a.Issue("alice")
	require.NoError(t, err)

	_, err = a.Verify(tok.Token, fixedNow)
	assert.NoError(t, err)
	_, err = b.Verify(tok.Token, fixedNow)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuer_Validation(t *testing.T) {
	_, err := NewTokenIssuer(TokenConfig{})
	assert.Error(t, err)
	_, err = NewTokenIssuer(TokenConfig{SigningKey: []byte("k"), TTL: -time.Second})
	assert.Error(t, err)

	ti := newTestIssuer(t, TokenConfig{})
	_, err = ti.Issue("")
	assert.Error(t, err)
	_, err = ti.IssueWithTTL("alice", -time.Second)
	assert.Error(t, err)
}

func TestNewTokenIssuer_CopiesKey(t *testing.T) {
	key := []byte("mutable-key")
	ti, err := NewTokenIssuer(TokenConfig{SigningKey: key})
	require.NoError(t, err)

	tok, err := ti.Issue("alice")
	require.NoError(t, err)
	key[0] = 'X'

	_, err = ti.Verify(tok.Token, time.Now())
	assert.NoError(t, err)
}
