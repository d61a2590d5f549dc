package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"hash"
	"net/url"
	"strings"
	"time"
)

const (
	totpSecretBytes = 20

	// NoSkew disables drift tolerance; only the current step verifies.
	NoSkew = -1
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTPConfig holds RFC 6238 parameters. Zero values fall back to 6 digits, a 30
// second period, SHA1 and one step of skew. Set Skew to NoSkew to accept only the
// current step.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	Skew      int
}

// TOTPProvisioner generates shared secrets and verifies time-based codes.
type TOTPProvisioner struct {
	config TOTPConfig
	hashFn func() hash.Hash
}

// NewTOTPProvisioner applies defaults and validates the digest and digit count.
func NewTOTPProvisioner(cfg TOTPConfig) (*TOTPProvisioner, error) {
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	if cfg.Digits < 6 || cfg.Digits > 8 {
		return nil, fmt.Errorf("totp digits must be between 6 and 8, got %d", cfg.Digits)
	}
	switch {
	case cfg.Skew == 0:
		cfg.Skew = 1
	case cfg.Skew == NoSkew:
		cfg.Skew = 0
	case cfg.Skew < 0:
		return nil, fmt.Errorf("totp skew must be positive or NoSkew, got %d", cfg.Skew)
	}
	if cfg.Period < 0 {
		return nil, fmt.Errorf("totp period must not be negative")
	}
	hf, err := hmacFunc(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	cfg.Algorithm = strings.ToUpper(cfg.Algorithm)
	return &TOTPProvisioner{config: cfg, hashFn: hf}, nil
}

// Config returns the effective parameters.
func (p *TOTPProvisioner) Config() TOTPConfig {
	return p.config
}

// GenerateSecret returns 160 random bits encoded as unpadded base32.
func (p *TOTPProvisioner) GenerateSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return secretEncoding.EncodeToString(raw), nil
}

// ProvisioningURI builds the otpauth URI authenticator apps import:
// otpauth://totp/{issuer}:{account}?secret={secret}&issuer={issuer}.
// An empty issuer uses the configured one.
func (p *TOTPProvisioner) ProvisioningURI(secret, account, issuer string) (string, error) {
	if _, err := decodeSecret(secret); err != nil {
		return "", err
	}
	if issuer == "" {
		issuer = p.config.Issuer
	}
	label := uriEscape(issuer) + ":" + uriEscape(account)
	return "otpauth://totp/" + label + "?secret=" + uriEscape(secret) + "&issuer=" + uriEscape(issuer), nil
}

// Code returns the code for the time step containing now.
func (p *TOTPProvisioner) Code(secret string, now time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return hotpCode(p.hashFn, key, now.Unix()/int64(p.config.Period), p.config.Digits), nil
}

// VerifyCode reports whether code matches the step containing now or one of the
// Skew steps on either side. Every candidate is compared so timing does not depend
// on which step, or which digit, matched.
func (p *TOTPProvisioner) VerifyCode(secret, code string, now time.Time) (bool, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return false, err
	}

	trimmed := strings.TrimSpace(code)
	if len(trimmed) != p.config.Digits || !isNumeric(trimmed) {
		return false, nil
	}

	base := now.Unix() / int64(p.config.Period)
	matched := 0
	for step := -p.config.Skew; step <= p.config.Skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		generated := hotpCode(p.hashFn, key, counter, p.config.Digits)
		matched |= subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed))
	}
	return matched == 1, nil
}

func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	normalized = strings.TrimRight(normalized, "=")
	if normalized == "" {
		return nil, ErrInvalidSecret
	}
	key, err := secretEncoding.DecodeString(normalized)
	if err != nil || len(key) == 0 {
		return nil, ErrInvalidSecret
	}
	return key, nil
}

func hotpCode(hf func() hash.Hash, key []byte, counter int64, digits int) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(hf, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod)
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unsupported totp algorithm %q", algorithm)
	}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func uriEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
