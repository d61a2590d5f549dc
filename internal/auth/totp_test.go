package auth

import (
	"encoding/base32"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rfcSecret(raw string) string {
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(raw))
}

func TestTOTP_RFC6238Vectors(t *testing.T) {
	tests := []struct {
		algorithm string
		secret    string
		codes     map[int64]string
	}{
		{
			algorithm: "SHA1",
			secret:    rfcSecret("12345678901234567890"),
			codes: map[int64]string{
				59:          "94287082",
				1111111109:  "07081804",
				1111111111:  "14050471",
				1234567890:  "89005924",
				2000000000:  "69279037",
				20000000000: "65353130",
			},
		},
		{
			algorithm: "SHA256",
			secret:    rfcSecret("12345678901234567890123456789012"),
			codes: map[int64]string{
				59:          "46119246",
				1111111109:  "68084774",
				1111111111:  "67062674",
				1234567890:  "91819424",
				2000000000:  "90698825",
				20000000000: "77737706",
			},
		},
		{
			algorithm: "SHA512",
			secret:    rfcSecret("1234567890123456789012345678901234567890123456789012345678901234"),
			codes: map[int64]string{
				59:          "90693936",
				1111111109:  "25091201",
				1111111111:  "99943326",
				1234567890:  "93441116",
				2000000000:  "38618901",
				20000000000: "47863826",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			p, err := NewTOTPProvisioner(TOTPConfig{Digits: 8, Algorithm: tt.algorithm})
			require.NoError(t, err)

			for ts, want := range tt.codes {
				now := time.Unix(ts, 0)
				got, err := p.Code(tt.secret, now)
				require.NoError(t, err)
				assert.Equal(t, want, got, "t=%d", ts)

				ok, err := p.VerifyCode(tt.secret, want, now)
				require.NoError(t, err)
				assert.True(t, ok, "t=%d", ts)
			}
		})
	}
}

func TestTOTP_DefaultsAndSecret(t *testing.T) {
	p, err := NewTOTPProvisioner(TOTPConfig{Issuer: "acme"})
	require.NoError(t, err)

	cfg := p.Config()
	assert.Equal(t, 6, cfg.Digits)
	assert.Equal(t, 30, cfg.Period)
	assert.Equal(t, "SHA1", cfg.Algorithm)

	secret, err := p.GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 32)
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(raw)*8, 128)

	other, err := p.GenerateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)
}

func TestTOTP_SkewWindow(t *testing.T) {
	p, err := NewTOTPProvisioner(TOTPConfig{Skew: 1})
	require.NoError(t, err)
	secret := "JBSWY3DPEHPK3PXP"

	issued := time.Unix(1_700_000_010, 0)
	code, err := p.Code(secret, issued)
	require.NoError(t, err)

	for _, offset := range []time.Duration{0, 30 * time.Second, -30 * time.Second} {
		ok, err := p.VerifyCode(secret, code, issued.Add(offset))
		require.NoError(t, err)
		assert.True(t, ok, "offset %s", offset)
	}
	for _, offset := range []time.Duration{90 * time.Second, -90 * time.Second, 10 * time.Minute} {
		ok, err := p.VerifyCode(secret, code, issued.Add(offset))
		require.NoError(t, err)
		assert.False(t, ok, "offset %s", offset)
	}
}

func TestTOTP_MalformedCodes(t *testing.T) {
	p, err := NewTOTPProvisioner(TOTPConfig{})
	require.NoError(t, err)
	secret, err := p.GenerateSecret()
	require.NoError(t, err)
	now := time.Now()

	code, err := p.Code(secret, now)
	require.NoError(t, err)

	for _, bad := range []string{"", "12345", "1234567", "12a456", "abcdef", code + "0"} {
		ok, err := p.VerifyCode(secret, bad, now)
		require.NoError(t, err)
		assert.False(t, ok, "code %q", bad)
	}

	ok, err := p.VerifyCode(secret, " "+code+" ", now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTOTP_InvalidSecret(t *testing.T) {
	p, err := NewTOTPProvisioner(TOTPConfig{})
	require.NoError(t, err)

	for _, bad := range []string{"", "   ", "not base32!", "1"} {
		_, err := p.VerifyCode(bad, "123456", time.Now())
		assert.ErrorIs(t, err, ErrInvalidSecret, "secret %q", bad)

		_, err = p.ProvisioningURI(bad, "alice", "")
		assert.ErrorIs(t, err, ErrInvalidSecret, "secret %q", bad)
	}
}

func TestTOTP_LowercaseAndPaddedSecretsAccepted(t *testing.T) {
	p, err := NewTOTPProvisioner(TOTPConfig{})
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)

	code, err := p.Code("JBSWY3DPEHPK3PXP", now)
	require.NoError(t, err)

	ok, err := p.VerifyCode("jbsw y3dp ehpk 3pxp", code, now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTOTP_ProvisioningURI(t *testing.T) {
	p, err := NewTOTPProvisioner(TOTPConfig{Issuer: "2fa-user-authenticator"})
	require.NoError(t, err)

	uri, err := p.ProvisioningURI("JBSWY3DPEHPK3PXP", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "otpauth://totp/2fa-user-authenticator:alice?secret=JBSWY3DPEHPK3PXP&issuer=2fa-user-authenticator", uri)

	uri, err = p.ProvisioningURI("JBSWY3DPEHPK3PXP", "bob smith@example.com", "Acme & Co")
	require.NoError(t, err)
	assert.Equal(t, "otpauth://totp/Acme%20%26%20Co:bob%20smith%40example.com?secret=JBSWY3DPEHPK3PXP&issuer=Acme%20%26%20Co", uri)
	assert.False(t, strings.Contains(uri, "+"))
}

func TestNewTOTPProvisioner_Invalid(t *testing.T) {
	_, err := NewTOTPProvisioner(TOTPConfig{Algorithm: "MD5"})
	assert.Error(t, err)
	_, err = NewTOTPProvisioner(TOTPConfig{Digits: 4})
	assert.Error(t, err)
	_, err = NewTOTPProvisioner(TOTPConfig{Skew: -2})
	assert.Error(t, err)
	_, err = NewTOTPProvisioner(TOTPConfig{Period: -30})
	assert.Error(t, err)
}

func TestTOTP_DefaultSkewToleratesAdjacentStep(t *testing.T) {
	p, err := NewTOTPProvisioner(TOTPConfig{})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Config().Skew)

	secret := "JBSWY3DPEHPK3PXP"
	issued := time.Unix(1_700_000_010, 0)
	code, err := p.Code(secret, issued)
	require.NoError(t, err)

	ok, err := p.VerifyCode(secret, code, issued.Add(30*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTOTP_NoSkewAcceptsOnlyCurrentStep(t *testing.T) {
	p, err := NewTOTPProvisioner(TOTPConfig{Skew: NoSkew})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Config().Skew)

	secret := "JBSWY3DPEHPK3PXP"
	issued := time.Unix(1_700_000_010, 0)
	code, err := p.Code(secret, issued)
	require.NoError(t, err)

	ok, err := p.VerifyCode(secret, code, issued)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, offset := range []time.Duration{30 * time.Second, -30 * time.Second} {
		ok, err := p.VerifyCode(secret, code, issued.Add(offset))
		require.NoError(t, err)
		assert.False(t, ok, "offset %s", offset)
	}
}
