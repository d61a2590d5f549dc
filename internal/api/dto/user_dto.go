package dto

import (
	"time"

	"github.com/spec-kit/twofa-auth-service/internal/domain"
)

// UserRegisterRequest payload for new users.
type UserRegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest payload for both login endpoints. OTPCode is optional for users
// without a second factor.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	OTPCode  string `json:"otp_code,omitempty"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	TwoFactorEnabled bool   `json:"is_2fa_enabled"`
}

// AuthResponse carries an issued access token.
type AuthResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SecondFactorChallenge tells the client to resend credentials with a code.
type SecondFactorChallenge struct {
	RequiresTwoFactor bool   `json:"requires_2fa"`
	UserID            string `json:"user_id"`
}

// EnableSecondFactorResponse is returned after enrollment.
type EnableSecondFactorResponse struct {
	Success         bool   `json:"success"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// ProvisioningURIResponse wraps the otpauth URI.
type ProvisioningURIResponse struct {
	URI string `json:"uri"`
}

// NewUserResponse maps the domain record to its public view.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, TwoFactorEnabled: u.TwoFactorEnabled}
}

// NewAuthResponse maps an issued token.
func NewAuthResponse(t *domain.AccessToken) AuthResponse {
	return AuthResponse{AccessToken: t.Token, TokenType: t.Type, ExpiresAt: t.ExpiresAt}
}
