package domain

import "time"

// User is the persisted account record: the credential plus its second-factor state.
type User struct {
	ID               string
	Username         string
	PasswordHash     string
	TOTPSecret       string
	TwoFactorEnabled bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasSecondFactor reports whether login must be completed with a TOTP code.
func (u *User) HasSecondFactor() bool {
	return u != nil && u.TwoFactorEnabled
}

// EnableSecondFactor installs a fresh shared secret and turns verification on.
// Both fields change together so a saved record never has enabled=true without a secret.
func (u *User) EnableSecondFactor(secret string) {
	u.TOTPSecret = secret
	u.TwoFactorEnabled = true
}
