package domain

import "time"

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "Bearer"

// AccessToken is a signed, self-contained bearer token and its metadata.
type AccessToken struct {
	Token     string
	Type      string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// LoginStatus tags the variant held by a LoginOutcome.
type LoginStatus int

const (
	LoginRejected LoginStatus = iota
	LoginSecondFactorRequired
	LoginAuthenticated
)

func (s LoginStatus) String() string {
	switch s {
	case LoginAuthenticated:
		return "authenticated"
	case LoginSecondFactorRequired:
		return "second_factor_required"
	default:
		return "rejected"
	}
}

// RejectReason explains a rejected login. Unknown users and wrong passwords share
// RejectInvalidCredentials.
type RejectReason string

const (
	RejectInvalidCredentials RejectReason = "invalid_credentials"
	RejectInvalidOTP         RejectReason = "invalid_otp"
)

// LoginOutcome is the result of one login attempt. Exactly one of the variants is
// populated, selected by Status.
type LoginOutcome struct {
	Status LoginStatus

	// Authenticated
	Token *AccessToken

	// SecondFactorRequired
	SubjectRef string
	UserID     string

	// Rejected
	Reason RejectReason
}

// Authenticated builds the success variant.
func Authenticated(token *AccessToken) LoginOutcome {
	return LoginOutcome{Status: LoginAuthenticated, Token: token}
}

// SecondFactorRequired builds the variant returned when a TOTP code is still needed.
func SecondFactorRequired(username, userID string) LoginOutcome {
	return LoginOutcome{Status: LoginSecondFactorRequired, SubjectRef: username, UserID: userID}
}

// Rejected builds the rejection variant.
func Rejected(reason RejectReason) LoginOutcome {
	return LoginOutcome{Status: LoginRejected, Reason: reason}
}
