package auth

import "errors"

var (
	// ErrEncoding signals a hashing configuration or input the hasher cannot encode.
	ErrEncoding = errors.New("password encoding error")
	// ErrInvalidSecret signals a TOTP shared secret that is not valid base32.
	ErrInvalidSecret = errors.New("invalid totp secret")

	// ErrInvalidToken is the single rejection exposed for bearer tokens. Every token
	// verification failure wraps it together with one of the causes below.
	ErrInvalidToken = errors.New("invalid token")

	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature mismatch")
	ErrTokenExpired   = errors.New("token expired")
)
