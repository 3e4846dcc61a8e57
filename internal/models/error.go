package models

import "errors"

// Sentinel errors for common failure conditions. Handlers map these onto
// stable wire-level error codes; nothing downstream matches on message text.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login-initiate phase. ErrInvalidCredentials deliberately covers both
	// "no such identity" and "wrong password" so callers cannot enumerate
	// accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrDeliveryFailed     = errors.New("code delivery failed")

	// OTP verification phase. A consumed code reports ErrOtpExpired, the
	// same as a missing or stale one, so replays get no distinguishing
	// signal.
	ErrOtpExpired      = errors.New("verification code expired")
	ErrInvalidOtp      = errors.New("invalid verification code")
	ErrTooManyAttempts = errors.New("too many verification attempts")

	// Post-authentication phase.
	ErrTokenInvalid           = errors.New("token is invalid")
	ErrTokenExpired           = errors.New("token has expired")
	ErrSessionSuperseded      = errors.New("session superseded by a newer login")
	ErrPasswordChangeRequired = errors.New("password change required")
)
