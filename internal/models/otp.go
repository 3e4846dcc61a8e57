package models

import (
	"time"
)

// MaxOtpAttempts caps verification tries per pending login attempt. The
// counter counts attempts made, not failures, so a login that succeeds on
// the fifth try is still within the cap.
const MaxOtpAttempts = 5

// PendingLoginAttempt is one in-flight login awaiting code verification.
// The pending token correlates the credential step with the verify step;
// the row is one-shot and expires by TTL.
type PendingLoginAttempt struct {
	ID           string
	IdentityKind IdentityKind
	IdentityID   string
	Identifier   string
	Code         string // 6 digits, leading zeros preserved
	PendingToken string
	Attempts     int
	Consumed     bool
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// IsExpired reports whether the attempt's TTL has passed at the given time.
func (p *PendingLoginAttempt) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// IsVerifiable reports whether a verify call may still be counted against
// this attempt.
func (p *PendingLoginAttempt) IsVerifiable(now time.Time) bool {
	return !p.Consumed && !p.IsExpired(now) && p.Attempts < MaxOtpAttempts
}
