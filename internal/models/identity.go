package models

import (
	"time"
)

// IdentityKind discriminates the account tables an identity can live in.
type IdentityKind string

const (
	KindUser       IdentityKind = "user"
	KindTeamAdmin  IdentityKind = "team_admin"
	KindTeamMember IdentityKind = "team_member"
	KindOperator   IdentityKind = "operator"
)

// LoginPrecedence is the fixed order in which an identifier is resolved
// during login. First match wins; operators authenticate through their own
// endpoint and are never matched here.
var LoginPrecedence = []IdentityKind{KindUser, KindTeamAdmin, KindTeamMember}

// Valid reports whether k names a known identity kind.
func (k IdentityKind) Valid() bool {
	switch k {
	case KindUser, KindTeamAdmin, KindTeamMember, KindOperator:
		return true
	}
	return false
}

// Identity is the kind-tagged view of one account row. The per-kind tables
// share this shape; fields that only exist for some kinds are pointers.
type Identity struct {
	Kind       IdentityKind
	ID         string
	Identifier string // email, or username for team members

	PasswordHash string

	// SessionMarker is the single currently-valid session id, nil when no
	// session is active. Tokens embed the value current at mint time.
	SessionMarker *string

	RequiresPasswordChange bool
	Disabled               bool

	// AdminID links a team member to its supervising team admin. Nil for
	// every other kind.
	AdminID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDisabled reports whether the identity is blocked from authenticating.
func (i *Identity) IsDisabled() bool {
	return i.Disabled
}

// HasSession reports whether any session is currently active.
func (i *Identity) HasSession() bool {
	return i.SessionMarker != nil && *i.SessionMarker != ""
}

// SessionMatches compares a token-embedded marker to the stored one. A nil
// stored marker matches nothing, including an empty embedded marker.
func (i *Identity) SessionMatches(marker string) bool {
	return i.SessionMarker != nil && marker != "" && *i.SessionMarker == marker
}

// ResellerRole marks an identity of any kind as a reseller. The provisioning
// business rules live outside this core; the core only reads the flag.
type ResellerRole struct {
	ID           string
	IdentityKind IdentityKind
	IdentityID   string
	Active       bool
	CreatedAt    time.Time
}
