package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the signed claim set carried by every access token. The
// session id is cross-checked against the identity's stored marker on each
// request; the rest is standard registered-claims bookkeeping.
type TokenClaims struct {
	Kind       IdentityKind `json:"kind"`
	IdentityID string       `json:"identity_id"`
	SessionID  string       `json:"sid"`
	jwt.RegisteredClaims
}
