package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cardbase/authcore/internal/models"
	pkghttp "github.com/cardbase/authcore/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// IdentityContextKey is the key for the resolved identity in context
	IdentityContextKey contextKey = "identity"
	// ClaimsContextKey is the key for the validated token claims in context
	ClaimsContextKey contextKey = "claims"
)

// IdentityLoader fetches the current account row for a token's subject.
type IdentityLoader interface {
	GetByKindID(ctx context.Context, kind models.IdentityKind, id string) (*models.Identity, error)
}

// ResellerChecker reports whether an identity carries an active reseller role.
type ResellerChecker interface {
	HasActiveRole(ctx context.Context, kind models.IdentityKind, id string) (bool, error)
}

// BearerToken pulls the token out of the Authorization header. The scheme is
// matched case-insensitively; an empty result means the header was missing or
// not a bearer credential. Every route that reads the header goes through
// here so they all accept the same format.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Middleware validates bearer tokens and cross-checks the embedded session
// id against the identity's stored marker, so a token from a superseded
// login is rejected even though its signature and expiry are fine.
func Middleware(tm *TokenManager, identities IdentityLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				pkghttp.WriteError(w, http.StatusUnauthorized, "token_invalid", "Missing authorization header")
				return
			}

			token := BearerToken(r)
			if token == "" {
				pkghttp.WriteError(w, http.StatusUnauthorized, "token_invalid", "Invalid authorization header format")
				return
			}

			claims, err := tm.Validate(token)
			if err != nil {
				if errors.Is(err, models.ErrTokenExpired) {
					pkghttp.WriteError(w, http.StatusUnauthorized, "token_expired", "Token has expired")
					return
				}
				pkghttp.WriteError(w, http.StatusUnauthorized, "token_invalid", "Invalid token")
				return
			}

			identity, err := identities.GetByKindID(r.Context(), claims.Kind, claims.IdentityID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					// A deleted account gets the same signal as a rotated
					// session; nothing here may leak account existence.
					pkghttp.WriteError(w, http.StatusUnauthorized, "session_superseded", "Session is no longer valid")
					return
				}
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			if identity.IsDisabled() {
				pkghttp.WriteError(w, http.StatusForbidden, "account_disabled", "Account is disabled")
				return
			}

			if !identity.SessionMatches(claims.SessionID) {
				pkghttp.WriteError(w, http.StatusUnauthorized, "session_superseded", "Session is no longer valid")
				return
			}

			ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
			ctx = context.WithValue(ctx, ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCurrentPassword blocks identities that still carry the forced
// password change flag. The change-password route is registered outside this
// middleware so the flag can actually be cleared.
func RequireCurrentPassword() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r)
			if identity == nil {
				pkghttp.WriteUnauthorized(w, "Unauthorized")
				return
			}

			if identity.RequiresPasswordChange {
				pkghttp.WriteError(w, http.StatusForbidden, "password_change_required", "Password change required before continuing")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireReseller gates reseller-only routes on an active reseller role.
func RequireReseller(roles ResellerChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r)
			if identity == nil {
				pkghttp.WriteUnauthorized(w, "Unauthorized")
				return
			}

			ok, err := roles.HasActiveRole(r.Context(), identity.Kind, identity.ID)
			if err != nil {
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}
			if !ok {
				pkghttp.WriteForbidden(w, "Reseller access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext extracts the resolved identity from request context
func IdentityFromContext(r *http.Request) *models.Identity {
	identity, ok := r.Context().Value(IdentityContextKey).(*models.Identity)
	if !ok {
		return nil
	}
	return identity
}

// ClaimsFromContext extracts the validated token claims from request context
func ClaimsFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(ClaimsContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
