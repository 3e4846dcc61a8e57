package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/cardbase/authcore/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager mints and validates access tokens. Tokens are stateless; the
// embedded session id is what ties them to the single active session, and
// that cross-check happens in the middleware, not here.
type TokenManager struct {
	secret []byte
	expiry time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// Generate mints an access token bound to the given identity and session id.
func (tm *TokenManager) Generate(kind models.IdentityKind, identityID, sessionID string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("cannot mint token for unknown identity kind %q", kind)
	}
	if identityID == "" || sessionID == "" {
		return "", fmt.Errorf("cannot mint token without identity and session ids")
	}

	now := time.Now()
	claims := &models.TokenClaims{
		Kind:       kind,
		IdentityID: identityID,
		SessionID:  sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// Validate verifies signature and expiry and returns the claims. Expiry is
// reported distinctly from every other failure so callers can surface it.
func (tm *TokenManager) Validate(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrTokenInvalid
	}

	if !token.Valid {
		return nil, models.ErrTokenInvalid
	}

	if !claims.Kind.Valid() || claims.IdentityID == "" || claims.SessionID == "" {
		return nil, models.ErrTokenInvalid
	}

	return claims, nil
}
