package services

import (
	"context"

	"github.com/cardbase/authcore/internal/models"
)

// SessionStore is the storage surface the registry needs: single-row
// marker mutation on the identity tables.
type SessionStore interface {
	RotateSession(ctx context.Context, kind models.IdentityKind, id string) (string, error)
	ClearSession(ctx context.Context, kind models.IdentityKind, id string) error
}

// SessionRegistry enforces the one-active-session policy. The identity's
// stored marker is the single point of truth for which token is valid;
// Rotate installs a fresh marker (killing every older token) and Check
// compares a token-embedded marker against the stored one.
type SessionRegistry struct {
	store SessionStore
}

func NewSessionRegistry(store SessionStore) *SessionRegistry {
	return &SessionRegistry{store: store}
}

// Rotate installs and returns a new session marker for the identity.
func (sr *SessionRegistry) Rotate(ctx context.Context, kind models.IdentityKind, id string) (string, error) {
	return sr.store.RotateSession(ctx, kind, id)
}

// Clear tombstones the identity's marker so no outstanding token matches.
// Idempotent.
func (sr *SessionRegistry) Clear(ctx context.Context, kind models.IdentityKind, id string) error {
	return sr.store.ClearSession(ctx, kind, id)
}

// Check reports whether the embedded marker is the identity's current one.
func (sr *SessionRegistry) Check(identity *models.Identity, marker string) bool {
	return identity.SessionMatches(marker)
}
