package integration

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cardbase/authcore/internal/models"
)

var emailCounter atomic.Int64

// UniqueEmail generates a unique email address for test isolation
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d-%s@example.com", prefix, emailCounter.Add(1), uuid.New().String()[:8])
}

// UniqueUsername generates a unique team member username
func UniqueUsername(prefix string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, emailCounter.Add(1), uuid.New().String()[:8])
}

// hashForSeed hashes at minimum cost; seeded fixtures do not need the
// production work factor
func hashForSeed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash seed password: %v", err)
	}
	return string(hash)
}

// SeedUser inserts a primary user directly into the database
func SeedUser(t *testing.T, db *TestDB, email, password string, requiresPasswordChange bool) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO users (id, email, password_hash, requires_password_change)
		VALUES ($1, $2, $3, $4)
	`, id, email, hashForSeed(t, password), requiresPasswordChange)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return id
}

// SeedTeamAdmin inserts a team admin directly into the database
func SeedTeamAdmin(t *testing.T, db *TestDB, email, password string) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO team_admins (id, email, password_hash)
		VALUES ($1, $2, $3)
	`, id, email, hashForSeed(t, password))
	if err != nil {
		t.Fatalf("failed to seed team admin: %v", err)
	}
	return id
}

// SeedTeamMember inserts a team member supervised by the given admin
func SeedTeamMember(t *testing.T, db *TestDB, username, password, adminID string) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO team_members (id, username, password_hash, admin_id)
		VALUES ($1, $2, $3, $4)
	`, id, username, hashForSeed(t, password), adminID)
	if err != nil {
		t.Fatalf("failed to seed team member: %v", err)
	}
	return id
}

// SeedOperator inserts a platform operator
func SeedOperator(t *testing.T, db *TestDB, email, password string) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO operators (id, email, password_hash, full_name)
		VALUES ($1, $2, $3, 'Test Operator')
	`, id, email, hashForSeed(t, password))
	if err != nil {
		t.Fatalf("failed to seed operator: %v", err)
	}
	return id
}

// GrantResellerRole attaches an active reseller role to an identity
func GrantResellerRole(t *testing.T, db *TestDB, kind models.IdentityKind, identityID string) {
	t.Helper()

	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO reseller_roles (id, identity_kind, identity_id)
		VALUES ($1, $2, $3)
	`, uuid.New().String(), string(kind), identityID)
	if err != nil {
		t.Fatalf("failed to grant reseller role: %v", err)
	}
}

// DisableTeamMember flips a team member inactive
func DisableTeamMember(t *testing.T, db *TestDB, id string) {
	t.Helper()

	_, err := db.Pool.Exec(context.Background(),
		`UPDATE team_members SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		t.Fatalf("failed to disable team member: %v", err)
	}
}

// ExpireOTP backdates a pending login attempt so it reads as expired
func ExpireOTP(t *testing.T, db *TestDB, pendingToken string) {
	t.Helper()

	_, err := db.Pool.Exec(context.Background(),
		`UPDATE login_otps SET expires_at = NOW() - INTERVAL '1 minute' WHERE pending_token = $1`, pendingToken)
	if err != nil {
		t.Fatalf("failed to expire login attempt: %v", err)
	}
}
