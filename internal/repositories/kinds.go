package repositories

import (
	"fmt"

	"github.com/cardbase/authcore/internal/models"
)

// kindTables maps each identity kind to its backing table. Every table
// carries a current_session_id column; the remaining column differences are
// papered over in the per-kind SELECT below so one scanner serves all kinds.
var kindTables = map[models.IdentityKind]string{
	models.KindUser:       "users",
	models.KindTeamAdmin:  "team_admins",
	models.KindTeamMember: "team_members",
	models.KindOperator:   "operators",
}

func tableFor(kind models.IdentityKind) (string, error) {
	table, ok := kindTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown identity kind %q", kind)
	}
	return table, nil
}

// identitySelect returns a SELECT producing the uniform identity row shape
// (id, identifier, password_hash, current_session_id,
// requires_password_change, disabled, admin_id, created_at, updated_at) for
// the given kind.
func identitySelect(kind models.IdentityKind) (string, error) {
	switch kind {
	case models.KindUser:
		return `SELECT id, email, password_hash, current_session_id, requires_password_change, FALSE, NULL::TEXT, created_at, updated_at FROM users`, nil
	case models.KindTeamAdmin:
		return `SELECT id, email, password_hash, current_session_id, requires_password_change, FALSE, NULL::TEXT, created_at, updated_at FROM team_admins`, nil
	case models.KindTeamMember:
		return `SELECT id, username, password_hash, current_session_id, FALSE, NOT is_active, admin_id, created_at, updated_at FROM team_members`, nil
	case models.KindOperator:
		return `SELECT id, email, password_hash, current_session_id, FALSE, NOT is_active, NULL::TEXT, created_at, updated_at FROM operators`, nil
	}
	return "", fmt.Errorf("unknown identity kind %q", kind)
}

// identifierColumn returns the login-identifier column for the kind's table.
func identifierColumn(kind models.IdentityKind) string {
	if kind == models.KindTeamMember {
		return "username"
	}
	return "email"
}
