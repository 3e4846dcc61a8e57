package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cardbase/authcore/internal/database"
	"github.com/cardbase/authcore/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdentityRepository is the polymorphic account store. One repository serves
// all identity kinds; the kind picks the backing table.
type IdentityRepository struct {
	pool *pgxpool.Pool
}

func NewIdentityRepository(db *database.DB) *IdentityRepository {
	return &IdentityRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (single row or rows iteration)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIdentityRow(kind models.IdentityKind, scanner rowScanner) (*models.Identity, error) {
	var identity models.Identity
	var sessionMarker, adminID *string

	err := scanner.Scan(
		&identity.ID, &identity.Identifier, &identity.PasswordHash,
		&sessionMarker, &identity.RequiresPasswordChange, &identity.Disabled,
		&adminID, &identity.CreatedAt, &identity.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	identity.Kind = kind
	identity.SessionMarker = sessionMarker
	identity.AdminID = adminID

	return &identity, nil
}

// GetByKindID loads one identity by its kind and row id.
func (r *IdentityRepository) GetByKindID(ctx context.Context, kind models.IdentityKind, id string) (*models.Identity, error) {
	base, err := identitySelect(kind)
	if err != nil {
		return nil, err
	}

	query := base + ` WHERE id = $1`
	return scanIdentityRow(kind, r.pool.QueryRow(ctx, query, id))
}

// getByIdentifier loads one identity of a single kind by login identifier.
func (r *IdentityRepository) getByIdentifier(ctx context.Context, kind models.IdentityKind, identifier string) (*models.Identity, error) {
	base, err := identitySelect(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("%s WHERE %s = $1", base, identifierColumn(kind))
	return scanIdentityRow(kind, r.pool.QueryRow(ctx, query, identifier))
}

// FindByIdentifier resolves a login identifier across kinds in the fixed
// precedence order (user, team admin, team member); first match wins.
// Operators never resolve here.
func (r *IdentityRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.Identity, error) {
	for _, kind := range models.LoginPrecedence {
		identity, err := r.getByIdentifier(ctx, kind, identifier)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		return identity, nil
	}
	return nil, models.ErrNotFound
}

// DeliveryAddress resolves where a login code for this identity is sent.
// Team members have no recovery channel of their own; their code goes to the
// supervising team admin's address.
func (r *IdentityRepository) DeliveryAddress(ctx context.Context, identity *models.Identity) (string, error) {
	if identity.Kind != models.KindTeamMember {
		return identity.Identifier, nil
	}

	if identity.AdminID == nil {
		return "", models.ErrNotFound
	}

	admin, err := r.GetByKindID(ctx, models.KindTeamAdmin, *identity.AdminID)
	if err != nil {
		return "", err
	}
	return admin.Identifier, nil
}

// CreateUser inserts a primary user. Used by self-registration and by
// reseller provisioning (the latter with the forced password change flag).
func (r *IdentityRepository) CreateUser(ctx context.Context, email, passwordHash string, requiresPasswordChange bool) (*models.Identity, error) {
	now := time.Now()
	query := `
		INSERT INTO users (id, email, password_hash, requires_password_change, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, email, password_hash, current_session_id, requires_password_change, FALSE, NULL::TEXT, created_at, updated_at
	`

	return scanIdentityRow(models.KindUser,
		r.pool.QueryRow(ctx, query, uuid.New().String(), email, passwordHash, requiresPasswordChange, now))
}

// RotateSession installs a fresh session marker for the identity and returns
// it. The single-row UPDATE is the commit point that invalidates every token
// carrying the previous marker.
func (r *IdentityRepository) RotateSession(ctx context.Context, kind models.IdentityKind, id string) (string, error) {
	table, err := tableFor(kind)
	if err != nil {
		return "", err
	}

	marker := uuid.New().String()
	query := fmt.Sprintf(`UPDATE %s SET current_session_id = $1, updated_at = NOW() WHERE id = $2`, table)

	result, err := r.pool.Exec(ctx, query, marker, id)
	if err != nil {
		return "", database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return "", models.ErrNotFound
	}

	return marker, nil
}

// RotateSessionTx is RotateSession inside a caller-held transaction, used
// when the rotation must commit together with another write.
func (r *IdentityRepository) RotateSessionTx(ctx context.Context, tx pgx.Tx, kind models.IdentityKind, id, marker string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET current_session_id = $1, updated_at = NOW() WHERE id = $2`, table)

	result, err := tx.Exec(ctx, query, marker, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// ClearSession tombstones the identity's session marker. No token ever
// embeds an empty marker, so every outstanding token dies. Idempotent.
func (r *IdentityRepository) ClearSession(ctx context.Context, kind models.IdentityKind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET current_session_id = NULL, updated_at = NOW() WHERE id = $1`, table)

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// UpdatePassword replaces the credential hash, sets the forced-change flag
// as requested, and clears the session marker, all in one row-level write so
// a password change can never leave an old session alive.
func (r *IdentityRepository) UpdatePassword(ctx context.Context, kind models.IdentityKind, id, passwordHash string, requiresChange bool) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	var query string
	switch kind {
	case models.KindTeamMember, models.KindOperator:
		// These tables carry no forced-change flag
		query = fmt.Sprintf(`UPDATE %s SET password_hash = $1, current_session_id = NULL, updated_at = NOW() WHERE id = $2`, table)
		result, execErr := r.pool.Exec(ctx, query, passwordHash, id)
		if execErr != nil {
			return database.MapPostgresError(execErr)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	default:
		query = fmt.Sprintf(`UPDATE %s SET password_hash = $1, requires_password_change = $2, current_session_id = NULL, updated_at = NOW() WHERE id = $3`, table)
		result, execErr := r.pool.Exec(ctx, query, passwordHash, requiresChange, id)
		if execErr != nil {
			return database.MapPostgresError(execErr)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	}
}

// TouchOperatorLogin records a successful operator login.
func (r *IdentityRepository) TouchOperatorLogin(ctx context.Context, id string) error {
	query := `UPDATE operators SET last_login = NOW(), updated_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// FindResettable resolves an email for password reset. Only primary users
// and team admins own a recovery channel; team members must go through
// their admin and operators are provisioned out of band.
func (r *IdentityRepository) FindResettable(ctx context.Context, email string) (*models.Identity, error) {
	for _, kind := range []models.IdentityKind{models.KindUser, models.KindTeamAdmin} {
		identity, err := r.getByIdentifier(ctx, kind, email)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		return identity, nil
	}
	return nil, models.ErrNotFound
}

// GetOperatorByEmail loads an operator for the operator login flow.
func (r *IdentityRepository) GetOperatorByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return r.getByIdentifier(ctx, models.KindOperator, email)
}

// CreateOperator inserts a platform operator. Operators are bootstrapped
// from the environment at startup, not through the API.
func (r *IdentityRepository) CreateOperator(ctx context.Context, email, passwordHash, fullName string) (*models.Identity, error) {
	query := `
		INSERT INTO operators (id, email, password_hash, full_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, current_session_id, FALSE, NOT is_active, NULL::TEXT, created_at, updated_at
	`

	return scanIdentityRow(models.KindOperator,
		r.pool.QueryRow(ctx, query, uuid.New().String(), email, passwordHash, fullName))
}
