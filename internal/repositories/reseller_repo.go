package repositories

import (
	"context"

	"github.com/cardbase/authcore/internal/database"
	"github.com/cardbase/authcore/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResellerRepository reads reseller role rows. Roles are attached to
// identities of any kind by out-of-band provisioning; this core only ever
// checks them.
type ResellerRepository struct {
	pool *pgxpool.Pool
}

func NewResellerRepository(db *database.DB) *ResellerRepository {
	return &ResellerRepository{pool: db.Pool}
}

// HasActiveRole reports whether the identity carries an active reseller role.
func (r *ResellerRepository) HasActiveRole(ctx context.Context, kind models.IdentityKind, id string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reseller_roles
			WHERE identity_kind = $1 AND identity_id = $2 AND is_active
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, kind, id).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}

	return exists, nil
}
