package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/cardbase/authcore/internal/database"
	"github.com/cardbase/authcore/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OTPRepository is the ledger of pending login attempts. It holds the whole
// DB handle rather than just the pool because consuming an attempt and
// rotating the winner's session marker must commit in one transaction, and
// the marker lives in the identity tables.
type OTPRepository struct {
	db         *database.DB
	identities *IdentityRepository
}

func NewOTPRepository(db *database.DB, identities *IdentityRepository) *OTPRepository {
	return &OTPRepository{db: db, identities: identities}
}

const otpColumns = `id, identity_kind, identity_id, identifier, code, pending_token, attempts, consumed, created_at, expires_at`

func scanOtpRow(scanner rowScanner) (*models.PendingLoginAttempt, error) {
	var attempt models.PendingLoginAttempt

	err := scanner.Scan(
		&attempt.ID, &attempt.IdentityKind, &attempt.IdentityID,
		&attempt.Identifier, &attempt.Code, &attempt.PendingToken,
		&attempt.Attempts, &attempt.Consumed, &attempt.CreatedAt, &attempt.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &attempt, nil
}

// Create records a new pending login attempt. Any prior live attempt for the
// same identity is superseded in the same transaction, so only the newest
// pending token per identity stays verifiable.
func (r *OTPRepository) Create(ctx context.Context, kind models.IdentityKind, identityID, identifier, code string, ttl time.Duration) (*models.PendingLoginAttempt, error) {
	now := time.Now()
	attempt := &models.PendingLoginAttempt{
		ID:           uuid.New().String(),
		IdentityKind: kind,
		IdentityID:   identityID,
		Identifier:   identifier,
		Code:         code,
		PendingToken: uuid.New().String(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		supersede := `
			UPDATE login_otps SET consumed = TRUE
			WHERE identity_kind = $1 AND identity_id = $2 AND NOT consumed
		`
		if _, err := tx.Exec(ctx, supersede, kind, identityID); err != nil {
			return database.MapPostgresError(err)
		}

		insert := `
			INSERT INTO login_otps (id, identity_kind, identity_id, identifier, code, pending_token, attempts, consumed, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, 0, FALSE, $7, $8)
		`
		_, err := tx.Exec(ctx, insert,
			attempt.ID, attempt.IdentityKind, attempt.IdentityID, attempt.Identifier,
			attempt.Code, attempt.PendingToken, attempt.CreatedAt, attempt.ExpiresAt,
		)
		return database.MapPostgresError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pending login attempt: %w", err)
	}

	return attempt, nil
}

// GetByPendingToken loads an attempt regardless of its state. Callers use it
// to classify why RegisterAttempt refused a row.
func (r *OTPRepository) GetByPendingToken(ctx context.Context, pendingToken string) (*models.PendingLoginAttempt, error) {
	query := `SELECT ` + otpColumns + ` FROM login_otps WHERE pending_token = $1`
	return scanOtpRow(r.db.Pool.QueryRow(ctx, query, pendingToken))
}

// RegisterAttempt atomically counts one verification try against the
// attempt and returns the post-increment row. The attempts < cap predicate
// makes the increment-and-check race-free: of two concurrent calls seeing
// attempts = cap-1, exactly one gets the row. ErrNotFound means the attempt
// is missing, consumed, expired, or already at the cap; classification is
// the caller's job.
func (r *OTPRepository) RegisterAttempt(ctx context.Context, pendingToken string, maxAttempts int) (*models.PendingLoginAttempt, error) {
	query := `
		UPDATE login_otps SET attempts = attempts + 1
		WHERE pending_token = $1 AND NOT consumed AND expires_at > NOW() AND attempts < $2
		RETURNING ` + otpColumns

	return scanOtpRow(r.db.Pool.QueryRow(ctx, query, pendingToken, maxAttempts))
}

// ConsumeAndRotateSession marks the attempt consumed and installs the new
// session marker for its identity in a single transaction. A crash cannot
// leave a consumed attempt without the session it paid for, nor a rotated
// session whose attempt could be replayed.
func (r *OTPRepository) ConsumeAndRotateSession(ctx context.Context, attempt *models.PendingLoginAttempt) (string, error) {
	marker := uuid.New().String()

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		consume := `UPDATE login_otps SET consumed = TRUE WHERE id = $1 AND NOT consumed`
		result, err := tx.Exec(ctx, consume, attempt.ID)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrOtpExpired
		}

		return r.identities.RotateSessionTx(ctx, tx, attempt.IdentityKind, attempt.IdentityID, marker)
	})
	if err != nil {
		return "", err
	}

	return marker, nil
}

// Consume burns an attempt without rotating any session. Used when a
// correct code cannot be honored, so the code stays dead afterwards.
func (r *OTPRepository) Consume(ctx context.Context, attemptID string) error {
	query := `UPDATE login_otps SET consumed = TRUE WHERE id = $1`

	if _, err := r.db.Pool.Exec(ctx, query, attemptID); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// Reset rearms a live attempt with a fresh code and TTL and zeroes the
// attempts counter. Consumed attempts stay dead.
func (r *OTPRepository) Reset(ctx context.Context, pendingToken, code string, ttl time.Duration) (*models.PendingLoginAttempt, error) {
	query := `
		UPDATE login_otps
		SET code = $2, attempts = 0, created_at = NOW(), expires_at = NOW() + ($3 * INTERVAL '1 second')
		WHERE pending_token = $1 AND NOT consumed
		RETURNING ` + otpColumns

	return scanOtpRow(r.db.Pool.QueryRow(ctx, query, pendingToken, code, int64(ttl.Seconds())))
}

// DeleteExpired prunes attempts long past any possible use. Live expiry is
// already enforced at verify time; this just keeps the table small.
func (r *OTPRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_otps WHERE expires_at < NOW() - INTERVAL '24 hours'`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prune expired login attempts: %w", err)
	}

	return result.RowsAffected(), nil
}
