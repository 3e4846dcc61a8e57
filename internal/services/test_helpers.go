package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cardbase/authcore/internal/auth"
	"github.com/cardbase/authcore/internal/models"
	pkgauth "github.com/cardbase/authcore/pkg/auth"
	pkglogger "github.com/cardbase/authcore/pkg/logger"
	"github.com/google/uuid"
)

// MockIdentityStore implements IdentityStore for testing
type MockIdentityStore struct {
	FindByIdentifierFunc   func(ctx context.Context, identifier string) (*models.Identity, error)
	GetByKindIDFunc        func(ctx context.Context, kind models.IdentityKind, id string) (*models.Identity, error)
	DeliveryAddressFunc    func(ctx context.Context, identity *models.Identity) (string, error)
	CreateUserFunc         func(ctx context.Context, email, passwordHash string, requiresPasswordChange bool) (*models.Identity, error)
	UpdatePasswordFunc     func(ctx context.Context, kind models.IdentityKind, id, passwordHash string, requiresChange bool) error
	TouchOperatorLoginFunc func(ctx context.Context, id string) error
	FindResettableFunc     func(ctx context.Context, email string) (*models.Identity, error)
	GetOperatorByEmailFunc func(ctx context.Context, email string) (*models.Identity, error)
}

func (m *MockIdentityStore) FindByIdentifier(ctx context.Context, identifier string) (*models.Identity, error) {
	if m.FindByIdentifierFunc != nil {
		return m.FindByIdentifierFunc(ctx, identifier)
	}
	return nil, models.ErrNotFound
}

func (m *MockIdentityStore) GetByKindID(ctx context.Context, kind models.IdentityKind, id string) (*models.Identity, error) {
	if m.GetByKindIDFunc != nil {
		return m.GetByKindIDFunc(ctx, kind, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockIdentityStore) DeliveryAddress(ctx context.Context, identity *models.Identity) (string, error) {
	if m.DeliveryAddressFunc != nil {
		return m.DeliveryAddressFunc(ctx, identity)
	}
	return identity.Identifier, nil
}

func (m *MockIdentityStore) CreateUser(ctx context.Context, email, passwordHash string, requiresPasswordChange bool) (*models.Identity, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, email, passwordHash, requiresPasswordChange)
	}
	return NewTestIdentity(models.KindUser, "user_123", email, passwordHash), nil
}

func (m *MockIdentityStore) UpdatePassword(ctx context.Context, kind models.IdentityKind, id, passwordHash string, requiresChange bool) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, kind, id, passwordHash, requiresChange)
	}
	return nil
}

func (m *MockIdentityStore) TouchOperatorLogin(ctx context.Context, id string) error {
	if m.TouchOperatorLoginFunc != nil {
		return m.TouchOperatorLoginFunc(ctx, id)
	}
	return nil
}

func (m *MockIdentityStore) FindResettable(ctx context.Context, email string) (*models.Identity, error) {
	if m.FindResettableFunc != nil {
		return m.FindResettableFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockIdentityStore) GetOperatorByEmail(ctx context.Context, email string) (*models.Identity, error) {
	if m.GetOperatorByEmailFunc != nil {
		return m.GetOperatorByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

// MockOTPLedger implements OTPLedger for testing
type MockOTPLedger struct {
	CreateFunc                  func(ctx context.Context, kind models.IdentityKind, identityID, identifier, code string, ttl time.Duration) (*models.PendingLoginAttempt, error)
	GetByPendingTokenFunc       func(ctx context.Context, pendingToken string) (*models.PendingLoginAttempt, error)
	RegisterAttemptFunc         func(ctx context.Context, pendingToken string, maxAttempts int) (*models.PendingLoginAttempt, error)
	ConsumeAndRotateSessionFunc func(ctx context.Context, attempt *models.PendingLoginAttempt) (string, error)
	ConsumeFunc                 func(ctx context.Context, attemptID string) error
	ResetFunc                   func(ctx context.Context, pendingToken, code string, ttl time.Duration) (*models.PendingLoginAttempt, error)
}

func (m *MockOTPLedger) Create(ctx context.Context, kind models.IdentityKind, identityID, identifier, code string, ttl time.Duration) (*models.PendingLoginAttempt, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, kind, identityID, identifier, code, ttl)
	}
	return NewTestPendingAttempt(kind, identityID, identifier, code, ttl), nil
}

func (m *MockOTPLedger) GetByPendingToken(ctx context.Context, pendingToken string) (*models.PendingLoginAttempt, error) {
	if m.GetByPendingTokenFunc != nil {
		return m.GetByPendingTokenFunc(ctx, pendingToken)
	}
	return nil, models.ErrNotFound
}

func (m *MockOTPLedger) RegisterAttempt(ctx context.Context, pendingToken string, maxAttempts int) (*models.PendingLoginAttempt, error) {
	if m.RegisterAttemptFunc != nil {
		return m.RegisterAttemptFunc(ctx, pendingToken, maxAttempts)
	}
	return nil, models.ErrNotFound
}

func (m *MockOTPLedger) ConsumeAndRotateSession(ctx context.Context, attempt *models.PendingLoginAttempt) (string, error) {
	if m.ConsumeAndRotateSessionFunc != nil {
		return m.ConsumeAndRotateSessionFunc(ctx, attempt)
	}
	return uuid.New().String(), nil
}

func (m *MockOTPLedger) Consume(ctx context.Context, attemptID string) error {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, attemptID)
	}
	return nil
}

func (m *MockOTPLedger) Reset(ctx context.Context, pendingToken, code string, ttl time.Duration) (*models.PendingLoginAttempt, error) {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, pendingToken, code, ttl)
	}
	return nil, models.ErrNotFound
}

// MockDeliveryGateway implements DeliveryGateway for testing
type MockDeliveryGateway struct {
	SendLoginCodeFunc              func(ctx context.Context, address, code string, expiresAt time.Time) error
	SendTeamMemberLoginCodeFunc    func(ctx context.Context, adminAddress, memberName, code string, expiresAt time.Time) error
	SendPasswordResetFunc          func(ctx context.Context, address, newPassword string) error
	SendProvisionedCredentialsFunc func(ctx context.Context, address, password string) error
}

func (m *MockDeliveryGateway) SendLoginCode(ctx context.Context, address, code string, expiresAt time.Time) error {
	if m.SendLoginCodeFunc != nil {
		return m.SendLoginCodeFunc(ctx, address, code, expiresAt)
	}
	return nil
}

func (m *MockDeliveryGateway) SendTeamMemberLoginCode(ctx context.Context, adminAddress, memberName, code string, expiresAt time.Time) error {
	if m.SendTeamMemberLoginCodeFunc != nil {
		return m.SendTeamMemberLoginCodeFunc(ctx, adminAddress, memberName, code, expiresAt)
	}
	return nil
}

func (m *MockDeliveryGateway) SendPasswordReset(ctx context.Context, address, newPassword string) error {
	if m.SendPasswordResetFunc != nil {
		return m.SendPasswordResetFunc(ctx, address, newPassword)
	}
	return nil
}

func (m *MockDeliveryGateway) SendProvisionedCredentials(ctx context.Context, address, password string) error {
	if m.SendProvisionedCredentialsFunc != nil {
		return m.SendProvisionedCredentialsFunc(ctx, address, password)
	}
	return nil
}

// MockSessionStore implements SessionStore for testing
type MockSessionStore struct {
	RotateSessionFunc func(ctx context.Context, kind models.IdentityKind, id string) (string, error)
	ClearSessionFunc  func(ctx context.Context, kind models.IdentityKind, id string) error
}

func (m *MockSessionStore) RotateSession(ctx context.Context, kind models.IdentityKind, id string) (string, error) {
	if m.RotateSessionFunc != nil {
		return m.RotateSessionFunc(ctx, kind, id)
	}
	return uuid.New().String(), nil
}

func (m *MockSessionStore) ClearSession(ctx context.Context, kind models.IdentityKind, id string) error {
	if m.ClearSessionFunc != nil {
		return m.ClearSessionFunc(ctx, kind, id)
	}
	return nil
}

// NewTestIdentity creates an identity for testing
func NewTestIdentity(kind models.IdentityKind, id, identifier, passwordHash string) *models.Identity {
	now := time.Now()
	return &models.Identity{
		Kind:         kind,
		ID:           id,
		Identifier:   identifier,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestIdentityWithPassword creates an identity with a real bcrypt hash
func NewTestIdentityWithPassword(kind models.IdentityKind, id, identifier, password string) *models.Identity {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		panic(err)
	}
	return NewTestIdentity(kind, id, identifier, hash)
}

// NewTestPendingAttempt creates a live pending login attempt
func NewTestPendingAttempt(kind models.IdentityKind, identityID, identifier, code string, ttl time.Duration) *models.PendingLoginAttempt {
	now := time.Now()
	return &models.PendingLoginAttempt{
		ID:           uuid.New().String(),
		IdentityKind: kind,
		IdentityID:   identityID,
		Identifier:   identifier,
		Code:         code,
		PendingToken: uuid.New().String(),
		Attempts:     0,
		Consumed:     false,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

// newTestAuthService wires an AuthService from mocks with zero timing delay
// and discarded logs
func newTestAuthService(identities *MockIdentityStore, otps *MockOTPLedger, sessions *MockSessionStore, gateway *MockDeliveryGateway) *AuthService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthService(
		identities,
		otps,
		NewSessionRegistry(sessions),
		auth.NewTokenManager("test-secret-0123456789abcdef-0123456789abcdef", time.Hour),
		gateway,
		auth.NewTimingDelay(auth.TimingConfig{}),
		logger,
		pkglogger.NewAuditLogger(logger),
		5*time.Minute,
		8,
	)
}
