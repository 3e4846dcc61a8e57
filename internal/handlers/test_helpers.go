package handlers

import (
	"context"

	"github.com/cardbase/authcore/internal/models"
	"github.com/cardbase/authcore/internal/services"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	InitiateLoginFunc        func(ctx context.Context, identifier, password string) (*services.InitiateLoginResponse, error)
	VerifyOTPFunc            func(ctx context.Context, pendingToken, code string) (*services.AuthTokenResponse, error)
	ResendOTPFunc            func(ctx context.Context, pendingToken string) (*services.InitiateLoginResponse, error)
	OperatorLoginFunc        func(ctx context.Context, email, password string) (*services.AuthTokenResponse, error)
	LogoutFunc               func(ctx context.Context, token string) error
	ChangePasswordFunc       func(ctx context.Context, identity *models.Identity, currentPassword, newPassword string) error
	RequestPasswordResetFunc func(ctx context.Context, email string) error
	RegisterFunc             func(ctx context.Context, email, password string) (*models.Identity, error)
}

func (m *MockAuthService) InitiateLogin(ctx context.Context, identifier, password string) (*services.InitiateLoginResponse, error) {
	if m.InitiateLoginFunc != nil {
		return m.InitiateLoginFunc(ctx, identifier, password)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) VerifyOTP(ctx context.Context, pendingToken, code string) (*services.AuthTokenResponse, error) {
	if m.VerifyOTPFunc != nil {
		return m.VerifyOTPFunc(ctx, pendingToken, code)
	}
	return nil, models.ErrOtpExpired
}

func (m *MockAuthService) ResendOTP(ctx context.Context, pendingToken string) (*services.InitiateLoginResponse, error) {
	if m.ResendOTPFunc != nil {
		return m.ResendOTPFunc(ctx, pendingToken)
	}
	return nil, models.ErrOtpExpired
}

func (m *MockAuthService) OperatorLogin(ctx context.Context, email, password string) (*services.AuthTokenResponse, error) {
	if m.OperatorLoginFunc != nil {
		return m.OperatorLoginFunc(ctx, email, password)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) Logout(ctx context.Context, token string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return nil
}

func (m *MockAuthService) ChangePassword(ctx context.Context, identity *models.Identity, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, identity, currentPassword, newPassword)
	}
	return nil
}

func (m *MockAuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if m.RequestPasswordResetFunc != nil {
		return m.RequestPasswordResetFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) Register(ctx context.Context, email, password string) (*models.Identity, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password)
	}
	return nil, models.ErrInternalServer
}

// MockProvisionService implements ProvisionServiceInterface for testing
type MockProvisionService struct {
	ProvisionAccountFunc func(ctx context.Context, email string) (*models.Identity, error)
}

func (m *MockProvisionService) ProvisionAccount(ctx context.Context, email string) (*models.Identity, error) {
	if m.ProvisionAccountFunc != nil {
		return m.ProvisionAccountFunc(ctx, email)
	}
	return nil, models.ErrInternalServer
}

// MockResellerChecker implements auth.ResellerChecker for testing
type MockResellerChecker struct {
	HasActiveRoleFunc func(ctx context.Context, kind models.IdentityKind, id string) (bool, error)
}

func (m *MockResellerChecker) HasActiveRole(ctx context.Context, kind models.IdentityKind, id string) (bool, error) {
	if m.HasActiveRoleFunc != nil {
		return m.HasActiveRoleFunc(ctx, kind, id)
	}
	return false, nil
}
