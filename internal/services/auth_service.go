package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cardbase/authcore/internal/auth"
	"github.com/cardbase/authcore/internal/models"
	pkgauth "github.com/cardbase/authcore/pkg/auth"
	pkglogger "github.com/cardbase/authcore/pkg/logger"
)

// IdentityStore is the account-store surface the orchestrator needs.
type IdentityStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.Identity, error)
	GetByKindID(ctx context.Context, kind models.IdentityKind, id string) (*models.Identity, error)
	DeliveryAddress(ctx context.Context, identity *models.Identity) (string, error)
	CreateUser(ctx context.Context, email, passwordHash string, requiresPasswordChange bool) (*models.Identity, error)
	UpdatePassword(ctx context.Context, kind models.IdentityKind, id, passwordHash string, requiresChange bool) error
	TouchOperatorLogin(ctx context.Context, id string) error
	FindResettable(ctx context.Context, email string) (*models.Identity, error)
	GetOperatorByEmail(ctx context.Context, email string) (*models.Identity, error)
}

// OTPLedger is the pending-login-attempt surface the orchestrator needs.
type OTPLedger interface {
	Create(ctx context.Context, kind models.IdentityKind, identityID, identifier, code string, ttl time.Duration) (*models.PendingLoginAttempt, error)
	GetByPendingToken(ctx context.Context, pendingToken string) (*models.PendingLoginAttempt, error)
	RegisterAttempt(ctx context.Context, pendingToken string, maxAttempts int) (*models.PendingLoginAttempt, error)
	ConsumeAndRotateSession(ctx context.Context, attempt *models.PendingLoginAttempt) (string, error)
	Consume(ctx context.Context, attemptID string) error
	Reset(ctx context.Context, pendingToken, code string, ttl time.Duration) (*models.PendingLoginAttempt, error)
}

// AuthService composes credential checks, the OTP ledger, the session
// registry, and the token issuer into the two-step login protocol plus the
// logout and password flows.
type AuthService struct {
	identities  IdentityStore
	otps        OTPLedger
	sessions    *SessionRegistry
	tm          *auth.TokenManager
	gateway     DeliveryGateway
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger

	otpTTL         time.Duration
	passwordMinLen int
}

// NewAuthService creates a new AuthService
func NewAuthService(
	identities IdentityStore,
	otps OTPLedger,
	sessions *SessionRegistry,
	tm *auth.TokenManager,
	gateway DeliveryGateway,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	otpTTL time.Duration,
	passwordMinLen int,
) *AuthService {
	return &AuthService{
		identities:     identities,
		otps:           otps,
		sessions:       sessions,
		tm:             tm,
		gateway:        gateway,
		timing:         timing,
		logger:         logger,
		auditLogger:    auditLogger,
		otpTTL:         otpTTL,
		passwordMinLen: passwordMinLen,
	}
}

// InitiateLoginResponse is step one's result: a correlation token and the
// masked destination for client display. The raw address and the code never
// leave the server.
type InitiateLoginResponse struct {
	PendingToken string `json:"pending_token"`
	OtpSentTo    string `json:"otp_sent_to"`
	Status       string `json:"status"`
}

// AuthTokenResponse is the result of a completed login.
type AuthTokenResponse struct {
	AccessToken            string `json:"access_token"`
	TokenType              string `json:"token_type"`
	RequiresPasswordChange bool   `json:"requires_password_change"`
}

// InitiateLogin verifies credentials and dispatches a login code. A missing
// identifier and a wrong password fail identically so callers cannot probe
// for accounts.
func (s *AuthService) InitiateLogin(ctx context.Context, identifier, password string) (*InitiateLoginResponse, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || password == "" {
		s.timing.Wait(false)
		return nil, models.ErrInvalidCredentials
	}

	identity, err := s.identities.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: invalid credentials")
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_initiate_failed",
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			s.timing.Wait(false)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to resolve identifier", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(identity.PasswordHash, password); err != nil {
		s.logger.Info("login failed: invalid credentials")
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_initiate_failed",
			IdentityID:    identity.ID,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		s.timing.Wait(false)
		return nil, models.ErrInvalidCredentials
	}

	if identity.IsDisabled() {
		s.logger.Info("login blocked: account disabled",
			slog.String("identity_id", identity.ID),
			slog.String("kind", string(identity.Kind)))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_initiate_failed",
			IdentityID:    identity.ID,
			FailureReason: "account_disabled",
			Success:       false,
		})
		return nil, models.ErrAccountDisabled
	}

	address, err := s.identities.DeliveryAddress(ctx, identity)
	if err != nil {
		s.logger.Error("no delivery address for identity",
			slog.String("identity_id", identity.ID),
			slog.String("kind", string(identity.Kind)),
			slog.Any("error", err))
		return nil, models.ErrDeliveryFailed
	}

	code, err := pkgauth.GenerateLoginCode()
	if err != nil {
		s.logger.Error("failed to generate login code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Creating the attempt supersedes any prior live attempt for this
	// identity; only the newest pending token stays verifiable.
	attempt, err := s.otps.Create(ctx, identity.Kind, identity.ID, identifier, code, s.otpTTL)
	if err != nil {
		s.logger.Error("failed to create pending login attempt", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if identity.Kind == models.KindTeamMember {
		err = s.gateway.SendTeamMemberLoginCode(ctx, address, identity.Identifier, code, attempt.ExpiresAt)
	} else {
		err = s.gateway.SendLoginCode(ctx, address, code, attempt.ExpiresAt)
	}
	if err != nil {
		s.logger.Error("login code delivery failed",
			slog.String("identity_id", identity.ID),
			slog.Any("error", err))
		return nil, models.ErrDeliveryFailed
	}

	s.logger.Info("login code sent",
		slog.String("identity_id", identity.ID),
		slog.String("kind", string(identity.Kind)),
		slog.String("destination", pkglogger.SanitizedEmail(address)))
	s.timing.Wait(true)

	return &InitiateLoginResponse{
		PendingToken: attempt.PendingToken,
		OtpSentTo:    MaskEmail(address),
		Status:       "otp_sent",
	}, nil
}

// VerifyOTP completes a login. The try is counted atomically before the
// code comparison, so five tries total are possible per attempt regardless
// of interleaving. On a match the attempt is consumed and the session
// marker rotated in a single transaction, then a token is minted.
func (s *AuthService) VerifyOTP(ctx context.Context, pendingToken, code string) (*AuthTokenResponse, error) {
	attempt, err := s.otps.RegisterAttempt(ctx, pendingToken, models.MaxOtpAttempts)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, s.classifyRefusedAttempt(ctx, pendingToken)
		}
		s.logger.Error("failed to register verification attempt", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if subtle.ConstantTimeCompare([]byte(attempt.Code), []byte(code)) != 1 {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "otp_verify_failed",
			IdentityID:    attempt.IdentityID,
			FailureReason: "invalid_otp",
			Success:       false,
		})
		return nil, models.ErrInvalidOtp
	}

	identity, err := s.identities.GetByKindID(ctx, attempt.IdentityKind, attempt.IdentityID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrOtpExpired
		}
		s.logger.Error("failed to load identity for verified attempt", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if identity.IsDisabled() {
		// The correct code was presented, so the attempt is burned even
		// though no session is issued; re-enabling the account does not
		// revive it.
		if err := s.otps.Consume(ctx, attempt.ID); err != nil {
			s.logger.Warn("failed to consume attempt for disabled account",
				slog.String("identity_id", identity.ID),
				slog.Any("error", err))
		}
		return nil, models.ErrAccountDisabled
	}

	marker, err := s.otps.ConsumeAndRotateSession(ctx, attempt)
	if err != nil {
		if errors.Is(err, models.ErrOtpExpired) {
			// Lost a race against another verify of the same attempt
			return nil, models.ErrOtpExpired
		}
		s.logger.Error("failed to consume attempt and rotate session", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, err := s.tm.Generate(identity.Kind, identity.ID, marker)
	if err != nil {
		s.logger.Error("failed to mint access token",
			slog.String("identity_id", identity.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("login completed",
		slog.String("identity_id", identity.ID),
		slog.String("kind", string(identity.Kind)))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:  "login_success",
		IdentityID: identity.ID,
		Success:    true,
	})

	return &AuthTokenResponse{
		AccessToken:            token,
		TokenType:              "bearer",
		RequiresPasswordChange: identity.RequiresPasswordChange,
	}, nil
}

// classifyRefusedAttempt decides which error a refused verify call gets.
// Locked-out attempts report the lockout; everything else is reported as
// expired so a replayed or probed token learns nothing.
func (s *AuthService) classifyRefusedAttempt(ctx context.Context, pendingToken string) error {
	attempt, err := s.otps.GetByPendingToken(ctx, pendingToken)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrOtpExpired
		}
		s.logger.Error("failed to classify refused attempt", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !attempt.Consumed && !attempt.IsExpired(time.Now()) && attempt.Attempts >= models.MaxOtpAttempts {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "otp_verify_failed",
			IdentityID:    attempt.IdentityID,
			FailureReason: "too_many_attempts",
			Success:       false,
		})
		return models.ErrTooManyAttempts
	}

	return models.ErrOtpExpired
}

// ResendOTP rearms a live pending attempt with a fresh code and delivers
// it. Consumed or unknown attempts are refused identically.
func (s *AuthService) ResendOTP(ctx context.Context, pendingToken string) (*InitiateLoginResponse, error) {
	attempt, err := s.otps.GetByPendingToken(ctx, pendingToken)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrOtpExpired
		}
		s.logger.Error("failed to load pending attempt for resend", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if attempt.Consumed {
		return nil, models.ErrOtpExpired
	}

	identity, err := s.identities.GetByKindID(ctx, attempt.IdentityKind, attempt.IdentityID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrOtpExpired
		}
		s.logger.Error("failed to load identity for resend", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if identity.IsDisabled() {
		return nil, models.ErrAccountDisabled
	}

	address, err := s.identities.DeliveryAddress(ctx, identity)
	if err != nil {
		return nil, models.ErrDeliveryFailed
	}

	code, err := pkgauth.GenerateLoginCode()
	if err != nil {
		s.logger.Error("failed to generate login code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	attempt, err = s.otps.Reset(ctx, pendingToken, code, s.otpTTL)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrOtpExpired
		}
		s.logger.Error("failed to rearm pending attempt", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if identity.Kind == models.KindTeamMember {
		err = s.gateway.SendTeamMemberLoginCode(ctx, address, identity.Identifier, code, attempt.ExpiresAt)
	} else {
		err = s.gateway.SendLoginCode(ctx, address, code, attempt.ExpiresAt)
	}
	if err != nil {
		s.logger.Error("login code redelivery failed", slog.Any("error", err))
		return nil, models.ErrDeliveryFailed
	}

	return &InitiateLoginResponse{
		PendingToken: attempt.PendingToken,
		OtpSentTo:    MaskEmail(address),
		Status:       "otp_sent",
	}, nil
}

// OperatorLogin authenticates a platform operator. Operators are provisioned
// out of band and log in without the OTP step; the session marker still
// rotates, so operator tokens obey single-session like everyone else's.
func (s *AuthService) OperatorLogin(ctx context.Context, email, password string) (*AuthTokenResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	operator, err := s.identities.GetOperatorByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.timing.Wait(false)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to load operator", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(operator.PasswordHash, password); err != nil {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "operator_login_failed",
			IdentityID:    operator.ID,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		s.timing.Wait(false)
		return nil, models.ErrInvalidCredentials
	}

	if operator.IsDisabled() {
		return nil, models.ErrAccountDisabled
	}

	marker, err := s.sessions.Rotate(ctx, models.KindOperator, operator.ID)
	if err != nil {
		s.logger.Error("failed to rotate operator session", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.identities.TouchOperatorLogin(ctx, operator.ID); err != nil {
		s.logger.Warn("failed to record operator login time", slog.Any("error", err))
	}

	token, err := s.tm.Generate(models.KindOperator, operator.ID, marker)
	if err != nil {
		s.logger.Error("failed to mint operator token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:  "operator_login_success",
		IdentityID: operator.ID,
		Success:    true,
	})

	return &AuthTokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	}, nil
}

// Logout tombstones the token holder's session marker. The signature and
// expiry are checked but not the session itself, so calling logout twice
// with the same token succeeds both times.
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.tm.Validate(tokenString)
	if err != nil {
		return models.ErrTokenInvalid
	}

	if err := s.sessions.Clear(ctx, claims.Kind, claims.IdentityID); err != nil {
		s.logger.Error("failed to clear session on logout",
			slog.String("identity_id", claims.IdentityID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("logged out", slog.String("identity_id", claims.IdentityID))
	return nil
}

// ChangePassword verifies the current password, applies the policy to the
// new one, and swaps the hash. The session marker is cleared in the same
// row-level write, so every session dies, including the one making this
// call; the client signs in again with the new password.
func (s *AuthService) ChangePassword(ctx context.Context, identity *models.Identity, currentPassword, newPassword string) error {
	if err := pkgauth.ComparePassword(identity.PasswordHash, currentPassword); err != nil {
		s.auditLogger.LogPasswordChange(string(identity.Kind), identity.ID, false)
		return models.ErrInvalidCredentials
	}

	if err := pkgauth.ValidatePasswordWithMinLen(newPassword, s.passwordMinLen); err != nil {
		return err
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.identities.UpdatePassword(ctx, identity.Kind, identity.ID, hash, false); err != nil {
		s.logger.Error("failed to update password",
			slog.String("identity_id", identity.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogPasswordChange(string(identity.Kind), identity.ID, true)

	return nil
}

// RequestPasswordReset issues a temporary password to a matching user or
// team admin and forces a change on next login. The response is identical
// whether or not the email matched anything.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	identity, err := s.identities.FindResettable(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to resolve reset email", slog.Any("error", err))
		return models.ErrInternalServer
	}

	newPassword, err := pkgauth.GenerateRandomPassword(12)
	if err != nil {
		s.logger.Error("failed to generate temporary password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash temporary password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	// Forced-change flag on, session cleared: the temporary password only
	// opens the door to picking a real one.
	if err := s.identities.UpdatePassword(ctx, identity.Kind, identity.ID, hash, true); err != nil {
		s.logger.Error("failed to apply password reset",
			slog.String("identity_id", identity.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.gateway.SendPasswordReset(ctx, email, newPassword); err != nil {
		// Stay silent toward the caller; the account owner can retry.
		s.logger.Error("failed to deliver reset password",
			slog.String("identity_id", identity.ID),
			slog.Any("error", err))
		return nil
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:  "password_reset_issued",
		IdentityID: identity.ID,
		Success:    true,
	})

	return nil
}

// Register creates a primary user account.
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrBadRequest
	}

	if err := pkgauth.ValidatePasswordWithMinLen(password, s.passwordMinLen); err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	identity, err := s.identities.CreateUser(ctx, email, hash, false)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Info("registration failed: email already registered")
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("user_registered", identity.ID, nil)
	return identity, nil
}

// ProvisionAccount creates a primary user on behalf of a reseller. The
// account starts with a random password and the forced-change flag set, so
// the first login walks straight into change-password.
func (s *AuthService) ProvisionAccount(ctx context.Context, email string) (*models.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrBadRequest
	}

	password, err := pkgauth.GenerateRandomPassword(12)
	if err != nil {
		s.logger.Error("failed to generate initial password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash initial password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	identity, err := s.identities.CreateUser(ctx, email, hash, true)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to provision account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.gateway.SendProvisionedCredentials(ctx, email, password); err != nil {
		s.logger.Error("failed to deliver provisioned credentials",
			slog.String("identity_id", identity.ID),
			slog.Any("error", err))
		return nil, models.ErrDeliveryFailed
	}

	s.auditLogger.LogAccountAction("account_provisioned", identity.ID, nil)
	return identity, nil
}
