package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cardbase/authcore/internal/auth"
	"github.com/cardbase/authcore/internal/models"
	"github.com/cardbase/authcore/internal/services"
	pkgauth "github.com/cardbase/authcore/pkg/auth"
	pkghttp "github.com/cardbase/authcore/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	InitiateLogin(ctx context.Context, identifier, password string) (*services.InitiateLoginResponse, error)
	VerifyOTP(ctx context.Context, pendingToken, code string) (*services.AuthTokenResponse, error)
	ResendOTP(ctx context.Context, pendingToken string) (*services.InitiateLoginResponse, error)
	OperatorLogin(ctx context.Context, email, password string) (*services.AuthTokenResponse, error)
	Logout(ctx context.Context, token string) error
	ChangePassword(ctx context.Context, identity *models.Identity, currentPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	Register(ctx context.Context, email, password string) (*models.Identity, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{
		service: service,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// InitiateLoginRequest represents the request body for step one of login
type InitiateLoginRequest struct {
	Identifier string `json:"identifier" validate:"required,min=1,max=254"`
	Password   string `json:"password" validate:"required"`
}

// VerifyOTPRequest represents the request body for step two of login
type VerifyOTPRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
	Otp          string `json:"otp" validate:"required,len=6,numeric"`
}

// ResendOTPRequest represents the request body for redelivering a login code
type ResendOTPRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
}

// OperatorLoginRequest represents the request body for operator login
type OperatorLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PasswordResetRequest represents the request body for requesting a reset
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ChangePasswordRequest represents the request body for changing a password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// RegisterResponse is returned on successful registration
type RegisterResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	identity, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		var validationErr *pkgauth.PasswordValidationError
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Email is already registered")
		case errors.As(err, &validationErr):
			pkghttp.WriteBadRequest(w, validationErr.Error())
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid registration request")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		ID:    identity.ID,
		Email: identity.Identifier,
	})
}

// InitiateLogin handles step one of login: credential check plus code dispatch
func (h *AuthHandler) InitiateLogin(w http.ResponseWriter, r *http.Request) {
	var req InitiateLoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.InitiateLogin(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeLoginError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// VerifyOTP handles step two of login: code check plus token issue
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.VerifyOTP(r.Context(), req.PendingToken, req.Otp)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidOtp):
			pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_otp", "Incorrect verification code")
		case errors.Is(err, models.ErrOtpExpired):
			pkghttp.WriteError(w, http.StatusUnauthorized, "otp_expired", "Verification code has expired, please log in again")
		case errors.Is(err, models.ErrTooManyAttempts):
			pkghttp.WriteError(w, http.StatusUnauthorized, "too_many_attempts", "Too many incorrect codes, please log in again")
		case errors.Is(err, models.ErrAccountDisabled):
			pkghttp.WriteError(w, http.StatusForbidden, "account_disabled", "Account is disabled")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ResendOTP redelivers a fresh code for a live pending login
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendOTPRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.ResendOTP(r.Context(), req.PendingToken)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrOtpExpired):
			pkghttp.WriteError(w, http.StatusUnauthorized, "otp_expired", "Login attempt is no longer valid, please log in again")
		default:
			writeLoginError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// OperatorLogin handles single-step platform operator login
func (h *AuthHandler) OperatorLogin(w http.ResponseWriter, r *http.Request) {
	var req OperatorLoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.OperatorLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		writeLoginError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout invalidates the caller's session. The token is taken straight from
// the Authorization header rather than the auth middleware, so a second
// logout with the same token still succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	if token == "" {
		pkghttp.WriteError(w, http.StatusUnauthorized, "token_invalid", "Missing bearer token")
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, models.ErrTokenInvalid):
			pkghttp.WriteError(w, http.StatusUnauthorized, "token_invalid", "Invalid token")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// ChangePassword swaps the authenticated identity's password. Every session
// dies with the old password; the client logs in again.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r)
	if identity == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ChangePassword(r.Context(), identity, req.CurrentPassword, req.NewPassword); err != nil {
		var validationErr *pkgauth.PasswordValidationError
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Current password is incorrect")
		case errors.As(err, &validationErr):
			pkghttp.WriteBadRequest(w, validationErr.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated, please log in again"})
}

// RequestPasswordReset issues a temporary password by email. The response
// does not reveal whether the address matched an account.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If the email matches an account, a temporary password has been sent.",
	})
}

// writeLoginError maps credential-stage failures to responses
func writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
	case errors.Is(err, models.ErrAccountDisabled):
		pkghttp.WriteError(w, http.StatusForbidden, "account_disabled", "Account is disabled")
	case errors.Is(err, models.ErrDeliveryFailed):
		pkghttp.WriteBadGateway(w, "delivery_failed", "Could not deliver the verification code, please try again")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
