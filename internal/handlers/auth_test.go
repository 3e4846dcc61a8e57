package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cardbase/authcore/internal/auth"
	"github.com/cardbase/authcore/internal/models"
	"github.com/cardbase/authcore/internal/services"
	pkghttp "github.com/cardbase/authcore/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) pkghttp.ErrorResponse {
	t.Helper()
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestInitiateLoginHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "success",
			body:       InitiateLoginRequest{Identifier: "user@example.com", Password: "secret"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid credentials",
			body:       InitiateLoginRequest{Identifier: "user@example.com", Password: "wrong"},
			serviceErr: models.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_credentials",
		},
		{
			name:       "disabled account",
			body:       InitiateLoginRequest{Identifier: "user@example.com", Password: "secret"},
			serviceErr: models.ErrAccountDisabled,
			wantStatus: http.StatusForbidden,
			wantCode:   "account_disabled",
		},
		{
			name:       "delivery failure",
			body:       InitiateLoginRequest{Identifier: "user@example.com", Password: "secret"},
			serviceErr: models.ErrDeliveryFailed,
			wantStatus: http.StatusBadGateway,
			wantCode:   "delivery_failed",
		},
		{
			name:       "missing password",
			body:       map[string]string{"identifier": "user@example.com"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockAuthService{
				InitiateLoginFunc: func(ctx context.Context, identifier, password string) (*services.InitiateLoginResponse, error) {
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &services.InitiateLoginResponse{
						PendingToken: "pending_1",
						OtpSentTo:    "u***r@example.com",
						Status:       "otp_sent",
					}, nil
				},
			}
			handler := NewAuthHandler(svc)

			rec := postJSON(t, handler.InitiateLogin, "/auth/login/initiate", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
			}
			if tt.wantStatus == http.StatusOK {
				var resp services.InitiateLoginResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "pending_1", resp.PendingToken)
				assert.Equal(t, "u***r@example.com", resp.OtpSentTo)
			}
		})
	}
}

func TestVerifyOTPHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "success",
			body:       VerifyOTPRequest{PendingToken: "pending_1", Otp: "123456"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong code",
			body:       VerifyOTPRequest{PendingToken: "pending_1", Otp: "654321"},
			serviceErr: models.ErrInvalidOtp,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_otp",
		},
		{
			name:       "expired",
			body:       VerifyOTPRequest{PendingToken: "pending_1", Otp: "123456"},
			serviceErr: models.ErrOtpExpired,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "otp_expired",
		},
		{
			name:       "locked out",
			body:       VerifyOTPRequest{PendingToken: "pending_1", Otp: "123456"},
			serviceErr: models.ErrTooManyAttempts,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "too_many_attempts",
		},
		{
			name:       "non numeric code rejected before the service",
			body:       VerifyOTPRequest{PendingToken: "pending_1", Otp: "12345a"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "short code rejected before the service",
			body:       VerifyOTPRequest{PendingToken: "pending_1", Otp: "1234"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &MockAuthService{
				VerifyOTPFunc: func(ctx context.Context, pendingToken, code string) (*services.AuthTokenResponse, error) {
					called = true
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &services.AuthTokenResponse{
						AccessToken: "token_1",
						TokenType:   "bearer",
					}, nil
				},
			}
			handler := NewAuthHandler(svc)

			rec := postJSON(t, handler.VerifyOTP, "/auth/login/verify", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusBadRequest {
				assert.False(t, called)
			}
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
			}
			if tt.wantStatus == http.StatusOK {
				var resp services.AuthTokenResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "token_1", resp.AccessToken)
				assert.Equal(t, "bearer", resp.TokenType)
			}
		})
	}
}

func TestResendOTPHandler(t *testing.T) {
	t.Run("expired pending token", func(t *testing.T) {
		svc := &MockAuthService{
			ResendOTPFunc: func(ctx context.Context, pendingToken string) (*services.InitiateLoginResponse, error) {
				return nil, models.ErrOtpExpired
			},
		}
		handler := NewAuthHandler(svc)

		rec := postJSON(t, handler.ResendOTP, "/auth/login/resend", ResendOTPRequest{PendingToken: "stale"})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "otp_expired", decodeError(t, rec).Error)
	})

	t.Run("success", func(t *testing.T) {
		svc := &MockAuthService{
			ResendOTPFunc: func(ctx context.Context, pendingToken string) (*services.InitiateLoginResponse, error) {
				return &services.InitiateLoginResponse{PendingToken: pendingToken, OtpSentTo: "u***r@example.com", Status: "otp_sent"}, nil
			},
		}
		handler := NewAuthHandler(svc)

		rec := postJSON(t, handler.ResendOTP, "/auth/login/resend", ResendOTPRequest{PendingToken: "pending_1"})

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRegisterHandler(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := &MockAuthService{
			RegisterFunc: func(ctx context.Context, email, password string) (*models.Identity, error) {
				return &models.Identity{Kind: models.KindUser, ID: "user_1", Identifier: email}, nil
			},
		}
		handler := NewAuthHandler(svc)

		rec := postJSON(t, handler.Register, "/auth/register", RegisterRequest{Email: "new@example.com", Password: "Valid-pass-123"})

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp RegisterResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "user_1", resp.ID)
	})

	t.Run("conflict", func(t *testing.T) {
		svc := &MockAuthService{
			RegisterFunc: func(ctx context.Context, email, password string) (*models.Identity, error) {
				return nil, models.ErrConflict
			},
		}
		handler := NewAuthHandler(svc)

		rec := postJSON(t, handler.Register, "/auth/register", RegisterRequest{Email: "taken@example.com", Password: "Valid-pass-123"})

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("malformed email", func(t *testing.T) {
		handler := NewAuthHandler(&MockAuthService{})

		rec := postJSON(t, handler.Register, "/auth/register", RegisterRequest{Email: "not-an-email", Password: "Valid-pass-123"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLogoutHandler(t *testing.T) {
	t.Run("clears session", func(t *testing.T) {
		var seenToken string
		svc := &MockAuthService{
			LogoutFunc: func(ctx context.Context, token string) error {
				seenToken = token
				return nil
			},
		}
		handler := NewAuthHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", strings.NewReader(""))
		req.Header.Set("Authorization", "Bearer some.jwt.token")
		rec := httptest.NewRecorder()
		handler.Logout(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "some.jwt.token", seenToken)
	})

	t.Run("missing header", func(t *testing.T) {
		handler := NewAuthHandler(&MockAuthService{})

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", strings.NewReader(""))
		rec := httptest.NewRecorder()
		handler.Logout(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "token_invalid", decodeError(t, rec).Error)
	})

	t.Run("garbage token", func(t *testing.T) {
		svc := &MockAuthService{
			LogoutFunc: func(ctx context.Context, token string) error {
				return models.ErrTokenInvalid
			},
		}
		handler := NewAuthHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", strings.NewReader(""))
		req.Header.Set("Authorization", "Bearer junk")
		rec := httptest.NewRecorder()
		handler.Logout(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestChangePasswordHandler(t *testing.T) {
	identity := &models.Identity{Kind: models.KindUser, ID: "user_1", Identifier: "user@example.com"}

	withIdentity := func(req *http.Request) *http.Request {
		ctx := context.WithValue(req.Context(), auth.IdentityContextKey, identity)
		return req.WithContext(ctx)
	}

	t.Run("success", func(t *testing.T) {
		svc := &MockAuthService{
			ChangePasswordFunc: func(ctx context.Context, id *models.Identity, current, newPassword string) error {
				assert.Equal(t, "user_1", id.ID)
				assert.Equal(t, "Old-pass-123", current)
				assert.Equal(t, "New-pass-456", newPassword)
				return nil
			},
		}
		handler := NewAuthHandler(svc)

		payload, _ := json.Marshal(ChangePasswordRequest{CurrentPassword: "Old-pass-123", NewPassword: "New-pass-456"})
		req := withIdentity(httptest.NewRequest(http.MethodPost, "/auth/change-password", bytes.NewReader(payload)))
		rec := httptest.NewRecorder()
		handler.ChangePassword(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong current password", func(t *testing.T) {
		svc := &MockAuthService{
			ChangePasswordFunc: func(ctx context.Context, id *models.Identity, current, newPassword string) error {
				return models.ErrInvalidCredentials
			},
		}
		handler := NewAuthHandler(svc)

		payload, _ := json.Marshal(ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "New-pass-456"})
		req := withIdentity(httptest.NewRequest(http.MethodPost, "/auth/change-password", bytes.NewReader(payload)))
		rec := httptest.NewRecorder()
		handler.ChangePassword(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_credentials", decodeError(t, rec).Error)
	})

	t.Run("no identity in context", func(t *testing.T) {
		handler := NewAuthHandler(&MockAuthService{})

		payload, _ := json.Marshal(ChangePasswordRequest{CurrentPassword: "a", NewPassword: "b"})
		req := httptest.NewRequest(http.MethodPost, "/auth/change-password", bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		handler.ChangePassword(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequestPasswordResetHandler(t *testing.T) {
	handler := NewAuthHandler(&MockAuthService{})

	rec := postJSON(t, handler.RequestPasswordReset, "/auth/password/reset", PasswordResetRequest{Email: "anyone@example.com"})

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestOperatorLoginHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &MockAuthService{
			OperatorLoginFunc: func(ctx context.Context, email, password string) (*services.AuthTokenResponse, error) {
				return &services.AuthTokenResponse{AccessToken: "op_token", TokenType: "bearer"}, nil
			},
		}
		handler := NewAuthHandler(svc)

		rec := postJSON(t, handler.OperatorLogin, "/auth/operator/login", OperatorLoginRequest{Email: "ops@example.com", Password: "secret"})

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		handler := NewAuthHandler(&MockAuthService{})

		rec := postJSON(t, handler.OperatorLogin, "/auth/operator/login", OperatorLoginRequest{Email: "ops@example.com", Password: "wrong"})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_credentials", decodeError(t, rec).Error)
	})
}
