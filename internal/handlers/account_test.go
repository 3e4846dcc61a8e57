package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cardbase/authcore/internal/auth"
	"github.com/cardbase/authcore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeHandler(t *testing.T) {
	t.Run("returns profile for the resolved identity", func(t *testing.T) {
		identity := &models.Identity{
			Kind:                   models.KindTeamAdmin,
			ID:                     "admin_1",
			Identifier:             "admin@example.com",
			RequiresPasswordChange: true,
		}
		handler := NewAccountHandler(&MockProvisionService{}, &MockResellerChecker{})

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req = req.WithContext(context.WithValue(req.Context(), auth.IdentityContextKey, identity))
		rec := httptest.NewRecorder()
		handler.Me(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp ProfileResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "admin_1", resp.ID)
		assert.Equal(t, "team_admin", resp.Kind)
		assert.Equal(t, "admin@example.com", resp.Identifier)
		assert.True(t, resp.RequiresPasswordChange)
		assert.False(t, resp.Reseller)
	})

	t.Run("reseller role is reported", func(t *testing.T) {
		identity := &models.Identity{Kind: models.KindUser, ID: "user_1", Identifier: "r@example.com"}
		roles := &MockResellerChecker{
			HasActiveRoleFunc: func(ctx context.Context, kind models.IdentityKind, id string) (bool, error) {
				assert.Equal(t, models.KindUser, kind)
				assert.Equal(t, "user_1", id)
				return true, nil
			},
		}
		handler := NewAccountHandler(&MockProvisionService{}, roles)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req = req.WithContext(context.WithValue(req.Context(), auth.IdentityContextKey, identity))
		rec := httptest.NewRecorder()
		handler.Me(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp ProfileResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Reseller)
	})

	t.Run("no identity in context", func(t *testing.T) {
		handler := NewAccountHandler(&MockProvisionService{}, &MockResellerChecker{})

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		rec := httptest.NewRecorder()
		handler.Me(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestProvisionAccountHandler(t *testing.T) {
	provisionRequest := func(t *testing.T, handler *AccountHandler, body any) *httptest.ResponseRecorder {
		t.Helper()
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/reseller/accounts", bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		handler.ProvisionAccount(rec, req)
		return rec
	}

	t.Run("created", func(t *testing.T) {
		svc := &MockProvisionService{
			ProvisionAccountFunc: func(ctx context.Context, email string) (*models.Identity, error) {
				return &models.Identity{Kind: models.KindUser, ID: "user_new", Identifier: email}, nil
			},
		}
		handler := NewAccountHandler(svc, &MockResellerChecker{})

		rec := provisionRequest(t, handler, ProvisionAccountRequest{Email: "customer@example.com"})

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp RegisterResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "customer@example.com", resp.Email)
	})

	t.Run("conflict", func(t *testing.T) {
		svc := &MockProvisionService{
			ProvisionAccountFunc: func(ctx context.Context, email string) (*models.Identity, error) {
				return nil, models.ErrConflict
			},
		}
		handler := NewAccountHandler(svc, &MockResellerChecker{})

		rec := provisionRequest(t, handler, ProvisionAccountRequest{Email: "taken@example.com"})

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("delivery failure", func(t *testing.T) {
		svc := &MockProvisionService{
			ProvisionAccountFunc: func(ctx context.Context, email string) (*models.Identity, error) {
				return nil, models.ErrDeliveryFailed
			},
		}
		handler := NewAccountHandler(svc, &MockResellerChecker{})

		rec := provisionRequest(t, handler, ProvisionAccountRequest{Email: "customer@example.com"})

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("malformed email", func(t *testing.T) {
		handler := NewAccountHandler(&MockProvisionService{}, &MockResellerChecker{})

		rec := provisionRequest(t, handler, ProvisionAccountRequest{Email: "nope"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
