package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cardbase/authcore/internal/auth"
	"github.com/cardbase/authcore/internal/models"
	pkghttp "github.com/cardbase/authcore/pkg/http"
)

// ProvisionServiceInterface defines the interface for reseller provisioning
type ProvisionServiceInterface interface {
	ProvisionAccount(ctx context.Context, email string) (*models.Identity, error)
}

// AccountHandler handles authenticated account endpoints
type AccountHandler struct {
	provisioner ProvisionServiceInterface
	roles       auth.ResellerChecker
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(provisioner ProvisionServiceInterface, roles auth.ResellerChecker) *AccountHandler {
	return &AccountHandler{
		provisioner: provisioner,
		roles:       roles,
	}
}

// ProfileResponse describes the authenticated identity
type ProfileResponse struct {
	ID                     string `json:"id"`
	Kind                   string `json:"kind"`
	Identifier             string `json:"identifier"`
	RequiresPasswordChange bool   `json:"requires_password_change"`
	Reseller               bool   `json:"reseller"`
}

// ProvisionAccountRequest represents the request body for reseller provisioning
type ProvisionAccountRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Me returns the profile of the token holder
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r)
	if identity == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	reseller, err := h.roles.HasActiveRole(r.Context(), identity.Kind, identity.ID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{
		ID:                     identity.ID,
		Kind:                   string(identity.Kind),
		Identifier:             identity.Identifier,
		RequiresPasswordChange: identity.RequiresPasswordChange,
		Reseller:               reseller,
	})
}

// ProvisionAccount creates a customer account on behalf of a reseller. The
// initial password is generated server side and emailed to the customer.
func (h *AccountHandler) ProvisionAccount(w http.ResponseWriter, r *http.Request) {
	var req ProvisionAccountRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	identity, err := h.provisioner.ProvisionAccount(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Email is already registered")
		case errors.Is(err, models.ErrDeliveryFailed):
			pkghttp.WriteBadGateway(w, "delivery_failed", "Account created but credentials could not be delivered")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid provisioning request")
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
