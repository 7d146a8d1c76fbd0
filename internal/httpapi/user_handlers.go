package httpapi

import (
	"net/http"

	"rolodex.dev/internal/audit"
	"rolodex.dev/internal/auth"
)

type profileRequest struct {
	Email       *string `json:"email" validate:"omitempty,max=254"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,max=32"`
	FirstName   *string `json:"firstName" validate:"omitempty,max=100"`
	LastName    *string `json:"lastName" validate:"omitempty,max=100"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=72"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	u, err := a.accounts.CurrentUser(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !a.bind(w, r, &req) {
		return
	}
	// an empty string clears the field, so shape checks skip it
	if req.Email != nil && *req.Email != "" {
		if err := a.validate.Var(*req.Email, "email"); err != nil {
			writeError(w, r, http.StatusBadRequest, "email is not a valid address")
			return
		}
	}
	if req.PhoneNumber != nil && *req.PhoneNumber != "" {
		if err := a.validate.Var(*req.PhoneNumber, "phone"); err != nil {
			writeError(w, r, http.StatusBadRequest, "phone number is not valid")
			return
		}
	}
	u, err := a.accounts.UpdateProfile(r.Context(), auth.ProfileUpdate{
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.audit(r, audit.EventProfileUpdated, nil)
	writeJSON(w, http.StatusOK, u)
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !a.bind(w, r, &req) {
		return
	}
	if err := a.accounts.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.audit(r, audit.EventPasswordChanged, nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "password changed"})
}

func (a *API) deleteAccount(w http.ResponseWriter, r *http.Request) {
	p, err := auth.CurrentPrincipal(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := a.accounts.DeleteAccount(r.Context()); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.audit(r, audit.EventAccountDeleted, map[string]any{"user_id": p.UserID})
	writeJSON(w, http.StatusOK, map[string]any{"message": "account deleted"})
}
