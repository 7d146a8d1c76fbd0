package httpapi

import (
	"net/http"
	"time"

	"rolodex.dev/internal/audit"
	"rolodex.dev/internal/auth"
	"rolodex.dev/internal/obs"
)

type registerRequest struct {
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	PhoneNumber string `json:"phoneNumber" validate:"omitempty,phone"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	FirstName   string `json:"firstName" validate:"max=100"`
	LastName    string `json:"lastName" validate:"max=100"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	TokenType string     `json:"tokenType"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      *auth.User `json:"user"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !a.bind(w, r, &req) {
		return
	}
	u, err := a.accounts.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.audit(r, audit.EventUserRegistered, map[string]any{"user_id": u.ID})
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "user registered",
		"userId":  u.ID,
	})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !a.bind(w, r, &req) {
		return
	}
	cred, u, err := a.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if auth.KindOf(err) == auth.KindInvalidCredentials {
			a.audit(r, audit.EventLoginFailed, nil)
		}
		writeDomainError(w, r, err)
		return
	}
	a.audit(r, audit.EventUserLoggedIn, map[string]any{
		"user_id":    u.ID,
		"expires_at": cred.ExpiresAt.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     cred.Token,
		TokenType: "Bearer",
		ExpiresAt: cred.ExpiresAt,
		User:      u,
	})
}

// audit records a security event. Failures to log never fail the request.
func (a *API) audit(r *http.Request, event string, fields map[string]any) {
	if err := audit.LogEvent(r.Context(), event, fields); err != nil {
		obs.Logger().Warn().Err(err).Str("event", event).Msg("audit_log_failed")
	}
}
