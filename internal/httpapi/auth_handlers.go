package httpapi

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/audit"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/obs"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/validation"
)

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req validation.LoginRequest
	if err := a.validate.Decode(r.Body, &req); err != nil {
		obs.ObserveLogin("invalid")
		handleServiceError(w, r, "Error de validación", err)
		return
	}

	session, err := a.accounts.Login(r.Context(), req.RUT, req.Password)
	if err != nil {
		result := loginResult(err)
		obs.ObserveLogin(result)
		_ = audit.LogEvent(r.Context(), "auth.login_failed",
			zap.String("rut", req.RUT), zap.String("result", result))
		handleServiceError(w, r, "Error iniciando sesión", err)
		return
	}
	obs.ObserveLogin("success")
	_ = audit.LogEvent(r.Context(), "auth.login",
		zap.String("user_id", session.User.ID), zap.Strings("roles", session.User.RoleNames()))

	a.setSessionCookie(w, session.Token, a.accounts.TokenTTL())
	respondSuccess(w, http.StatusOK, "Inicio de sesión exitoso", loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, auth.ErrTooManyAttempts):
		return "locked"
	case errors.Is(err, auth.ErrInactive):
		return "inactive"
	case errors.Is(err, auth.ErrBadCredentials):
		return "bad_credentials"
	case errors.Is(err, auth.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req validation.RegisterRequest
	if err := a.validate.Decode(r.Body, &req); err != nil {
		handleServiceError(w, r, "Error de validación", err)
		return
	}
	user, err := a.accounts.Register(r.Context(), req.NewUser())
	if err != nil {
		handleServiceError(w, r, "Error registrando al usuario", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", zap.String("created_id", user.ID))
	respondSuccess(w, http.StatusCreated, "Usuario registrado con éxito", user)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.setSessionCookie(w, "", -1)
	respondSuccess(w, http.StatusOK, "Sesión cerrada exitosamente", nil)
}

// setSessionCookie writes the httpOnly session cookie. A negative ttl
// clears it.
func (a *API) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.settings.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	} else {
		c.MaxAge = int(ttl / time.Second)
	}
	http.SetCookie(w, c)
}
