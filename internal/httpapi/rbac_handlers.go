package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/audit"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/authz"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/obs"
)

const deniedPrefix = "Acceso denegado."

// RequireRoles lets the request through when the principal holds any of roles.
func (a *API) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return a.gate("role", func(r *http.Request, p auth.Principal) (authz.Decision, error) {
		return a.evaluator.DecideByRole(p, roles), nil
	})
}

// RequirePermissions lets the request through when the principal's roles
// grant every one of perms.
func (a *API) RequirePermissions(perms ...string) func(http.Handler) http.Handler {
	return a.gate("permission", func(r *http.Request, p auth.Principal) (authz.Decision, error) {
		return a.evaluator.DecideByPermission(p, perms), nil
	})
}

// RequireAdmin checks the account's current primary role in the store.
func (a *API) RequireAdmin() func(http.Handler) http.Handler {
	return a.gate("admin", func(r *http.Request, p auth.Principal) (authz.Decision, error) {
		return a.evaluator.DecideIsAdmin(r.Context(), p, a.accounts)
	})
}

type decideFunc func(r *http.Request, p auth.Principal) (authz.Decision, error)

func (a *API) gate(kind string, decide decideFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				respondClientError(w, http.StatusUnauthorized, "Acceso no autorizado", "Se requiere un token de acceso.")
				return
			}
			d, err := decide(r, p)
			if err != nil {
				obs.ObserveDecision(kind, "error")
				respondServerError(w, r, err)
				return
			}
			obs.ObserveDecision(kind, outcome(d))
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			_ = audit.LogEvent(r.Context(), "authz.denied",
				zap.String("kind", kind),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Strings("required", d.Required),
				zap.Strings("missing", d.Missing),
			)
			respondDenied(w, kind, d)
		})
	}
}

func outcome(d authz.Decision) string {
	switch {
	case d.Allowed:
		return "allow"
	case errors.Is(d.Err, authz.ErrPrincipalNotFound):
		return "not_found"
	case errors.Is(d.Err, authz.ErrMissingClaims):
		return "missing_claims"
	default:
		return "deny"
	}
}

func respondDenied(w http.ResponseWriter, kind string, d authz.Decision) {
	if kind == "admin" {
		if d.Status() == http.StatusNotFound {
			respondClientError(w, http.StatusNotFound, d.Reason, nil)
			return
		}
		respondClientError(w, d.Status(), "Error al acceder al recurso", d.Reason)
		return
	}
	details := strings.TrimSpace(strings.TrimPrefix(d.Reason, deniedPrefix))
	respondClientError(w, d.Status(), deniedPrefix, details)
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.accounts.ListRoles(r.Context())
	if err != nil {
		handleServiceError(w, r, "Error al obtener los roles", err)
		return
	}
	if roles == nil {
		roles = []auth.Role{}
	}
	respondSuccess(w, http.StatusOK, "Roles encontrados", roles)
}

func (a *API) handleAdminPing(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	respondSuccess(w, http.StatusOK, "Acceso de administrador verificado", map[string]any{
		"id":    p.ID(),
		"email": p.Email(),
	})
}
