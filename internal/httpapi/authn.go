package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
	// sessionCookie carries the access token for browser clients.
	sessionCookie = "jwt"
)

var (
	errMissingToken  = errors.New("missing bearer token")
	errInvalidScheme = errors.New("invalid authorization scheme")
)

// Authenticate resolves the access token from the Authorization header or
// the session cookie and stores the principal in the request context.
func (a *API) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := requestToken(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			respondClientError(w, http.StatusUnauthorized, "Acceso no autorizado", "Se requiere un token de acceso.")
			return
		}

		principal, err := a.accounts.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				respondClientError(w, http.StatusUnauthorized, "Acceso no autorizado", "El token de acceso es inválido o ha expirado.")
				return
			}
			respondServerError(w, r, err)
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		ctx = obs.ToContext(ctx, obs.From(ctx).With(zap.String("user_id", principal.ID())))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestToken(r *http.Request) (string, error) {
	if header := r.Header.Get(authHeader); strings.TrimSpace(header) != "" {
		return extractBearerToken(header)
	}
	if c, err := r.Cookie(sessionCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value), nil
	}
	return "", errMissingToken
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errInvalidScheme
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}
