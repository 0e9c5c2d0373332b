package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/bootstrap"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/store/memory"
)

const (
	adminRUT      = "1.234.567-4"
	supervisorRUT = "12.345.678-5"
	inactiveRUT   = "18.765.432-7"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	store   *memory.Store
	t       *testing.T
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	fixture, err := bootstrap.DefaultFixture()
	require.NoError(t, err)
	_, err = bootstrap.NewSeeder(store, bootstrap.WithPasswordHasher(hasher)).Seed(ctx, fixture)
	require.NoError(t, err)

	tokens, err := auth.NewTokens("httpapi-test-secret")
	require.NoError(t, err)
	svc, err := auth.NewService(store, tokens, auth.WithPasswordHasher(hasher))
	require.NoError(t, err)

	api := New(svc, ReadyProbe{}, Settings{Version: "test", LoginPerMinute: 100})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{baseURL: srv.URL, client: srv.Client(), store: store, t: t}
}

func (c *apiClient) do(method, path string, body any, token string) (*http.Response, envelope) {
	c.t.Helper()
	var payload io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		payload = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(c.t, err)
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.baseURL+path, payload)
	require.NoError(c.t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(raw) > 0 {
		require.NoError(c.t, json.Unmarshal(raw, &env), "body: %s", raw)
	}
	return resp, env
}

func (c *apiClient) login(rut string) string {
	c.t.Helper()
	resp, env := c.do(http.MethodPost, "/api/auth/login",
		map[string]string{"rut": rut, "password": bootstrap.DefaultPassword}, "")
	require.Equal(c.t, http.StatusOK, resp.StatusCode, "login %s: %s", rut, env.Details)
	var data loginResponse
	require.NoError(c.t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(c.t, data.Token)
	return data.Token
}

// registerUser creates an account that only holds the Usuario role.
func (c *apiClient) registerUser() (auth.User, string) {
	c.t.Helper()
	resp, env := c.do(http.MethodPost, "/api/auth/register", map[string]any{
		"nombres":   []string{"María"},
		"apellidos": []string{"Soto"},
		"rut":       "11.111.111-1",
		"email":     "maria.soto@gmail.com",
		"password":  "Secreta123",
	}, "")
	require.Equal(c.t, http.StatusCreated, resp.StatusCode, "register: %s", env.Details)
	var user auth.User
	require.NoError(c.t, json.Unmarshal(env.Data, &user))

	resp, env = c.do(http.MethodPost, "/api/auth/login",
		map[string]string{"rut": "11111111-1", "password": "Secreta123"}, "")
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	var data loginResponse
	require.NoError(c.t, json.Unmarshal(env.Data, &data))
	return user, data.Token
}

func detailString(t *testing.T, env envelope) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(env.Details, &s), "details: %s", env.Details)
	return s
}

type failingProbe struct{}

func (failingProbe) Ping(context.Context) error { return errors.New("db down") }

func TestHealthAndReadiness(t *testing.T) {
	c := newTestAPI(t)
	resp, _ := c.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	resp, env := c.do(http.MethodGet, "/api/info", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, statusSuccess, env.Status)

	api := New(nil, ReadyProbe{DB: failingProbe{}}, Settings{})
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestUnknownRoute(t *testing.T) {
	c := newTestAPI(t)
	resp, env := c.do(http.MethodGet, "/api/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, statusClientError, env.Status)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	c := newTestAPI(t)
	resp, env := c.do(http.MethodPost, "/api/auth/login",
		map[string]string{"rut": supervisorRUT, "password": bootstrap.DefaultPassword}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Inicio de sesión exitoso", env.Message)

	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, 24*60*60, cookie.MaxAge)

	// The cookie alone authenticates.
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/users/detail", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: cookie.Value})
	profile, err := c.client.Do(req)
	require.NoError(t, err)
	defer profile.Body.Close()
	var got envelope
	require.NoError(t, json.NewDecoder(profile.Body).Decode(&got))
	require.Equal(t, http.StatusOK, profile.StatusCode)
	var user auth.User
	require.NoError(t, json.Unmarshal(got.Data, &user))
	assert.Equal(t, "editor.juan@example.com", user.Email)

	resp, _ = c.do(http.MethodPost, "/api/auth/logout", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie {
			assert.Empty(t, ck.Value)
			assert.Less(t, ck.MaxAge, 0)
		}
	}
}

func TestLoginFailures(t *testing.T) {
	c := newTestAPI(t)

	resp, env := c.do(http.MethodPost, "/api/auth/login",
		map[string]string{"rut": supervisorRUT, "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Error iniciando sesión", env.Message)
	var detail fieldDetail
	require.NoError(t, json.Unmarshal(env.Details, &detail))
	assert.Equal(t, "password", detail.DataInfo)

	resp, env = c.do(http.MethodPost, "/api/auth/login",
		map[string]string{"rut": inactiveRUT, "password": bootstrap.DefaultPassword}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Details, &detail))
	assert.Equal(t, "estado", detail.DataInfo)

	resp, env = c.do(http.MethodPost, "/api/auth/login",
		map[string]string{"rut": "12.345.678-9", "password": bootstrap.DefaultPassword}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(env.Details, &fields))
	assert.Contains(t, fields, "rut")

	resp, _ = c.do(http.MethodPost, "/api/auth/login",
		`{"rut":"12.345.678-5","password":"user1234","extra":true}`, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegisterConflict(t *testing.T) {
	c := newTestAPI(t)
	c.registerUser()

	resp, env := c.do(http.MethodPost, "/api/auth/register", map[string]any{
		"nombres":   []string{"Otra"},
		"apellidos": []string{"Persona"},
		"rut":       "11.111.111-1",
		"email":     "otra.persona@gmail.com",
		"password":  "Secreta123",
	}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, statusClientError, env.Status)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	c := newTestAPI(t)
	resp, env := c.do(http.MethodGet, "/api/users", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))
	assert.Equal(t, "Acceso no autorizado", env.Message)

	resp, _ = c.do(http.MethodGet, "/api/users", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPermissionGates(t *testing.T) {
	c := newTestAPI(t)
	supervisor := c.login(supervisorRUT)
	admin := c.login(adminRUT)

	resp, env := c.do(http.MethodGet, "/api/users?page=1&limit=2", nil, supervisor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page auth.UserPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Users, 2)

	target, err := c.store.FindUser(context.Background(), auth.UserQuery{RUT: "18765432-7"})
	require.NoError(t, err)

	resp, env = c.do(http.MethodGet, "/api/users/detail/"+target.ID, nil, supervisor)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Acceso denegado.", env.Message)
	assert.Contains(t, detailString(t, env), auth.PermUserReadSpecific)

	resp, env = c.do(http.MethodGet, "/api/users/detail/"+target.ID, nil, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var user auth.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "ana.lopez@example.com", user.Email)

	resp, _ = c.do(http.MethodGet, "/api/users/detail/not-an-id", nil, admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, env = c.do(http.MethodGet, "/api/users/search?rut=18.765.432-7", nil, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, target.ID, user.ID)

	resp, _ = c.do(http.MethodGet, "/api/users/search", nil, admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/api/users/page-that-does-not-exist", nil, admin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoleGate(t *testing.T) {
	c := newTestAPI(t)
	supervisor := c.login(supervisorRUT)
	_, usuario := c.registerUser()

	resp, env := c.do(http.MethodGet, "/api/roles", nil, supervisor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var roles []auth.Role
	require.NoError(t, json.Unmarshal(env.Data, &roles))
	assert.Len(t, roles, 3)

	resp, env = c.do(http.MethodGet, "/api/roles", nil, usuario)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, detailString(t, env), "Roles requeridos: Administrador, Supervisor")
}

func TestAdminGateReadsStore(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login(adminRUT)
	supervisor := c.login(supervisorRUT)
	user, usuario := c.registerUser()

	resp, _ := c.do(http.MethodGet, "/api/admin/ping", nil, admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := c.do(http.MethodGet, "/api/admin/ping", nil, supervisor)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Error al acceder al recurso", env.Message)

	resp, _ = c.do(http.MethodDelete, "/api/users/detail/"+user.ID, nil, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The token is still valid but the account is gone.
	resp, env = c.do(http.MethodGet, "/api/admin/ping", nil, usuario)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Usuario no encontrado en la base de datos", env.Message)
}

func TestDeleteProtectsAdministrators(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login(adminRUT)
	target, err := c.store.FindUser(context.Background(), auth.UserQuery{RUT: "1234567-4"})
	require.NoError(t, err)

	resp, env := c.do(http.MethodDelete, "/api/users/detail/"+target.ID, nil, admin)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, detailString(t, env), "administrador")
}

func TestProfileUpdate(t *testing.T) {
	c := newTestAPI(t)
	_, usuario := c.registerUser()

	resp, env := c.do(http.MethodPatch, "/api/users/detail", map[string]any{"telefono": "+56 9 1234 5678"}, usuario)
	require.Equal(t, http.StatusOK, resp.StatusCode, "details: %s", env.Details)
	var user auth.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "+56 9 1234 5678", user.Telefono)

	resp, env = c.do(http.MethodPatch, "/api/users/detail", map[string]any{"activo": false}, usuario)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, detailString(t, env), auth.PermUserChangeStatus)

	resp, _ = c.do(http.MethodPatch, "/api/users/detail", map[string]any{"newPassword": "Nueva1234"}, usuario)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = c.do(http.MethodPatch, "/api/users/detail",
		map[string]any{"password": "Secreta123", "newPassword": "Nueva1234"}, usuario)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminCreatesUser(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login(adminRUT)

	resp, env := c.do(http.MethodPost, "/api/users", map[string]any{
		"nombres":   []string{"Pedro"},
		"apellidos": []string{"Rojas"},
		"rut":       "22.222.222-2",
		"email":     "pedro.rojas@example.cl",
		"password":  "Clave1234",
		"activo":    false,
	}, admin)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "details: %s", env.Details)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/api/users/detail/"))
	var user auth.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.False(t, user.Activo)
	assert.Equal(t, []string{auth.RoleUsuario}, user.RoleNames())
}
