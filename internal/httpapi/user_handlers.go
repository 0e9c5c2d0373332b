package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/audit"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/ids"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/validation"
)

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		handleServiceError(w, r, "Error de validación", err)
		return
	}
	limit, err := intParam(r, "limit", 10)
	if err != nil {
		handleServiceError(w, r, "Error de validación", err)
		return
	}
	result, err := a.accounts.ListUsers(r.Context(), page, limit)
	if err != nil {
		handleServiceError(w, r, "Error al obtener los usuarios", err)
		return
	}
	respondSuccess(w, http.StatusOK, "Usuarios encontrados", result)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateUserRequest
	if err := a.validate.Decode(r.Body, &req); err != nil {
		handleServiceError(w, r, "Error de validación", err)
		return
	}
	if req.Activo != nil && !a.mayChangeStatus(r) {
		denyStatusChange(w)
		return
	}
	user, err := a.accounts.CreateUser(r.Context(), req.NewUser())
	if err != nil {
		handleServiceError(w, r, "Error al crear el usuario", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.create", zap.String("target_id", user.ID))
	w.Header().Set("Location", "/api/users/detail/"+user.ID)
	respondSuccess(w, http.StatusCreated, "Usuario creado exitosamente", user)
}

func (a *API) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	a.getUser(w, r, auth.UserQuery{ID: p.ID()})
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	a.updateUser(w, r, auth.UserQuery{ID: p.ID()})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a.getUser(w, r, auth.UserQuery{ID: id})
}

// handleSearchUser looks one account up by id, rut, email or telefono given
// as query parameters.
func (a *API) handleSearchUser(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := validation.UserQuery{
		ID:       strings.TrimSpace(values.Get("id")),
		RUT:      strings.TrimSpace(values.Get("rut")),
		Email:    strings.TrimSpace(values.Get("email")),
		Telefono: strings.TrimSpace(values.Get("telefono")),
	}
	if err := a.validate.Struct(q); err != nil {
		handleServiceError(w, r, "Error de validación", err)
		return
	}
	a.getUser(w, r, q.Query())
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a.updateUser(w, r, auth.UserQuery{ID: id})
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := a.accounts.DeleteUser(r.Context(), auth.UserQuery{ID: id})
	if err != nil {
		handleServiceError(w, r, "Error al eliminar el usuario", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.delete", zap.String("target_id", user.ID))
	respondSuccess(w, http.StatusOK, "Usuario eliminado correctamente", user)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, q auth.UserQuery) {
	user, err := a.accounts.GetUser(r.Context(), q)
	if err != nil {
		handleServiceError(w, r, "Error al obtener el usuario", err)
		return
	}
	respondSuccess(w, http.StatusOK, "Usuario encontrado", user)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, q auth.UserQuery) {
	var req validation.UpdateUserRequest
	if err := a.validate.Decode(r.Body, &req); err != nil {
		handleServiceError(w, r, "Error de validación", err)
		return
	}
	if req.Activo != nil && !a.mayChangeStatus(r) {
		denyStatusChange(w)
		return
	}
	user, err := a.accounts.UpdateUser(r.Context(), q, req.Changes())
	if err != nil {
		handleServiceError(w, r, "Error al actualizar el usuario", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.update", zap.String("target_id", user.ID))
	respondSuccess(w, http.StatusOK, "Usuario modificado correctamente", user)
}

// mayChangeStatus reports whether the caller can toggle the activo flag.
func (a *API) mayChangeStatus(r *http.Request) bool {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return false
	}
	return a.evaluator.DecideByPermission(p, []string{auth.PermUserChangeStatus}).Allowed
}

func denyStatusChange(w http.ResponseWriter) {
	respondClientError(w, http.StatusForbidden, deniedPrefix,
		"No tienes todos los permisos necesarios para esta acción. Permisos faltantes: "+auth.PermUserChangeStatus)
}

func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if !ids.Valid(id) {
		respondClientError(w, http.StatusBadRequest, "Error de validación",
			map[string]string{"id": "El id debe ser un identificador válido."})
		return "", false
	}
	return id, true
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, &validation.Error{Fields: map[string]string{name: "El parámetro " + name + " debe ser un entero positivo."}}
	}
	return n, nil
}
