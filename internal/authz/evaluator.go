// Package authz decides whether an authenticated principal satisfies the role
// or permission requirement declared by a protected operation.
//
// Decisions are pure functions of the principal snapshot and the requirement.
// They never return an error for malformed claims: those fail closed and are
// reported through the logger, which may be a no-op.
package authz

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
)

var (
	// ErrMissingClaims marks a principal whose roles or permissions are absent or unusable.
	ErrMissingClaims = errors.New("authz: missing claims")
	// ErrAccessDenied marks a well-formed principal that does not meet the requirement.
	ErrAccessDenied = errors.New("authz: access denied")
	// ErrPrincipalNotFound marks a principal the account store no longer knows.
	ErrPrincipalNotFound = errors.New("authz: principal not found")
)

// DefaultAdminRole is the sentinel checked by DecideIsAdmin.
const DefaultAdminRole = auth.RoleAdministrador

// Decision is the outcome of one authorization check.
type Decision struct {
	Allowed bool
	Reason  string
	// Required echoes the declared requirement, trimmed.
	Required []string
	// Missing lists the required permissions absent from the principal.
	Missing []string
	// Err classifies a deny: ErrMissingClaims, ErrAccessDenied or ErrPrincipalNotFound.
	Err error
}

// Status maps the decision onto the HTTP status the enforcement point returns.
func (d Decision) Status() int {
	switch {
	case d.Allowed:
		return http.StatusOK
	case errors.Is(d.Err, ErrPrincipalNotFound):
		return http.StatusNotFound
	default:
		return http.StatusForbidden
	}
}

// PrimaryRoleResolver looks a principal up in the account store. It returns
// auth.ErrNotFound when the principal no longer exists.
type PrimaryRoleResolver interface {
	PrimaryRole(ctx context.Context, p auth.Principal) (string, error)
}

// Evaluator holds configuration only; it is safe for concurrent use.
type Evaluator struct {
	logger    *zap.Logger
	adminRole string
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithAdminRole overrides the administrator sentinel.
func WithAdminRole(name string) Option {
	return func(e *Evaluator) {
		if name = strings.TrimSpace(name); name != "" {
			e.adminRole = name
		}
	}
}

// New returns an Evaluator. Without WithLogger diagnostics are discarded.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{logger: zap.NewNop(), adminRole: DefaultAdminRole}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DecideByRole allows when the principal holds any of the allowed roles.
func (e *Evaluator) DecideByRole(p auth.Principal, allowed []string) Decision {
	required := compact(allowed)
	if len(required) == 0 {
		e.logger.Error("authz.empty_requirement", zap.String("kind", "role"), zap.String("principal", p.ID()))
		return Decision{Err: ErrAccessDenied, Reason: "Acceso denegado. No hay roles configurados para este recurso."}
	}

	fold := cases.Fold()
	held := make(map[string]struct{})
	for i, r := range p.Roles() {
		name := strings.TrimSpace(r.Nombre)
		if name == "" {
			e.logger.Warn("authz.malformed_role",
				zap.String("principal", p.ID()), zap.Int("index", i), zap.String("problem", "blank role name"))
			continue
		}
		held[fold.String(name)] = struct{}{}
	}
	if len(held) == 0 {
		e.logger.Warn("authz.missing_claims", zap.String("kind", "role"), zap.String("principal", p.ID()))
		return Decision{
			Err:      ErrMissingClaims,
			Reason:   "Acceso denegado. Información de roles no disponible en la sesión.",
			Required: required,
		}
	}

	for _, want := range required {
		if _, ok := held[fold.String(want)]; ok {
			return Decision{Allowed: true, Required: required}
		}
	}
	e.logger.Info("authz.denied",
		zap.String("kind", "role"), zap.String("principal", p.ID()),
		zap.Strings("held", p.RoleNames()), zap.Strings("required", required))
	return Decision{
		Err:      ErrAccessDenied,
		Reason:   "No tienes los roles necesarios para acceder a este recurso. Roles requeridos: " + strings.Join(required, ", "),
		Required: required,
	}
}

// DecideByPermission allows when the union of the principal's role
// permissions contains every required permission.
func (e *Evaluator) DecideByPermission(p auth.Principal, requiredPerms []string) Decision {
	required := compact(requiredPerms)
	if len(required) == 0 {
		e.logger.Error("authz.empty_requirement", zap.String("kind", "permission"), zap.String("principal", p.ID()))
		return Decision{Err: ErrAccessDenied, Reason: "Acceso denegado. No hay permisos configurados para este recurso."}
	}
	if !p.HasRoles() {
		e.logger.Warn("authz.missing_claims", zap.String("kind", "permission"), zap.String("principal", p.ID()))
		return Decision{
			Err:      ErrMissingClaims,
			Reason:   "Acceso denegado. Información de roles o permisos no disponible en la sesión.",
			Required: required,
			Missing:  required,
		}
	}

	fold := cases.Fold()
	granted := make(map[string]struct{})
	for i, r := range p.Roles() {
		if r.Permisos == nil {
			e.logger.Warn("authz.malformed_role",
				zap.String("principal", p.ID()), zap.Int("index", i), zap.String("role", r.Nombre),
				zap.String("problem", "permission list absent"))
			continue
		}
		for _, perm := range r.Permisos {
			perm = strings.TrimSpace(perm)
			if perm == "" {
				e.logger.Warn("authz.malformed_role",
					zap.String("principal", p.ID()), zap.Int("index", i), zap.String("role", r.Nombre),
					zap.String("problem", "blank permission name"))
				continue
			}
			granted[fold.String(perm)] = struct{}{}
		}
	}

	var missing []string
	for _, want := range required {
		if _, ok := granted[fold.String(want)]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) == 0 {
		return Decision{Allowed: true, Required: required}
	}
	e.logger.Info("authz.denied",
		zap.String("kind", "permission"), zap.String("principal", p.ID()),
		zap.Strings("missing", missing))
	return Decision{
		Err:      ErrAccessDenied,
		Reason:   "No tienes todos los permisos necesarios para esta acción. Permisos faltantes: " + strings.Join(missing, ", "),
		Required: required,
		Missing:  missing,
	}
}

// DecideIsAdmin checks the principal's primary role, read live from the
// resolver, against the administrator sentinel. Only resolver failures other
// than auth.ErrNotFound are returned as errors.
func (e *Evaluator) DecideIsAdmin(ctx context.Context, p auth.Principal, resolver PrimaryRoleResolver) (Decision, error) {
	if resolver == nil {
		return Decision{}, errors.New("authz: primary role resolver is required")
	}
	required := []string{e.adminRole}
	role, err := resolver.PrimaryRole(ctx, p)
	if errors.Is(err, auth.ErrNotFound) {
		e.logger.Info("authz.principal_not_found", zap.String("principal", p.ID()), zap.String("email", p.Email()))
		return Decision{
			Err:      ErrPrincipalNotFound,
			Reason:   "Usuario no encontrado en la base de datos",
			Required: required,
		}, nil
	}
	if err != nil {
		return Decision{}, err
	}
	fold := cases.Fold()
	if fold.String(strings.TrimSpace(role)) != fold.String(e.adminRole) {
		e.logger.Info("authz.denied",
			zap.String("kind", "admin"), zap.String("principal", p.ID()), zap.String("primary_role", role))
		return Decision{
			Err:      ErrAccessDenied,
			Reason:   "Se requiere un rol de administrador para realizar esta acción.",
			Required: required,
		}, nil
	}
	return Decision{Allowed: true, Required: required}, nil
}

// compact trims entries, drops blanks and removes case-insensitive duplicates,
// keeping the first spelling.
func compact(in []string) []string {
	fold := cases.Fold()
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := fold.String(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
