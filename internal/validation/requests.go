package validation

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	RUT      string `json:"rut" validate:"required,rut_format,rut_shape,rut_dv"`
	Password string `json:"password" validate:"required,min=8"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Nombres         []string `json:"nombres" validate:"required,min=1,dive,required,min=2,max=50,nombre"`
	Apellidos       []string `json:"apellidos" validate:"required,min=1,dive,required,min=2,max=50,nombre"`
	RUT             string   `json:"rut" validate:"required,rut_format,rut_shape,rut_dv"`
	FechaNacimiento string   `json:"fechaNacimiento,omitempty" validate:"omitempty,datetime=2006-01-02,pastdate"`
	Email           string   `json:"email" validate:"required,min=5,max=255,email,emaildomain"`
	Telefono        string   `json:"telefono,omitempty" validate:"omitempty,telefono"`
	Password        string   `json:"password" validate:"required,min=8,max=100,strongpass"`
}

// NewUser converts the request into service input. Call after Struct.
func (r RegisterRequest) NewUser() auth.NewUser {
	return auth.NewUser{
		Nombres:         r.Nombres,
		Apellidos:       r.Apellidos,
		RUT:             r.RUT,
		FechaNacimiento: parseDate(r.FechaNacimiento),
		Email:           r.Email,
		Telefono:        r.Telefono,
		Password:        r.Password,
	}
}

// CreateUserRequest is the body of POST /api/users. Unlike registration it
// lets an operator choose the initial account state.
type CreateUserRequest struct {
	RegisterRequest
	Activo *bool `json:"activo,omitempty"`
}

// NewUser converts the request into service input.
func (r CreateUserRequest) NewUser() auth.NewUser {
	u := r.RegisterRequest.NewUser()
	u.Activo = r.Activo
	return u
}

// UpdateUserRequest is a partial update; absent fields stay untouched.
type UpdateUserRequest struct {
	Nombres         *[]string `json:"nombres,omitempty" validate:"omitempty,min=1,dive,required,min=2,max=50,nombre"`
	Apellidos       *[]string `json:"apellidos,omitempty" validate:"omitempty,min=1,dive,required,min=2,max=50,nombre"`
	RUT             *string   `json:"rut,omitempty" validate:"omitempty,rut_format,rut_shape,rut_dv"`
	FechaNacimiento *string   `json:"fechaNacimiento,omitempty" validate:"omitempty,datetime=2006-01-02,pastdate"`
	Email           *string   `json:"email,omitempty" validate:"omitempty,min=5,max=255,email,emaildomain"`
	Telefono        *string   `json:"telefono,omitempty" validate:"omitempty,telefono"`
	Password        *string   `json:"password,omitempty" validate:"omitempty,min=8,max=100"`
	NewPassword     *string   `json:"newPassword,omitempty" validate:"omitempty,min=8,max=100,strongpass"`
	Activo          *bool     `json:"activo,omitempty"`
}

// Changes converts the request into service input.
func (r UpdateUserRequest) Changes() auth.UserChanges {
	ch := auth.UserChanges{
		Nombres:     r.Nombres,
		Apellidos:   r.Apellidos,
		RUT:         r.RUT,
		Email:       r.Email,
		Telefono:    r.Telefono,
		Password:    r.Password,
		NewPassword: r.NewPassword,
		Activo:      r.Activo,
	}
	if r.FechaNacimiento != nil {
		ch.FechaNacimiento = parseDate(*r.FechaNacimiento)
	}
	return ch
}

func updateUserRules(sl validator.StructLevel) {
	r := sl.Current().Interface().(UpdateUserRequest)
	if r.Nombres == nil && r.Apellidos == nil && r.RUT == nil && r.FechaNacimiento == nil &&
		r.Email == nil && r.Telefono == nil && r.NewPassword == nil && r.Activo == nil {
		sl.ReportError(r, "body", "body", "atleastone", "Debes proporcionar al menos un campo para actualizar.")
	}
	if r.NewPassword != nil && (r.Password == nil || *r.Password == "") {
		sl.ReportError(r.Password, "password", "Password", "password_with_new", "")
	}
}

// UserQuery selects a single user from query parameters.
type UserQuery struct {
	ID       string `json:"id" validate:"omitempty,ulid"`
	RUT      string `json:"rut" validate:"omitempty,rut_format,rut_shape,rut_dv"`
	Email    string `json:"email" validate:"omitempty,email"`
	Telefono string `json:"telefono" validate:"omitempty,telefono"`
}

// Query converts the parameters into a store query.
func (q UserQuery) Query() auth.UserQuery {
	return auth.UserQuery{ID: q.ID, RUT: q.RUT, Email: q.Email, Telefono: q.Telefono}
}

func userQueryRules(sl validator.StructLevel) {
	q := sl.Current().Interface().(UserQuery)
	if strings.TrimSpace(q.ID+q.RUT+q.Email+q.Telefono) == "" {
		sl.ReportError(q, "query", "query", "atleastone", "Debes proporcionar al menos un parámetro de consulta: id, email o rut.")
	}
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &d
}
