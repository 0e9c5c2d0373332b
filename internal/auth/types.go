package auth

import "time"

// User is a registered account. PasswordHash never leaves the service layer.
type User struct {
	ID              string     `json:"id"`
	Nombres         []string   `json:"nombres"`
	Apellidos       []string   `json:"apellidos"`
	RUT             string     `json:"rut"`
	FechaNacimiento *time.Time `json:"fechaNacimiento,omitempty"`
	Email           string     `json:"email"`
	Telefono        string     `json:"telefono,omitempty"`
	PasswordHash    string     `json:"-"`
	Activo          bool       `json:"activo"`
	Roles           []Role     `json:"roles,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// RoleNames returns the names of the user's roles in assignment order.
func (u User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Nombre)
	}
	return names
}

// Role groups permissions.
type Role struct {
	ID          string       `json:"id"`
	Nombre      string       `json:"nombre"`
	Descripcion string       `json:"descripcion,omitempty"`
	Permisos    []Permission `json:"permisos,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// PermissionNames flattens the role's permission catalog into names.
func (r Role) PermissionNames() []string {
	names := make([]string, 0, len(r.Permisos))
	for _, p := range r.Permisos {
		names = append(names, p.Nombre)
	}
	return names
}

// Permission is a resource:action capability tag.
type Permission struct {
	ID          string `json:"id"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion,omitempty"`
}

// UserQuery selects a single user. The first non-empty field wins in the order
// ID, RUT, Email, Telefono.
type UserQuery struct {
	ID       string
	RUT      string
	Email    string
	Telefono string
}

// Empty reports whether no lookup key was supplied.
func (q UserQuery) Empty() bool {
	return q.ID == "" && q.RUT == "" && q.Email == "" && q.Telefono == ""
}

// UserUpdate carries optional column changes. Nil fields are left untouched.
type UserUpdate struct {
	Nombres         *[]string
	Apellidos       *[]string
	RUT             *string
	FechaNacimiento *time.Time
	Email           *string
	Telefono        *string
	PasswordHash    *string
	Activo          *bool
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Nombres == nil && u.Apellidos == nil && u.RUT == nil && u.FechaNacimiento == nil &&
		u.Email == nil && u.Telefono == nil && u.PasswordHash == nil && u.Activo == nil
}

// UserPage is one page of the user listing.
type UserPage struct {
	Users      []User `json:"users"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"totalPages"`
}
