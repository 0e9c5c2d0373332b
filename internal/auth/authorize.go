package auth

// RoleClaim is a role snapshot embedded in the access token. A nil Permisos
// marks a malformed claim; an empty slice is a role without permissions.
type RoleClaim struct {
	Nombre   string   `json:"nombre"`
	Permisos []string `json:"permisos"`
}

// Principal is the authenticated actor of one request. It is built once from
// verified claims and never mutated; accessors hand out copies.
type Principal struct {
	id      string
	nombres []string
	email   string
	rut     string
	roles   []RoleClaim
}

// NewPrincipal constructs a principal, copying every slice it is given.
func NewPrincipal(id string, nombres []string, email, rut string, roles []RoleClaim) Principal {
	return Principal{
		id:      id,
		nombres: cloneStrings(nombres),
		email:   email,
		rut:     rut,
		roles:   cloneRoles(roles),
	}
}

// PrincipalFromClaims builds the principal carried by a verified token.
func PrincipalFromClaims(c *Claims) Principal {
	if c == nil {
		return Principal{}
	}
	id := c.UserID
	if id == "" {
		id = c.Subject
	}
	return NewPrincipal(id, c.Nombres, c.Email, c.RUT, c.Roles)
}

// RoleClaimsFor snapshots the roles of a user as token claims.
func RoleClaimsFor(roles []Role) []RoleClaim {
	out := make([]RoleClaim, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleClaim{Nombre: r.Nombre, Permisos: r.PermissionNames()})
	}
	return out
}

func (p Principal) ID() string        { return p.id }
func (p Principal) Email() string     { return p.email }
func (p Principal) RUT() string       { return p.rut }
func (p Principal) Nombres() []string { return cloneStrings(p.nombres) }

// Roles returns a copy of the role snapshots.
func (p Principal) Roles() []RoleClaim { return cloneRoles(p.roles) }

// HasRoles reports whether the principal carries any role claim at all.
func (p Principal) HasRoles() bool { return len(p.roles) > 0 }

// RoleNames lists the role names in token order.
func (p Principal) RoleNames() []string {
	names := make([]string, 0, len(p.roles))
	for _, r := range p.roles {
		names = append(names, r.Nombre)
	}
	return names
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRoles(in []RoleClaim) []RoleClaim {
	if in == nil {
		return nil
	}
	out := make([]RoleClaim, len(in))
	for i, r := range in {
		out[i] = RoleClaim{Nombre: r.Nombre, Permisos: cloneStrings(r.Permisos)}
	}
	return out
}
