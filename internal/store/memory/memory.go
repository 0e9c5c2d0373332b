// Package memory is an in-process auth.Store used by tests and local demos.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/ids"
)

var _ auth.Store = (*Store)(nil)

// Store keeps accounts, roles and permissions in maps guarded by one mutex.
type Store struct {
	mu          sync.RWMutex
	users       map[string]auth.User
	order       []string
	assignments map[string][]string
	roles       map[string]auth.Role
	rolePerms   map[string][]string
	perms       map[string]auth.Permission
	now         func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:       make(map[string]auth.User),
		assignments: make(map[string][]string),
		roles:       make(map[string]auth.Role),
		rolePerms:   make(map[string][]string),
		perms:       make(map[string]auth.Permission),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) CreateUser(_ context.Context, u auth.User, roleNames []string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflicts("", u.RUT, u.Email, u.Telefono) {
		return auth.User{}, auth.ErrConflict
	}
	for _, name := range roleNames {
		if _, ok := s.roles[name]; !ok {
			return auth.User{}, auth.ErrNotFound
		}
	}
	u.ID = ids.New()
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	u.Roles = nil
	s.users[u.ID] = u
	s.order = append(s.order, u.ID)
	s.assignments[u.ID] = append([]string(nil), roleNames...)
	return s.withRoles(u), nil
}

func (s *Store) FindUser(_ context.Context, q auth.UserQuery) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.lookup(q)
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return s.withRoles(u), nil
}

func (s *Store) ListUsers(_ context.Context, offset, limit int) ([]auth.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := len(s.order)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]auth.User, 0, end-offset)
	for _, id := range s.order[offset:end] {
		out = append(out, s.withRoles(s.users[id]))
	}
	return out, total, nil
}

func (s *Store) UpdateUser(_ context.Context, id string, upd auth.UserUpdate) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	if s.conflicts(id, deref(upd.RUT), deref(upd.Email), deref(upd.Telefono)) {
		return auth.User{}, auth.ErrConflict
	}
	if upd.Nombres != nil {
		u.Nombres = append([]string(nil), (*upd.Nombres)...)
	}
	if upd.Apellidos != nil {
		u.Apellidos = append([]string(nil), (*upd.Apellidos)...)
	}
	if upd.RUT != nil {
		u.RUT = *upd.RUT
	}
	if upd.FechaNacimiento != nil {
		d := *upd.FechaNacimiento
		u.FechaNacimiento = &d
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Telefono != nil {
		u.Telefono = *upd.Telefono
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.Activo != nil {
		u.Activo = *upd.Activo
	}
	u.UpdatedAt = s.now()
	s.users[id] = u
	return s.withRoles(u), nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.users, id)
	delete(s.assignments, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) EnsurePermission(_ context.Context, p auth.Permission) (auth.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.perms[p.Nombre]; ok {
		existing.Descripcion = p.Descripcion
		s.perms[p.Nombre] = existing
		return existing, nil
	}
	p.ID = ids.New()
	s.perms[p.Nombre] = p
	return p, nil
}

func (s *Store) EnsureRole(_ context.Context, r auth.Role, permissionNames []string) (auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range permissionNames {
		if _, ok := s.perms[name]; !ok {
			return auth.Role{}, auth.ErrNotFound
		}
	}
	if existing, ok := s.roles[r.Nombre]; ok {
		existing.Descripcion = r.Descripcion
		r = existing
	} else {
		r.ID = ids.New()
		r.CreatedAt = s.now()
	}
	r.Permisos = nil
	s.roles[r.Nombre] = r
	s.rolePerms[r.Nombre] = append([]string(nil), permissionNames...)
	return s.roleWithPerms(r.Nombre), nil
}

func (s *Store) ListRoles(_ context.Context) ([]auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.roles))
	for name := range s.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]auth.Role, 0, len(names))
	for _, name := range names {
		out = append(out, s.roleWithPerms(name))
	}
	return out, nil
}

func (s *Store) lookup(q auth.UserQuery) (auth.User, bool) {
	switch {
	case q.ID != "":
		u, ok := s.users[q.ID]
		return u, ok
	case q.RUT != "":
		return s.scan(func(u auth.User) bool { return u.RUT == q.RUT })
	case q.Email != "":
		return s.scan(func(u auth.User) bool { return strings.EqualFold(u.Email, q.Email) })
	case q.Telefono != "":
		return s.scan(func(u auth.User) bool { return u.Telefono == q.Telefono })
	}
	return auth.User{}, false
}

func (s *Store) scan(match func(auth.User) bool) (auth.User, bool) {
	for _, id := range s.order {
		if u := s.users[id]; match(u) {
			return u, true
		}
	}
	return auth.User{}, false
}

func (s *Store) conflicts(selfID, rut, email, telefono string) bool {
	for id, u := range s.users {
		if id == selfID {
			continue
		}
		if (rut != "" && u.RUT == rut) ||
			(email != "" && strings.EqualFold(u.Email, email)) ||
			(telefono != "" && u.Telefono == telefono) {
			return true
		}
	}
	return false
}

func (s *Store) withRoles(u auth.User) auth.User {
	names := s.assignments[u.ID]
	u.Roles = make([]auth.Role, 0, len(names))
	for _, name := range names {
		if _, ok := s.roles[name]; ok {
			u.Roles = append(u.Roles, s.roleWithPerms(name))
		}
	}
	return u
}

func (s *Store) roleWithPerms(name string) auth.Role {
	r := s.roles[name]
	r.Permisos = make([]auth.Permission, 0, len(s.rolePerms[name]))
	for _, pn := range s.rolePerms[name] {
		r.Permisos = append(r.Permisos, s.perms[pn])
	}
	return r
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
