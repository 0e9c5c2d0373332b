package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// UserChanges is a partial update. Password must accompany NewPassword and is
// checked against the stored hash whenever it is present.
type UserChanges struct {
	Nombres         *[]string
	Apellidos       *[]string
	RUT             *string
	FechaNacimiento *time.Time
	Email           *string
	Telefono        *string
	Password        *string
	NewPassword     *string
	Activo          *bool
}

// GetUser finds one account by id, rut, email or telefono.
func (s *Service) GetUser(ctx context.Context, q UserQuery) (User, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return User{}, err
	}
	user, err := s.store.FindUser(ctx, q)
	if errors.Is(err, ErrNotFound) {
		return User{}, fieldError(err, "", "Usuario no encontrado")
	}
	return user, err
}

// ListUsers returns one page of accounts ordered by creation.
func (s *Service) ListUsers(ctx context.Context, page, limit int) (UserPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	users, total, err := s.store.ListUsers(ctx, (page-1)*limit, limit)
	if err != nil {
		return UserPage{}, err
	}
	if len(users) == 0 {
		return UserPage{}, fieldError(ErrNotFound, "", "No se encontraron usuarios.")
	}
	return UserPage{
		Users:      users,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// CreateUser is the administrative counterpart of Register; it also rejects
// a telefono that is already taken.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (User, error) {
	in, err := s.prepareNewUser(in)
	if err != nil {
		return User{}, err
	}
	if err := s.ensureUnique(ctx, "", in.Email, in.RUT, in.Telefono); err != nil {
		return User{}, err
	}
	return s.insertUser(ctx, in)
}

// UpdateUser applies changes to the account selected by q.
func (s *Service) UpdateUser(ctx context.Context, q UserQuery, ch UserChanges) (User, error) {
	found, err := s.GetUser(ctx, q)
	if err != nil {
		return User{}, err
	}

	var upd UserUpdate
	if ch.Nombres != nil {
		v := trimAll(*ch.Nombres)
		upd.Nombres = &v
	}
	if ch.Apellidos != nil {
		v := trimAll(*ch.Apellidos)
		upd.Apellidos = &v
	}
	if ch.RUT != nil {
		v, err := canonicalRUT(*ch.RUT)
		if err != nil {
			return User{}, err
		}
		upd.RUT = &v
	}
	if ch.Email != nil {
		v := strings.ToLower(strings.TrimSpace(*ch.Email))
		upd.Email = &v
	}
	if ch.Telefono != nil {
		v := strings.TrimSpace(*ch.Telefono)
		upd.Telefono = &v
	}
	upd.FechaNacimiento = ch.FechaNacimiento
	upd.Activo = ch.Activo

	if err := s.ensureUnique(ctx, found.ID, deref(upd.Email), deref(upd.RUT), deref(upd.Telefono)); err != nil {
		return User{}, err
	}

	if ch.NewPassword != nil && strings.TrimSpace(*ch.NewPassword) != "" && ch.Password == nil {
		return User{}, fieldError(ErrInvalidInput, "password", "Debes ingresar la contraseña actual para cambiarla")
	}
	if ch.Password != nil {
		if err := s.hasher.Verify(found.PasswordHash, *ch.Password); err != nil {
			if errors.Is(err, ErrBadCredentials) {
				return User{}, fieldError(err, "password", "La contraseña no coincide")
			}
			return User{}, err
		}
	}
	if ch.NewPassword != nil && strings.TrimSpace(*ch.NewPassword) != "" {
		hash, err := s.hasher.Hash(*ch.NewPassword)
		if err != nil {
			return User{}, err
		}
		upd.PasswordHash = &hash
	}

	if upd.Empty() {
		return User{}, fieldError(ErrInvalidInput, "", "Debes proporcionar al menos un campo para actualizar")
	}
	updated, err := s.store.UpdateUser(ctx, found.ID, upd)
	if errors.Is(err, ErrConflict) {
		return User{}, fieldError(err, "", "Ya existe un usuario con el mismo rut o email")
	}
	return updated, err
}

// DeleteUser removes the account selected by q. Administrators cannot be deleted.
func (s *Service) DeleteUser(ctx context.Context, q UserQuery) (User, error) {
	found, err := s.GetUser(ctx, q)
	if err != nil {
		return User{}, err
	}
	for _, r := range found.Roles {
		if strings.EqualFold(r.Nombre, RoleAdministrador) {
			return User{}, fieldError(ErrProtectedUser, "", "No se puede eliminar un usuario con rol de administrador")
		}
	}
	if err := s.store.DeleteUser(ctx, found.ID); err != nil {
		return User{}, err
	}
	return found, nil
}

func normalizeQuery(q UserQuery) (UserQuery, error) {
	q.ID = strings.TrimSpace(q.ID)
	q.Email = strings.ToLower(strings.TrimSpace(q.Email))
	q.Telefono = strings.TrimSpace(q.Telefono)
	if r := strings.TrimSpace(q.RUT); r != "" {
		canonical, err := canonicalRUT(r)
		if err != nil {
			return q, err
		}
		q.RUT = canonical
	}
	if q.Empty() {
		return q, fmt.Errorf("%w: a lookup field is required", ErrInvalidInput)
	}
	return q, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ListRoles returns the role catalog with each role's permissions.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}
