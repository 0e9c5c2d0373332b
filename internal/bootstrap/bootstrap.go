// Package bootstrap seeds the permission catalog, the built-in roles and a
// few sample accounts.
package bootstrap

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/rut"
)

// DefaultPassword is assigned to every sample account.
const DefaultPassword = "user1234"

//go:embed seed.yaml
var defaultSeed []byte

// Fixture is the decoded seed document.
type Fixture struct {
	Permissions []PermissionSeed `yaml:"permissions"`
	Roles       []RoleSeed       `yaml:"roles"`
	Users       []UserSeed       `yaml:"users"`
}

type PermissionSeed struct {
	Nombre      string `yaml:"nombre"`
	Descripcion string `yaml:"descripcion"`
}

type RoleSeed struct {
	Nombre      string   `yaml:"nombre"`
	Descripcion string   `yaml:"descripcion"`
	Permisos    []string `yaml:"permisos"`
}

type UserSeed struct {
	Nombres         []string `yaml:"nombres"`
	Apellidos       []string `yaml:"apellidos"`
	RUT             string   `yaml:"rut"`
	FechaNacimiento string   `yaml:"fechaNacimiento"`
	Email           string   `yaml:"email"`
	Telefono        string   `yaml:"telefono"`
	Activo          bool     `yaml:"activo"`
	Roles           []string `yaml:"roles"`
}

// Result counts upserted permissions and roles and newly created users.
type Result struct {
	Permissions int
	Roles       int
	Users       int
}

// DefaultFixture decodes the embedded seed document.
func DefaultFixture() (Fixture, error) {
	return Decode(defaultSeed)
}

// Decode parses a seed document, rejecting unknown keys.
func Decode(data []byte) (Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Fixture{}, fmt.Errorf("decode seed: %w", err)
	}
	return f, f.check()
}

func (f Fixture) check() error {
	perms := make(map[string]bool, len(f.Permissions))
	for _, p := range f.Permissions {
		perms[p.Nombre] = true
	}
	roles := make(map[string]bool, len(f.Roles))
	for _, r := range f.Roles {
		for _, p := range r.Permisos {
			if !perms[p] {
				return fmt.Errorf("seed: role %s references unknown permission %s", r.Nombre, p)
			}
		}
		roles[r.Nombre] = true
	}
	for _, u := range f.Users {
		if _, err := rut.Parse(u.RUT); err != nil {
			return fmt.Errorf("seed: user %s: rut %q: %w", u.Email, u.RUT, err)
		}
		for _, r := range u.Roles {
			if !roles[r] {
				return fmt.Errorf("seed: user %s references unknown role %s", u.Email, r)
			}
		}
	}
	return nil
}

// Seeder writes a Fixture through an auth.Store.
type Seeder struct {
	store  auth.Store
	hasher auth.PasswordHasher
	logger *zap.Logger
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithLogger sets the logger used for progress lines.
func WithLogger(l *zap.Logger) Option {
	return func(s *Seeder) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPasswordHasher overrides the bcrypt cost, mostly for tests.
func WithPasswordHasher(h auth.PasswordHasher) Option {
	return func(s *Seeder) { s.hasher = h }
}

func NewSeeder(store auth.Store, opts ...Option) *Seeder {
	s := &Seeder{store: store, hasher: auth.NewPasswordHasher(0), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed upserts permissions and roles and creates sample users that do not
// exist yet. Running it twice leaves the data unchanged.
func (s *Seeder) Seed(ctx context.Context, f Fixture) (Result, error) {
	var res Result
	if s.store == nil {
		return res, errors.New("bootstrap: store is required")
	}

	for _, p := range f.Permissions {
		if _, err := s.store.EnsurePermission(ctx, auth.Permission{Nombre: p.Nombre, Descripcion: p.Descripcion}); err != nil {
			return res, fmt.Errorf("permission %s: %w", p.Nombre, err)
		}
		res.Permissions++
	}
	s.logger.Info("bootstrap.permissions", zap.Int("count", res.Permissions))

	for _, r := range f.Roles {
		if _, err := s.store.EnsureRole(ctx, auth.Role{Nombre: r.Nombre, Descripcion: r.Descripcion}, r.Permisos); err != nil {
			return res, fmt.Errorf("role %s: %w", r.Nombre, err)
		}
		res.Roles++
	}
	s.logger.Info("bootstrap.roles", zap.Int("count", res.Roles))

	hash, err := s.hasher.Hash(DefaultPassword)
	if err != nil {
		return res, err
	}
	for _, u := range f.Users {
		parsed, err := rut.Parse(u.RUT)
		if err != nil {
			return res, fmt.Errorf("user %s: %w", u.Email, err)
		}
		_, err = s.store.FindUser(ctx, auth.UserQuery{RUT: parsed.Dashed()})
		switch {
		case err == nil:
			continue
		case !errors.Is(err, auth.ErrNotFound):
			return res, fmt.Errorf("lookup %s: %w", u.Email, err)
		}

		user := auth.User{
			Nombres:      u.Nombres,
			Apellidos:    u.Apellidos,
			RUT:          parsed.Dashed(),
			Email:        u.Email,
			Telefono:     u.Telefono,
			PasswordHash: hash,
			Activo:       u.Activo,
		}
		if u.FechaNacimiento != "" {
			d, err := time.Parse("2006-01-02", u.FechaNacimiento)
			if err != nil {
				return res, fmt.Errorf("user %s: fechaNacimiento: %w", u.Email, err)
			}
			user.FechaNacimiento = &d
		}
		if _, err := s.store.CreateUser(ctx, user, u.Roles); err != nil {
			return res, fmt.Errorf("create %s: %w", u.Email, err)
		}
		res.Users++
	}
	s.logger.Info("bootstrap.users", zap.Int("created", res.Users))
	return res, nil
}
