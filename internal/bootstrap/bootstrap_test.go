package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/store/memory"
)

func TestDefaultFixture(t *testing.T) {
	f, err := DefaultFixture()
	require.NoError(t, err)
	assert.Len(t, f.Permissions, 16)
	require.Len(t, f.Roles, 3)
	assert.Len(t, f.Users, 3)

	byName := map[string]RoleSeed{}
	for _, r := range f.Roles {
		byName[r.Nombre] = r
	}
	assert.ElementsMatch(t, []string{auth.PermUserReadProfile, auth.PermUserUpdateProfile}, byName[auth.RoleUsuario].Permisos)
	assert.Len(t, byName[auth.RoleSupervisor].Permisos, 5)
	assert.Len(t, byName[auth.RoleAdministrador].Permisos, 14)
	assert.NotContains(t, byName[auth.RoleAdministrador].Permisos, auth.PermUserReadProfile)
}

func TestDecodeRejectsDanglingReferences(t *testing.T) {
	_, err := Decode([]byte("permissions: []\nroles:\n  - nombre: X\n    permisos: [\"nope\"]\n"))
	assert.ErrorContains(t, err, "unknown permission")

	_, err = Decode([]byte("users:\n  - rut: \"12345678-4\"\n"))
	assert.Error(t, err)

	_, err = Decode([]byte("extra: 1\n"))
	assert.Error(t, err)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	f, err := DefaultFixture()
	require.NoError(t, err)
	s := NewSeeder(store, WithPasswordHasher(auth.NewPasswordHasher(bcrypt.MinCost)))

	res, err := s.Seed(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, Result{Permissions: 16, Roles: 3, Users: 3}, res)

	res, err = s.Seed(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Users)

	users, total, err := store.ListUsers(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	admin := users[0]
	assert.Equal(t, "admin@example.com", admin.Email)
	assert.Equal(t, []string{auth.RoleAdministrador, auth.RoleUsuario}, admin.RoleNames())
	require.NotNil(t, admin.FechaNacimiento)
	assert.Equal(t, 1980, admin.FechaNacimiento.Year())
	assert.NoError(t, auth.NewPasswordHasher(bcrypt.MinCost).Verify(admin.PasswordHash, DefaultPassword))

	ana, err := store.FindUser(ctx, auth.UserQuery{RUT: "18765432-7"})
	require.NoError(t, err)
	assert.False(t, ana.Activo)
}

func TestSeededAccountsCanLogIn(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	f, err := DefaultFixture()
	require.NoError(t, err)
	_, err = NewSeeder(store, WithPasswordHasher(auth.NewPasswordHasher(bcrypt.MinCost))).Seed(ctx, f)
	require.NoError(t, err)

	tokens, err := auth.NewTokens("seed-test")
	require.NoError(t, err)
	svc, err := auth.NewService(store, tokens)
	require.NoError(t, err)

	session, err := svc.Login(ctx, "12.345.678-5", DefaultPassword)
	require.NoError(t, err)
	p, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{auth.RoleSupervisor, auth.RoleUsuario}, p.RoleNames())

	_, err = svc.Login(ctx, "18.765.432-7", DefaultPassword)
	assert.ErrorIs(t, err, auth.ErrInactive)
}
