package auth

import "context"

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	UserStore
	RoleStore
}

// UserStore manages accounts. Returned users carry their roles, in assignment
// order, with each role's permissions loaded.
type UserStore interface {
	CreateUser(ctx context.Context, u User, roleNames []string) (User, error)
	FindUser(ctx context.Context, q UserQuery) (User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]User, int, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RoleStore manages the role and permission catalog.
type RoleStore interface {
	EnsurePermission(ctx context.Context, p Permission) (Permission, error)
	EnsureRole(ctx context.Context, r Role, permissionNames []string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
}
