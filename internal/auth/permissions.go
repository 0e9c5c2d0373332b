package auth

const (
	RoleAdministrador = "Administrador"
	RoleSupervisor    = "Supervisor"
	RoleUsuario       = "Usuario"
)

const (
	PermUserCreate           = "user:create"
	PermUserReadAll          = "user:read_all"
	PermUserReadProfile      = "user:read_profile"
	PermUserReadSpecific     = "user:read_specific"
	PermUserUpdateAll        = "user:update_all"
	PermUserUpdateProfile    = "user:update_profile"
	PermUserUpdateSpecific   = "user:update_specific"
	PermUserDelete           = "user:delete"
	PermUserChangeStatus     = "user:change_status"
	PermUserAssignRole       = "user:assign_role"
	PermRoleCreate           = "role:create"
	PermRoleRead             = "role:read"
	PermRoleUpdate           = "role:update"
	PermRoleDelete           = "role:delete"
	PermRoleAssignPermission = "role:assign_permission"
	PermPermissionRead       = "permission:read"
)
