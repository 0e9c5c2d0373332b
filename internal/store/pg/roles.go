package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/ids"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) EnsurePermission(ctx context.Context, p auth.Permission) (auth.Permission, error) {
	if s.db == nil {
		return auth.Permission{}, errNoDB
	}
	var out auth.Permission
	err := s.db.QueryRowContext(ctx, `
		insert into permisos (id, nombre, descripcion)
		values ($1, $2, $3)
		on conflict (nombre) do update set descripcion = excluded.descripcion
		returning id, nombre, coalesce(descripcion, '')
	`, ids.New(), p.Nombre, nullIfEmpty(p.Descripcion)).Scan(&out.ID, &out.Nombre, &out.Descripcion)
	if err != nil {
		return auth.Permission{}, mapError(err)
	}
	return out, nil
}

// EnsureRole upserts the role and replaces its permission set.
func (s *Store) EnsureRole(ctx context.Context, r auth.Role, permissionNames []string) (auth.Role, error) {
	if s.db == nil {
		return auth.Role{}, errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Role{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var out auth.Role
	err = tx.QueryRowContext(ctx, `
		insert into roles (id, nombre, descripcion)
		values ($1, $2, $3)
		on conflict (nombre) do update set descripcion = excluded.descripcion
		returning id, nombre, coalesce(descripcion, ''), created_at
	`, ids.New(), r.Nombre, nullIfEmpty(r.Descripcion)).Scan(&out.ID, &out.Nombre, &out.Descripcion, &out.CreatedAt)
	if err != nil {
		return auth.Role{}, mapError(err)
	}

	if _, err := tx.ExecContext(ctx, `delete from rol_permisos where rol_id = $1`, out.ID); err != nil {
		return auth.Role{}, err
	}
	for _, name := range permissionNames {
		res, err := tx.ExecContext(ctx, `
			insert into rol_permisos (rol_id, permiso_id)
			select $1, p.id from permisos p where p.nombre = $2
		`, out.ID, name)
		if err != nil {
			return auth.Role{}, mapError(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return auth.Role{}, err
		} else if n == 0 {
			return auth.Role{}, fmt.Errorf("permission %q: %w", name, auth.ErrNotFound)
		}
	}

	perms, err := permissionsByRole(ctx, tx, out.ID)
	if err != nil {
		return auth.Role{}, err
	}
	if err := tx.Commit(); err != nil {
		return auth.Role{}, err
	}
	out.Permisos = perms[out.ID]
	if out.Permisos == nil {
		out.Permisos = []auth.Permission{}
	}
	return out, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]auth.Role, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, nombre, coalesce(descripcion, ''), created_at
		from roles
		order by nombre
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Role
	for rows.Next() {
		var r auth.Role
		if err := rows.Scan(&r.ID, &r.Nombre, &r.Descripcion, &r.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	perms, err := permissionsByRole(ctx, s.db, "")
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Permisos = perms[result[i].ID]
		if result[i].Permisos == nil {
			result[i].Permisos = []auth.Permission{}
		}
	}
	return result, nil
}

// permissionsByRole loads role grants keyed by role id. An empty roleID loads
// every grant.
func permissionsByRole(ctx context.Context, q querier, roleID string) (map[string][]auth.Permission, error) {
	rows, err := q.QueryContext(ctx, `
		select rp.rol_id, p.id, p.nombre, coalesce(p.descripcion, '')
		from rol_permisos rp
		join permisos p on p.id = rp.permiso_id
		where $1 = '' or rp.rol_id = $1
		order by rp.rol_id, p.nombre
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]auth.Permission{}
	for rows.Next() {
		var (
			rid string
			p   auth.Permission
		)
		if err := rows.Scan(&rid, &p.ID, &p.Nombre, &p.Descripcion); err != nil {
			return nil, err
		}
		out[rid] = append(out[rid], p)
	}
	return out, rows.Err()
}

// rolesForUsers returns each user's roles in assignment order, permissions
// included.
func rolesForUsers(ctx context.Context, q querier, userIDs []string) (map[string][]auth.Role, error) {
	rows, err := q.QueryContext(ctx, `
		select ur.usuario_id, r.id, r.nombre, coalesce(r.descripcion, ''), r.created_at,
		       p.id, p.nombre, p.descripcion
		from usuario_roles ur
		join roles r on r.id = ur.rol_id
		left join rol_permisos rp on rp.rol_id = r.id
		left join permisos p on p.id = rp.permiso_id
		where ur.usuario_id = any($1)
		order by ur.usuario_id, ur.posicion, p.nombre
	`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]auth.Role, len(userIDs))
	for rows.Next() {
		var (
			userID, roleID, nombre, descripcion string
			createdAt                           time.Time
			permID, permNombre, permDesc        sql.NullString
		)
		if err := rows.Scan(&userID, &roleID, &nombre, &descripcion, &createdAt, &permID, &permNombre, &permDesc); err != nil {
			return nil, err
		}
		roles := out[userID]
		if n := len(roles); n == 0 || roles[n-1].ID != roleID {
			roles = append(roles, auth.Role{
				ID: roleID, Nombre: nombre, Descripcion: descripcion, CreatedAt: createdAt,
				Permisos: []auth.Permission{},
			})
		}
		if permID.Valid {
			last := &roles[len(roles)-1]
			last.Permisos = append(last.Permisos, auth.Permission{ID: permID.String, Nombre: permNombre.String, Descripcion: permDesc.String})
		}
		out[userID] = roles
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range userIDs {
		if out[id] == nil {
			out[id] = []auth.Role{}
		}
	}
	return out, nil
}
