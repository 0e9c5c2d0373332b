package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/ids"
)

const userColumns = `id, nombres, apellidos, rut, fecha_nacimiento, email, coalesce(telefono, ''), password_hash, activo, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (auth.User, error) {
	var (
		u     auth.User
		birth sql.NullTime
	)
	err := row.Scan(&u.ID, textArray(&u.Nombres), textArray(&u.Apellidos), &u.RUT, &birth,
		&u.Email, &u.Telefono, &u.PasswordHash, &u.Activo, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return auth.User{}, err
	}
	if birth.Valid {
		d := birth.Time
		u.FechaNacimiento = &d
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u auth.User, roleNames []string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	created, err := scanUser(tx.QueryRowContext(ctx, `
		insert into usuarios (id, nombres, apellidos, rut, fecha_nacimiento, email, telefono, password_hash, activo)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning `+userColumns,
		ids.New(), u.Nombres, u.Apellidos, u.RUT, nullTime(u.FechaNacimiento), u.Email,
		nullIfEmpty(u.Telefono), u.PasswordHash, u.Activo))
	if err != nil {
		return auth.User{}, mapError(err)
	}

	for i, name := range roleNames {
		res, err := tx.ExecContext(ctx, `
			insert into usuario_roles (usuario_id, rol_id, posicion)
			select $1, r.id, $3 from roles r where r.nombre = $2
		`, created.ID, name, i)
		if err != nil {
			return auth.User{}, mapError(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return auth.User{}, err
		} else if n == 0 {
			return auth.User{}, fmt.Errorf("role %q: %w", name, auth.ErrNotFound)
		}
	}

	roles, err := rolesForUsers(ctx, tx, []string{created.ID})
	if err != nil {
		return auth.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return auth.User{}, err
	}
	created.Roles = roles[created.ID]
	return created, nil
}

func (s *Store) FindUser(ctx context.Context, q auth.UserQuery) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	var (
		column string
		value  string
	)
	switch {
	case q.ID != "":
		column, value = "id", q.ID
	case q.RUT != "":
		column, value = "rut", q.RUT
	case q.Email != "":
		column, value = "lower(email)", strings.ToLower(q.Email)
	case q.Telefono != "":
		column, value = "telefono", q.Telefono
	default:
		return auth.User{}, auth.ErrNotFound
	}

	u, err := scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from usuarios where `+column+` = $1`, value))
	if err != nil {
		return auth.User{}, mapError(err)
	}
	roles, err := rolesForUsers(ctx, s.db, []string{u.ID})
	if err != nil {
		return auth.User{}, err
	}
	u.Roles = roles[u.ID]
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, offset, limit int) ([]auth.User, int, error) {
	if s.db == nil {
		return nil, 0, errNoDB
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from usuarios`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+`
		from usuarios
		order by created_at, id
		offset $1 limit $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		users  []auth.User
		userID []string
	)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
		userID = append(userID, u.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(users) == 0 {
		return nil, total, nil
	}

	roles, err := rolesForUsers(ctx, s.db, userID)
	if err != nil {
		return nil, 0, err
	}
	for i := range users {
		users[i].Roles = roles[users[i].ID]
	}
	return users, total, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd auth.UserUpdate) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}

	var (
		setClauses []string
		args       []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Nombres != nil {
		set("nombres", *upd.Nombres)
	}
	if upd.Apellidos != nil {
		set("apellidos", *upd.Apellidos)
	}
	if upd.RUT != nil {
		set("rut", *upd.RUT)
	}
	if upd.FechaNacimiento != nil {
		set("fecha_nacimiento", *upd.FechaNacimiento)
	}
	if upd.Email != nil {
		set("email", *upd.Email)
	}
	if upd.Telefono != nil {
		set("telefono", nullIfEmpty(*upd.Telefono))
	}
	if upd.PasswordHash != nil {
		set("password_hash", *upd.PasswordHash)
	}
	if upd.Activo != nil {
		set("activo", *upd.Activo)
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		args = append(args, id)
		query := fmt.Sprintf(`update usuarios set %s where id = $%d`, strings.Join(setClauses, ", "), len(args))
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return auth.User{}, mapError(err)
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.User{}, err
		}
		if aff == 0 {
			return auth.User{}, auth.ErrNotFound
		}
	}
	return s.FindUser(ctx, auth.UserQuery{ID: id})
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from usuarios where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
