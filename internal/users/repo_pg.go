package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, username, password_hash, full_name, role, permission, active, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (username, password_hash, full_name, role, permission, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
RETURNING ` + userColumns
	row := r.DB.QueryRowContext(ctx, query,
		user.Username,
		user.PasswordHash,
		user.FullName,
		string(user.Role),
		string(user.Permission),
		user.Active,
	)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, duplicateUsername(user.Username)
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PGRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE lower(username) = lower($1)`
	return r.getOne(ctx, query, username)
}

func (r *PGRepo) getOne(ctx context.Context, query string, arg any) (User, error) {
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *PGRepo) List(ctx context.Context, includeInactive bool) ([]User, error) {
	const query = `
SELECT ` + userColumns + `
FROM users
WHERE active OR $1
ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (r *PGRepo) Update(ctx context.Context, id int64, patch Patch) (User, error) {
	const query = `
UPDATE users SET
  full_name = COALESCE($2, full_name),
  role = COALESCE($3, role),
  permission = COALESCE($4, permission),
  active = COALESCE($5, active),
  password_hash = COALESCE($6, password_hash),
  updated_at = now()
WHERE id = $1
RETURNING ` + userColumns
	row := r.DB.QueryRowContext(ctx, query,
		id,
		nullableString(patch.FullName),
		nullableRole(patch.Role),
		nullablePermission(patch.Permission),
		nullableBool(patch.Active),
		nullableString(patch.PasswordHash),
	)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (r *PGRepo) Deactivate(ctx context.Context, id int64) error {
	const query = `UPDATE users SET active = false, updated_at = now() WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var fullName sql.NullString
	var role, permission string
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&fullName,
		&role,
		&permission,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	if fullName.Valid {
		user.FullName = fullName.String
	}
	user.Role = Role(role)
	user.Permission = Permission(permission)
	return user, nil
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableRole(value *Role) any {
	if value == nil {
		return nil
	}
	return string(*value)
}

func nullablePermission(value *Permission) any {
	if value == nil {
		return nil
	}
	return string(*value)
}

func nullableBool(value *bool) any {
	if value == nil {
		return nil
	}
	return *value
}

var _ Repo = (*PGRepo)(nil)
