package db

import (
	"database/sql"
	"fmt"

	"github.com/willemschots/rentals/internal/auth"
	"github.com/willemschots/rentals/internal/db"
	"github.com/willemschots/rentals/internal/email"
	"github.com/willemschots/rentals/internal/errorz"
)

type execFunc func(query string, params ...any) (sql.Result, error)
type queryFunc func(query string, params ...any) (*sql.Rows, error)

func insertUser(q *db.Query, ef execFunc, u *auth.User) error {
	if u.ID != 0 {
		return fmt.Errorf("user already has id %d: %w", u.ID, errorz.ErrConstraintViolated)
	}

	q.Unsafe(`INSERT INTO users (email_encrypted, email_blind_index, name, password_hash, is_active, is_staff, is_superuser, created_at, updated_at) VALUES (`)
	q.ParamEncrypted([]byte(u.Email))
	q.Unsafe(`, `)
	q.ParamBlindIndex([]byte(u.Email))
	q.Unsafe(`, `)
	q.Params(u.Name, u.PasswordHash.String(), u.IsActive, u.IsStaff, u.IsSuperuser, u.CreatedAt, u.UpdatedAt)
	q.Unsafe(`)`)

	s, params, err := q.Get()
	if err != nil {
		return err
	}

	result, err := ef(s, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errorz.MapDBErr(err)
	}

	u.ID = int(id)

	return nil
}

func updateUser(q *db.Query, ef execFunc, u *auth.User) error {
	q.Unsafe(`UPDATE users SET `)

	q.Unsafe(`email_encrypted = `)
	q.ParamEncrypted([]byte(u.Email))

	q.Unsafe(`, email_blind_index = `)
	q.ParamBlindIndex([]byte(u.Email))

	q.Unsafe(`, name = `)
	q.Param(u.Name)

	q.Unsafe(`, password_hash = `)
	q.Param(u.PasswordHash.String())

	q.Unsafe(`, is_active = `)
	q.Param(u.IsActive)

	q.Unsafe(`, is_staff = `)
	q.Param(u.IsStaff)

	q.Unsafe(`, is_superuser = `)
	q.Param(u.IsSuperuser)

	q.Unsafe(`, updated_at = `)
	q.Param(u.UpdatedAt)

	q.Unsafe(` WHERE id = `)
	q.Param(u.ID)

	s, params, err := q.Get()
	if err != nil {
		return err
	}

	result, err := ef(s, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errorz.MapDBErr(err)
	}

	if rows == 0 {
		return fmt.Errorf("user not found: %w", errorz.ErrNotFound)
	}

	return nil
}

func selectUsers(q *db.Query, qf queryFunc, f *auth.UserFilter) ([]auth.User, error) {
	q.Unsafe(`SELECT id, email_encrypted, name, password_hash, is_active, is_staff, is_superuser, created_at, updated_at FROM users WHERE 1=1 `)

	if len(f.IDs) > 0 {
		q.Unsafe(`AND id IN (`)
		q.Params(db.AnySlice(f.IDs)...)
		q.Unsafe(`) `)
	}

	if len(f.Emails) > 0 {
		q.Unsafe(`AND email_blind_index IN (`)
		for i, addr := range f.Emails {
			if i > 0 {
				q.Unsafe(`, `)
			}
			q.ParamBlindIndex([]byte(addr))
		}
		q.Unsafe(`) `)
	}

	if f.IsActive != nil {
		q.Unsafe(`AND is_active = `)
		q.Param(*f.IsActive)
		q.Unsafe(` `)
	}

	q.Unsafe(`ORDER BY id ASC`)

	s, params, err := q.Get()
	if err != nil {
		return nil, err
	}

	rows, err := qf(s, params...)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}

	defer rows.Close()

	out := make([]auth.User, 0)
	for rows.Next() {
		var u auth.User
		emailBytes := q.DecryptionTarget()
		err := rows.Scan(&u.ID, emailBytes, &u.Name, &u.PasswordHash, &u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, errorz.MapDBErr(err)
		}

		u.Email, err = email.ParseAddress(string(emailBytes.Data))
		if err != nil {
			return nil, err
		}

		out = append(out, u)
	}

	if err := rows.Err(); err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return out, nil
}
