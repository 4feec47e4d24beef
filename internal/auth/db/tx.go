package db

import (
	"context"
	"database/sql"

	"github.com/willemschots/rentals/internal/auth"
)

type Tx struct {
	ctx   context.Context
	tx    *sql.Tx
	store *Store
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// CreateUser creates a user in the database.
// It sets the users ID when successful.
func (t *Tx) CreateUser(u *auth.User) error {
	return insertUser(t.store.newQuery(), t.exec, u)
}

// UpdateUser updates a user in the database.
// It returns errorz.ErrNotFound if no user is found.
func (t *Tx) UpdateUser(u *auth.User) error {
	return updateUser(t.store.newQuery(), t.exec, u)
}

// FindUsers queries for users based on the provided filter.
// It returns an empty slice if no users are found.
func (t *Tx) FindUsers(filter *auth.UserFilter) ([]auth.User, error) {
	return selectUsers(t.store.newQuery(), t.query, filter)
}

func (t *Tx) exec(query string, params ...any) (sql.Result, error) {
	return t.tx.ExecContext(t.ctx, query, params...)
}

func (t *Tx) query(query string, params ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(t.ctx, query, params...)
}
