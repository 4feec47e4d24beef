package db

import (
	"context"
	"database/sql"

	"github.com/willemschots/rentals/internal/auth"
	"github.com/willemschots/rentals/internal/db"
	"github.com/willemschots/rentals/internal/krypto"
)

// Store is responsible for storing users in the database.
// Email addresses are encrypted at rest and located via a blind index.
type Store struct {
	db            *sql.DB
	encryptor     *krypto.Encryptor
	blindIndexKey krypto.Key
}

// New creates a new Store.
func New(conn *sql.DB, encryptor *krypto.Encryptor, blindIndexKey krypto.Key) *Store {
	return &Store{
		db:            conn,
		encryptor:     encryptor,
		blindIndexKey: blindIndexKey,
	}
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (auth.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &Tx{
		ctx:   ctx,
		tx:    tx,
		store: s,
	}, nil
}

func (s *Store) newQuery() *db.Query {
	return &db.Query{
		Encryptor:     s.encryptor,
		BlindIndexKey: s.blindIndexKey,
	}
}
