package db

import (
	"context"
	"database/sql"

	"github.com/willemschots/rentals/internal/db"
	"github.com/willemschots/rentals/internal/offer"
)

// Store is responsible for storing tags and offers in the database.
type Store struct {
	db *sql.DB
}

// New creates a new Store.
func New(conn *sql.DB) *Store {
	return &Store{
		db: conn,
	}
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (offer.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &Tx{
		ctx: ctx,
		tx:  tx,
	}, nil
}

func newQuery() *db.Query {
	return &db.Query{}
}
