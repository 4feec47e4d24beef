package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/willemschots/rentals/internal/offer"
)

type Tx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// CreateTag creates a tag owned by caller.
// It sets the tag ID and OwnerID when successful.
func (t *Tx) CreateTag(caller int, tag *offer.Tag) error {
	if err := checkCaller(caller); err != nil {
		return err
	}
	return insertTag(newQuery(), t.exec, caller, tag)
}

// FindTags finds the tags of caller, ordered by name descending.
func (t *Tx) FindTags(caller int, filter *offer.TagFilter) ([]offer.Tag, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	return selectTags(newQuery(), t.query, caller, filter)
}

// ExistingTagIDs returns the subset of ids that belong to a tag.
// Tags of all users are considered.
func (t *Tx) ExistingTagIDs(ids []int) ([]int, error) {
	return selectExistingTagIDs(newQuery(), t.query, ids)
}

// CreateOffer creates an offer owned by caller, including its tag links.
// It sets the offer ID and OwnerID when successful.
func (t *Tx) CreateOffer(caller int, o *offer.Offer) error {
	if err := checkCaller(caller); err != nil {
		return err
	}

	err := insertOffer(newQuery(), t.exec, caller, o)
	if err != nil {
		return err
	}

	return insertOfferTags(newQuery(), t.exec, o.ID, o.TagIDs)
}

// UpdateOffer updates an offer owned by caller and replaces its tag links.
// It returns errorz.ErrNotFound if caller has no offer with this ID.
func (t *Tx) UpdateOffer(caller int, o *offer.Offer) error {
	if err := checkCaller(caller); err != nil {
		return err
	}

	err := updateOffer(newQuery(), t.exec, caller, o)
	if err != nil {
		return err
	}

	err = deleteOfferTags(newQuery(), t.exec, o.ID)
	if err != nil {
		return err
	}

	return insertOfferTags(newQuery(), t.exec, o.ID, o.TagIDs)
}

// DeleteOffer deletes an offer owned by caller. Tag links are removed by the database.
// It returns errorz.ErrNotFound if caller has no offer with this ID.
func (t *Tx) DeleteOffer(caller int, id int) error {
	if err := checkCaller(caller); err != nil {
		return err
	}
	return deleteOffer(newQuery(), t.exec, caller, id)
}

// FindOffers finds the offers of caller that match the filter, ordered by id descending.
func (t *Tx) FindOffers(caller int, filter *offer.OfferFilter) ([]offer.Offer, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}

	offers, err := selectOffers(newQuery(), t.query, caller, filter)
	if err != nil {
		return nil, err
	}

	err = loadOfferTags(newQuery(), t.query, offers)
	if err != nil {
		return nil, err
	}

	return offers, nil
}

func (t *Tx) exec(query string, params ...any) (sql.Result, error) {
	return t.tx.ExecContext(t.ctx, query, params...)
}

func (t *Tx) query(query string, params ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(t.ctx, query, params...)
}

func checkCaller(caller int) error {
	if caller <= 0 {
		return fmt.Errorf("caller %d: %w", caller, offer.ErrNoCaller)
	}
	return nil
}
