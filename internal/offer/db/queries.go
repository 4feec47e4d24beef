package db

import (
	"database/sql"
	"fmt"

	"github.com/willemschots/rentals/internal/db"
	"github.com/willemschots/rentals/internal/errorz"
	"github.com/willemschots/rentals/internal/offer"
)

type execFunc func(query string, params ...any) (sql.Result, error)
type queryFunc func(query string, params ...any) (*sql.Rows, error)

func insertTag(q *db.Query, ef execFunc, caller int, t *offer.Tag) error {
	if t.ID != 0 {
		return fmt.Errorf("tag already has id %d: %w", t.ID, errorz.ErrConstraintViolated)
	}

	q.Unsafe(`INSERT INTO tags (owner_id, name, created_at) VALUES (`)
	q.Params(caller, t.Name, t.CreatedAt)
	q.Unsafe(`)`)

	id, err := execInsert(q, ef)
	if err != nil {
		return err
	}

	t.ID = id
	t.OwnerID = caller

	return nil
}

func selectTags(q *db.Query, qf queryFunc, caller int, f *offer.TagFilter) ([]offer.Tag, error) {
	q.Unsafe(`SELECT id, owner_id, name, created_at FROM tags WHERE owner_id = `)
	q.Param(caller)

	if len(f.IDs) > 0 {
		q.Unsafe(` AND id IN (`)
		q.Params(db.AnySlice(f.IDs)...)
		q.Unsafe(`)`)
	}

	q.Unsafe(` ORDER BY name DESC, id DESC`)

	s, params, err := q.Get()
	if err != nil {
		return nil, err
	}

	rows, err := qf(s, params...)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}

	defer rows.Close()

	out := make([]offer.Tag, 0)
	for rows.Next() {
		var t offer.Tag
		err := rows.Scan(&t.ID, &t.OwnerID, &t.Name, &t.CreatedAt)
		if err != nil {
			return nil, errorz.MapDBErr(err)
		}

		out = append(out, t)
	}

	if err := rows.Err(); err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return out, nil
}

func selectExistingTagIDs(q *db.Query, qf queryFunc, ids []int) ([]int, error) {
	out := make([]int, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	q.Unsafe(`SELECT id FROM tags WHERE id IN (`)
	q.Params(db.AnySlice(ids)...)
	q.Unsafe(`) ORDER BY id ASC`)

	s, params, err := q.Get()
	if err != nil {
		return nil, err
	}

	rows, err := qf(s, params...)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}

	defer rows.Close()

	for rows.Next() {
		var id int
		err := rows.Scan(&id)
		if err != nil {
			return nil, errorz.MapDBErr(err)
		}

		out = append(out, id)
	}

	if err := rows.Err(); err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return out, nil
}

func insertOffer(q *db.Query, ef execFunc, caller int, o *offer.Offer) error {
	if o.ID != 0 {
		return fmt.Errorf("offer already has id %d: %w", o.ID, errorz.ErrConstraintViolated)
	}

	q.Unsafe(`INSERT INTO offers (owner_id, title, description, min_players, max_players, price_per_day, link, is_highlighted, created_at, updated_at) VALUES (`)
	q.Params(caller, o.Title, o.Description, o.MinPlayers, o.MaxPlayers, priceParam(o.PricePerDay), o.Link, o.IsHighlighted, o.CreatedAt, o.UpdatedAt)
	q.Unsafe(`)`)

	id, err := execInsert(q, ef)
	if err != nil {
		return err
	}

	o.ID = id
	o.OwnerID = caller

	return nil
}

func updateOffer(q *db.Query, ef execFunc, caller int, o *offer.Offer) error {
	q.Unsafe(`UPDATE offers SET `)

	q.Unsafe(`title = `)
	q.Param(o.Title)

	q.Unsafe(`, description = `)
	q.Param(o.Description)

	q.Unsafe(`, min_players = `)
	q.Param(o.MinPlayers)

	q.Unsafe(`, max_players = `)
	q.Param(o.MaxPlayers)

	q.Unsafe(`, price_per_day = `)
	q.Param(priceParam(o.PricePerDay))

	q.Unsafe(`, link = `)
	q.Param(o.Link)

	q.Unsafe(`, is_highlighted = `)
	q.Param(o.IsHighlighted)

	q.Unsafe(`, updated_at = `)
	q.Param(o.UpdatedAt)

	q.Unsafe(` WHERE id = `)
	q.Param(o.ID)
	q.Unsafe(` AND owner_id = `)
	q.Param(caller)

	return execAffectingOne(q, ef, "offer")
}

func deleteOffer(q *db.Query, ef execFunc, caller, id int) error {
	q.Unsafe(`DELETE FROM offers WHERE id = `)
	q.Param(id)
	q.Unsafe(` AND owner_id = `)
	q.Param(caller)

	return execAffectingOne(q, ef, "offer")
}

func insertOfferTags(q *db.Query, ef execFunc, offerID int, tagIDs []int) error {
	if len(tagIDs) == 0 {
		return nil
	}

	q.Unsafe(`INSERT INTO offer_tags (offer_id, tag_id) VALUES `)
	for i, tagID := range tagIDs {
		if i > 0 {
			q.Unsafe(`, `)
		}
		q.Unsafe(`(`)
		q.Params(offerID, tagID)
		q.Unsafe(`)`)
	}

	s, params, err := q.Get()
	if err != nil {
		return err
	}

	_, err = ef(s, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

func deleteOfferTags(q *db.Query, ef execFunc, offerID int) error {
	q.Unsafe(`DELETE FROM offer_tags WHERE offer_id = `)
	q.Param(offerID)

	s, params, err := q.Get()
	if err != nil {
		return err
	}

	_, err = ef(s, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

func selectOffers(q *db.Query, qf queryFunc, caller int, f *offer.OfferFilter) ([]offer.Offer, error) {
	q.Unsafe(`SELECT id, owner_id, title, description, min_players, max_players, price_per_day, link, is_highlighted, created_at, updated_at FROM offers WHERE owner_id = `)
	q.Param(caller)

	if len(f.IDs) > 0 {
		q.Unsafe(` AND id IN (`)
		q.Params(db.AnySlice(f.IDs)...)
		q.Unsafe(`)`)
	}

	if len(f.TagIDs) > 0 {
		q.Unsafe(` AND id IN (SELECT offer_id FROM offer_tags WHERE tag_id IN (`)
		q.Params(db.AnySlice(f.TagIDs)...)
		q.Unsafe(`))`)
	}

	if f.IsHighlighted != nil {
		q.Unsafe(` AND is_highlighted = `)
		q.Param(*f.IsHighlighted)
	}

	q.Unsafe(` ORDER BY id DESC`)

	s, params, err := q.Get()
	if err != nil {
		return nil, err
	}

	rows, err := qf(s, params...)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}

	defer rows.Close()

	out := make([]offer.Offer, 0)
	for rows.Next() {
		var (
			o     offer.Offer
			price offer.NullPrice
		)

		err := rows.Scan(&o.ID, &o.OwnerID, &o.Title, &o.Description, &o.MinPlayers, &o.MaxPlayers, &price, &o.Link, &o.IsHighlighted, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, errorz.MapDBErr(err)
		}

		o.PricePerDay = price.Ptr()
		o.TagIDs = []int{}
		out = append(out, o)
	}

	if err := rows.Err(); err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return out, nil
}

// loadOfferTags sets the TagIDs of every offer, ordered ascending.
func loadOfferTags(q *db.Query, qf queryFunc, offers []offer.Offer) error {
	if len(offers) == 0 {
		return nil
	}

	index := make(map[int]int, len(offers))
	ids := make([]any, 0, len(offers))
	for i, o := range offers {
		index[o.ID] = i
		ids = append(ids, o.ID)
	}

	q.Unsafe(`SELECT offer_id, tag_id FROM offer_tags WHERE offer_id IN (`)
	q.Params(ids...)
	q.Unsafe(`) ORDER BY offer_id ASC, tag_id ASC`)

	s, params, err := q.Get()
	if err != nil {
		return err
	}

	rows, err := qf(s, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	defer rows.Close()

	for rows.Next() {
		var offerID, tagID int
		err := rows.Scan(&offerID, &tagID)
		if err != nil {
			return errorz.MapDBErr(err)
		}

		i := index[offerID]
		offers[i].TagIDs = append(offers[i].TagIDs, tagID)
	}

	if err := rows.Err(); err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

func execInsert(q *db.Query, ef execFunc) (int, error) {
	s, params, err := q.Get()
	if err != nil {
		return 0, err
	}

	result, err := ef(s, params...)
	if err != nil {
		return 0, errorz.MapDBErr(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errorz.MapDBErr(err)
	}

	return int(id), nil
}

func execAffectingOne(q *db.Query, ef execFunc, what string) error {
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
		return fmt.Errorf("%s not found: %w", what, errorz.ErrNotFound)
	}

	return nil
}

// priceParam returns NULL for a nil price, otherwise the price itself which
// is stored through its driver.Valuer.
func priceParam(p *offer.Price) any {
	if p == nil {
		return nil
	}
	return *p
}
