package offer

import (
	"context"
	"fmt"

	"github.com/willemschots/rentals/internal/errorz"
)

// ErrNoCaller is returned by stores when an operation is attempted without a caller.
var ErrNoCaller = fmt.Errorf("%w: no caller", errorz.ErrUnauthenticated)

// TagFilter is used to filter tags.
// If a field is empty or nil, it's ignored.
type TagFilter struct {
	IDs []int
}

// OfferFilter is used to filter offers.
// Returned offers must match all the provided fields.
// If a field is empty or nil, it's ignored.
type OfferFilter struct {
	IDs []int
	// TagIDs matches offers that have at least one of the tags.
	TagIDs        []int
	IsHighlighted *bool
}

// Store provides access to tags and offers.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a transaction. If an error occurs on any of the Create/Update/Delete/Find methods,
// the transaction is considered to have failed and should be rolled back.
// Tx is not safe for concurrent use.
//
// Every method that reads or writes tags or offers takes the id of the caller and
// only ever touches records owned by the caller. A zero caller results in ErrNoCaller.
type Tx interface {
	Commit() error
	Rollback() error

	CreateTag(caller int, t *Tag) error
	FindTags(caller int, filter *TagFilter) ([]Tag, error)

	// ExistingTagIDs returns which of the given ids belong to an existing tag, of any owner.
	ExistingTagIDs(ids []int) ([]int, error)

	CreateOffer(caller int, o *Offer) error
	UpdateOffer(caller int, o *Offer) error
	DeleteOffer(caller int, id int) error
	FindOffers(caller int, filter *OfferFilter) ([]Offer, error)
}
