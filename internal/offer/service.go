package offer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/willemschots/rentals/internal/errorz"
)

// ErrUnknownTag indicates a tag id that does not belong to any tag.
var ErrUnknownTag = errors.New("tag does not exist")

// Validator validates input structs.
type Validator interface {
	Validate(s any) error
}

// Service is the type that provides the rules for managing tags and offers.
// Every operation acts on behalf of a caller and only sees the caller's records.
type Service struct {
	store     Store
	validator Validator

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(s Store, v Validator) *Service {
	return &Service{
		store:     s,
		validator: v,
		NowFunc:   time.Now,
	}
}

// ListTags lists the tags of the caller, ordered by name descending.
func (s *Service) ListTags(ctx context.Context, caller int) ([]Tag, error) {
	var tags []Tag
	err := s.inTx(ctx, func(tx Tx) error {
		var txErr error
		tags, txErr = tx.FindTags(caller, &TagFilter{})
		return txErr
	})
	if err != nil {
		return nil, err
	}

	return tags, nil
}

// CreateTag creates a tag owned by the caller.
func (s *Service) CreateTag(ctx context.Context, caller int, in TagInput) (Tag, error) {
	in.normalize()

	err := s.validator.Validate(in)
	if err != nil {
		return Tag{}, err
	}

	tag := Tag{
		OwnerID:   caller,
		Name:      in.Name,
		CreatedAt: s.NowFunc(),
	}

	err = s.inTx(ctx, func(tx Tx) error {
		return tx.CreateTag(caller, &tag)
	})
	if err != nil {
		return Tag{}, err
	}

	return tag, nil
}

// ListOffers lists the offers of the caller that match the filter, newest first.
func (s *Service) ListOffers(ctx context.Context, caller int, filter OfferFilter) ([]Offer, error) {
	var offers []Offer
	err := s.inTx(ctx, func(tx Tx) error {
		var txErr error
		offers, txErr = tx.FindOffers(caller, &filter)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	return offers, nil
}

// CreateOffer creates an offer owned by the caller. All tags must exist, but
// they may be owned by anyone. The offer and its tags are stored atomically.
func (s *Service) CreateOffer(ctx context.Context, caller int, in OfferInput) (Offer, error) {
	in.normalize()

	err := s.validator.Validate(in)
	if err != nil {
		return Offer{}, err
	}

	now := s.NowFunc()
	o := Offer{
		OwnerID:   caller,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = in.apply(&o)
	if err != nil {
		return Offer{}, keyed("price_per_day", err)
	}

	err = s.inTx(ctx, func(tx Tx) error {
		txErr := checkTags(tx, o.TagIDs)
		if txErr != nil {
			return txErr
		}

		return tx.CreateOffer(caller, &o)
	})
	if err != nil {
		return Offer{}, err
	}

	return o, nil
}

// GetOffer gets an offer of the caller. Offers of other users
// result in errorz.ErrNotFound, like offers that don't exist.
func (s *Service) GetOffer(ctx context.Context, caller, id int) (Offer, error) {
	var o Offer
	err := s.inTx(ctx, func(tx Tx) error {
		var txErr error
		o, txErr = findOffer(tx, caller, id)
		return txErr
	})
	if err != nil {
		return Offer{}, err
	}

	return o, nil
}

// UpdateOffer replaces all fields of an offer of the caller.
func (s *Service) UpdateOffer(ctx context.Context, caller, id int, in OfferInput) (Offer, error) {
	in.normalize()

	var o Offer
	err := s.inTx(ctx, func(tx Tx) error {
		var txErr error
		o, txErr = s.replaceOffer(tx, caller, id, func(Offer) OfferInput {
			return in
		})
		return txErr
	})
	if err != nil {
		return Offer{}, err
	}

	return o, nil
}

// PatchOffer changes the fields of an offer of the caller that are set in the patch.
// The resulting offer needs to be valid as a whole.
func (s *Service) PatchOffer(ctx context.Context, caller, id int, p OfferPatch) (Offer, error) {
	var o Offer
	err := s.inTx(ctx, func(tx Tx) error {
		var txErr error
		o, txErr = s.replaceOffer(tx, caller, id, func(current Offer) OfferInput {
			in := p.Apply(current)
			in.normalize()
			return in
		})
		return txErr
	})
	if err != nil {
		return Offer{}, err
	}

	return o, nil
}

// replaceOffer finds the offer before validating, so that offers of
// others are reported as not found even when the input is invalid.
func (s *Service) replaceOffer(tx Tx, caller, id int, inputFunc func(Offer) OfferInput) (Offer, error) {
	o, err := findOffer(tx, caller, id)
	if err != nil {
		return Offer{}, err
	}

	in := inputFunc(o)

	err = s.validator.Validate(in)
	if err != nil {
		return Offer{}, err
	}

	err = in.apply(&o)
	if err != nil {
		return Offer{}, keyed("price_per_day", err)
	}

	err = checkTags(tx, o.TagIDs)
	if err != nil {
		return Offer{}, err
	}

	o.UpdatedAt = s.NowFunc()

	err = tx.UpdateOffer(caller, &o)
	if err != nil {
		return Offer{}, err
	}

	return o, nil
}

// DeleteOffer deletes an offer of the caller, including its tag links.
func (s *Service) DeleteOffer(ctx context.Context, caller, id int) error {
	return s.inTx(ctx, func(tx Tx) error {
		return tx.DeleteOffer(caller, id)
	})
}

func findOffer(tx Tx, caller, id int) (Offer, error) {
	offers, err := tx.FindOffers(caller, &OfferFilter{
		IDs: []int{id},
	})
	if err != nil {
		return Offer{}, err
	}

	if len(offers) != 1 {
		return Offer{}, errorz.ErrNotFound
	}

	return offers[0], nil
}

// checkTags verifies that every tag id belongs to an existing tag.
func checkTags(tx Tx, ids []int) error {
	if len(ids) == 0 {
		return nil
	}

	existing, err := tx.ExistingTagIDs(ids)
	if err != nil {
		return err
	}

	var errs errorz.InvalidInput
	for _, id := range ids {
		if !slices.Contains(existing, id) {
			errs = append(errs, errorz.Keyed{
				Key: "tags",
				Err: fmt.Errorf("%w: %d", ErrUnknownTag, id),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

func keyed(key string, err error) error {
	return errorz.InvalidInput{errorz.Keyed{Key: key, Err: err}}
}

func (s *Service) inTx(ctx context.Context, f func(tx Tx) error) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}

	err = f(tx)
	if err != nil {
		rBackErr := tx.Rollback()
		if rBackErr != nil {
			err = errors.Join(err, rBackErr)
		}
		return err
	}

	return tx.Commit()
}
