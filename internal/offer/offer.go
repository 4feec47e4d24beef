package offer

import (
	"slices"
	"strings"
	"time"
)

// Tag is a category label owned by a user. It can be attached to the offers of any user.
type Tag struct {
	ID        int
	OwnerID   int
	Name      string
	CreatedAt time.Time
}

// Offer is an item available for rent, owned by a single user.
type Offer struct {
	ID          int
	OwnerID     int
	Title       string
	Description string
	MinPlayers  int
	MaxPlayers  int
	// PricePerDay is nil when no price was provided.
	PricePerDay   *Price
	Link          string
	IsHighlighted bool
	// TagIDs is sorted ascending and holds no duplicates.
	TagIDs    []int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TagInput is the input used to create a tag.
type TagInput struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (in *TagInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
}

// OfferInput is the input used to create an offer or to replace all of its fields.
// Player counts are pointers so that a missing count can be told apart from zero.
type OfferInput struct {
	Title         string    `json:"title" validate:"required,max=255"`
	Description   string    `json:"description" validate:"required,max=500"`
	MinPlayers    *int      `json:"min_players" validate:"required"`
	MaxPlayers    *int      `json:"max_players" validate:"required"`
	PricePerDay   PriceText `json:"price_per_day" validate:"omitempty,decimal=5.2"`
	Link          string    `json:"link" validate:"max=255"`
	Tags          []int     `json:"tags"`
	IsHighlighted bool      `json:"is_highlighted"`
}

func (in *OfferInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Link = strings.TrimSpace(in.Link)
	in.PricePerDay = PriceText(strings.TrimSpace(string(in.PricePerDay)))
	in.Tags = uniqueSorted(in.Tags)
}

// apply copies the validated input onto o.
func (in OfferInput) apply(o *Offer) error {
	price, err := in.PricePerDay.Price()
	if err != nil {
		return err
	}

	o.Title = in.Title
	o.Description = in.Description
	o.MinPlayers = *in.MinPlayers
	o.MaxPlayers = *in.MaxPlayers
	o.PricePerDay = price
	o.Link = in.Link
	o.IsHighlighted = in.IsHighlighted
	o.TagIDs = in.Tags

	return nil
}

// OfferPatch is a partial update of an offer. Only non-nil fields are changed.
type OfferPatch struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	MinPlayers    *int       `json:"min_players"`
	MaxPlayers    *int       `json:"max_players"`
	PricePerDay   PricePatch `json:"price_per_day"`
	Link          *string    `json:"link"`
	Tags          *[]int     `json:"tags"`
	IsHighlighted *bool      `json:"is_highlighted"`
}

// Apply merges the patch onto the current state of an offer. The result
// is a full input that is validated like any other.
func (p OfferPatch) Apply(o Offer) OfferInput {
	in := OfferInput{
		Title:         o.Title,
		Description:   o.Description,
		MinPlayers:    ptr(o.MinPlayers),
		MaxPlayers:    ptr(o.MaxPlayers),
		PricePerDay:   PriceTextOf(o.PricePerDay),
		Link:          o.Link,
		Tags:          slices.Clone(o.TagIDs),
		IsHighlighted: o.IsHighlighted,
	}

	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.MinPlayers != nil {
		in.MinPlayers = ptr(*p.MinPlayers)
	}
	if p.MaxPlayers != nil {
		in.MaxPlayers = ptr(*p.MaxPlayers)
	}
	if p.PricePerDay.Set {
		in.PricePerDay = p.PricePerDay.Text
	}
	if p.Link != nil {
		in.Link = *p.Link
	}
	if p.Tags != nil {
		in.Tags = slices.Clone(*p.Tags)
	}
	if p.IsHighlighted != nil {
		in.IsHighlighted = *p.IsHighlighted
	}

	return in
}

func uniqueSorted(ids []int) []int {
	out := slices.Clone(ids)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []int{}
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
