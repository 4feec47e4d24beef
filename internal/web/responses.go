package web

import (
	"github.com/willemschots/rentals/internal/auth"
	"github.com/willemschots/rentals/internal/email"
	"github.com/willemschots/rentals/internal/offer"
)

type userResponse struct {
	ID    int           `json:"id"`
	Email email.Address `json:"email"`
	Name  string        `json:"name"`
}

func newUserResponse(u auth.User) userResponse {
	return userResponse{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
	}
}

type tokenResponse struct {
	Token string `json:"token"`
	// ExpiresIn is the number of seconds the token remains valid.
	ExpiresIn int `json:"expires_in"`
}

type tagResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func newTagResponse(t offer.Tag) tagResponse {
	return tagResponse{
		ID:   t.ID,
		Name: t.Name,
	}
}

func newTagResponses(tags []offer.Tag) []tagResponse {
	out := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, newTagResponse(t))
	}
	return out
}

// offerResponse is the representation of an offer. A blank price is null.
type offerResponse struct {
	ID            int          `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Tags          []int        `json:"tags"`
	MinPlayers    int          `json:"min_players"`
	MaxPlayers    int          `json:"max_players"`
	PricePerDay   *offer.Price `json:"price_per_day"`
	Link          string       `json:"link"`
	IsHighlighted bool         `json:"is_highlighted"`
}

func newOfferResponse(o offer.Offer) offerResponse {
	tags := o.TagIDs
	if tags == nil {
		tags = []int{}
	}

	return offerResponse{
		ID:            o.ID,
		Title:         o.Title,
		Description:   o.Description,
		Tags:          tags,
		MinPlayers:    o.MinPlayers,
		MaxPlayers:    o.MaxPlayers,
		PricePerDay:   o.PricePerDay,
		Link:          o.Link,
		IsHighlighted: o.IsHighlighted,
	}
}

func newOfferResponses(offers []offer.Offer) []offerResponse {
	out := make([]offerResponse, 0, len(offers))
	for _, o := range offers {
		out = append(out, newOfferResponse(o))
	}
	return out
}

// errorResponse is the body of every failed request. Fields is only
// set for invalid input and holds the reasons per field.
type errorResponse struct {
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}
