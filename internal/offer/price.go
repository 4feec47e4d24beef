package offer

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/willemschots/rentals/internal/validate"
)

// The price_per_day validation tag of OfferInput spells out these values as
// "decimal=5.2", keep both in sync.
const (
	// PricePrecision is the maximum number of digits in a price.
	PricePrecision = 5
	// PriceScale is the number of decimals in a price.
	PriceScale = 2
)

var ErrInvalidPrice = errors.New("invalid price")

// Price is a fixed point price per day. It is kept at two decimals.
type Price struct {
	d decimal.Decimal
}

// ParsePrice parses a price such as "5", "5.5" or "5.00". It accepts at most
// PricePrecision digits of which at most PriceScale are decimals.
func ParsePrice(s string) (Price, error) {
	// Checked before rounding, rounding "1e1000000000" would expand it.
	if !validate.FitsDecimal(s, PricePrecision, PriceScale) {
		return Price{}, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}

	return Price{d: d.Round(PriceScale)}, nil
}

// String returns the price with exactly two decimals.
func (p Price) String() string {
	return p.d.StringFixed(PriceScale)
}

func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Value implements driver.Valuer. Prices are stored in their text form.
func (p Price) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements sql.Scanner.
func (p *Price) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		s = fmt.Sprint(v)
	case float64:
		s = decimal.NewFromFloat(v).String()
	default:
		return fmt.Errorf("%w: can't scan %T", ErrInvalidPrice, src)
	}

	parsed, err := ParsePrice(s)
	if err != nil {
		return err
	}

	*p = parsed
	return nil
}

// NullPrice is a price that may be NULL in the database.
type NullPrice struct {
	Price Price
	Valid bool
}

// Scan implements sql.Scanner.
func (n *NullPrice) Scan(src any) error {
	if src == nil {
		*n = NullPrice{}
		return nil
	}

	err := n.Price.Scan(src)
	if err != nil {
		return err
	}

	n.Valid = true
	return nil
}

// Ptr returns the price, or nil when it's NULL.
func (n NullPrice) Ptr() *Price {
	if !n.Valid {
		return nil
	}
	p := n.Price
	return &p
}

// PriceText is a price as it appears in input, before validation. It decodes
// from a JSON string or number. Null and "" both decode to an empty PriceText.
type PriceText string

func (t *PriceText) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}

	var s string
	if len(b) > 0 && b[0] == '"' {
		err := json.Unmarshal(b, &s)
		if err != nil {
			return err
		}
		*t = PriceText(s)
		return nil
	}

	var n json.Number
	err := json.Unmarshal(b, &n)
	if err != nil {
		return err
	}

	*t = PriceText(n.String())
	return nil
}

// Price converts the text to a price. An empty text results in a nil price.
func (t PriceText) Price() (*Price, error) {
	if t == "" {
		return nil, nil
	}

	p, err := ParsePrice(string(t))
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// PriceTextOf returns the text form of p, or "" for a nil price.
func PriceTextOf(p *Price) PriceText {
	if p == nil {
		return ""
	}
	return PriceText(p.String())
}

// PricePatch is an optional price in a partial update. Set is true when the
// field was present in the input, an explicit null clears the price.
type PricePatch struct {
	Set  bool
	Text PriceText
}

func (p *PricePatch) UnmarshalJSON(b []byte) error {
	err := p.Text.UnmarshalJSON(b)
	if err != nil {
		return err
	}

	p.Set = true
	return nil
}
