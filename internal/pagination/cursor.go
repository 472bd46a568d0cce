package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Kind identifies the sort key a cursor points into.
type Kind string

const (
	// KindOwnedAt orders cards by acquisition time.
	KindOwnedAt Kind = "ownedAt"
	// KindRating orders cards by numeric rating.
	KindRating Kind = "rating"
)

// Range sentinels used when the client omits a bound. The timestamp values
// stay inside the range Postgres can represent.
var (
	minOwnedAt = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxOwnedAt = time.Date(9999, time.December, 31, 23, 59, 59, 999999000, time.UTC)
)

const (
	minRating = -math.MaxFloat64
	maxRating = math.MaxFloat64
)

// Cursor is an opaque pointer to a row position in an ordered card listing.
// Exactly one value field is meaningful, selected by Kind.
type Cursor struct {
	Kind    Kind
	OwnedAt time.Time
	Rating  float64
}

// OwnedAtCursor builds a cursor for the acquisition-time sort key.
func OwnedAtCursor(ownedAt time.Time) Cursor {
	return Cursor{Kind: KindOwnedAt, OwnedAt: ownedAt.UTC()}
}

// RatingCursor builds a cursor for the rating sort key.
func RatingCursor(rating float64) Cursor {
	return Cursor{Kind: KindRating, Rating: rating}
}

// Min returns the open lower bound used when no after cursor was supplied.
func (k Kind) Min() Cursor {
	if k == KindRating {
		return RatingCursor(minRating)
	}
	return OwnedAtCursor(minOwnedAt)
}

// Max returns the open upper bound used when no before cursor was supplied.
func (k Kind) Max() Cursor {
	if k == KindRating {
		return RatingCursor(maxRating)
	}
	return OwnedAtCursor(maxOwnedAt)
}

// Equal compares two cursors by kind and active value. Timestamps compare by
// instant, so differing locations do not break equality.
func (c Cursor) Equal(other Cursor) bool {
	if c.Kind != other.Kind {
		return false
	}
	if c.Kind == KindRating {
		return c.Rating == other.Rating
	}
	return c.OwnedAt.Equal(other.OwnedAt)
}

// cursorWire is the serialized cursor shape. Timestamps travel as Unix
// microseconds, matching the precision the datastore retains, so a cursor
// built from a stored row round-trips exactly.
type cursorWire struct {
	Kind    Kind     `json:"k"`
	OwnedAt *int64   `json:"o,omitempty"`
	Rating  *float64 `json:"r,omitempty"`
}

// Encode renders the cursor as a URL-safe opaque string. Clients must return
// it unmodified; the layout is not part of the API contract.
func (c Cursor) Encode() (string, error) {
	wire := cursorWire{Kind: c.Kind}
	switch c.Kind {
	case KindOwnedAt:
		micros := c.OwnedAt.UnixMicro()
		wire.OwnedAt = &micros
	case KindRating:
		rating := c.Rating
		wire.Rating = &rating
	default:
		return "", fmt.Errorf("encode cursor: unknown kind %q", c.Kind)
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// DecodeError reports a cursor string that could not be parsed. It is a
// client-caused validation failure, never an internal one.
type DecodeError struct {
	cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed cursor: %v", e.cause)
}

func (e *DecodeError) Unwrap() error {
	return e.cause
}

// Decode parses a cursor previously produced by Encode. Arbitrary or corrupted
// input yields a *DecodeError.
func Decode(value string) (Cursor, error) {
	payload, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return Cursor{}, &DecodeError{cause: err}
	}
	var wire cursorWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Cursor{}, &DecodeError{cause: err}
	}
	switch wire.Kind {
	case KindOwnedAt:
		if wire.OwnedAt == nil {
			return Cursor{}, &DecodeError{cause: fmt.Errorf("missing ownedAt value")}
		}
		return OwnedAtCursor(time.UnixMicro(*wire.OwnedAt)), nil
	case KindRating:
		if wire.Rating == nil {
			return Cursor{}, &DecodeError{cause: fmt.Errorf("missing rating value")}
		}
		return RatingCursor(*wire.Rating), nil
	default:
		return Cursor{}, &DecodeError{cause: fmt.Errorf("unknown kind %q", wire.Kind)}
	}
}
