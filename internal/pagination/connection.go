package pagination

import "cardhall/internal/models"

// Edge pairs a card with the cursor addressing its position.
type Edge struct {
	Cursor string      `json:"cursor"`
	Node   models.Card `json:"node"`
}

// PageInfo reports whether paging can continue in either direction.
type PageInfo struct {
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// Connection is the client-facing page shape.
type Connection struct {
	Edges    []Edge   `json:"edges"`
	PageInfo PageInfo `json:"pageInfo"`
}

// CursorFor derives the per-row cursor for the active sort key.
func CursorFor(kind Kind, card models.Card) Cursor {
	if kind == KindRating {
		return RatingCursor(card.Rating)
	}
	return OwnedAtCursor(card.OwnedAt)
}

// BuildConnection assembles a connection from the rows a QuerySpec scan
// returned. rows must be ordered per spec.Descending and may hold up to
// FetchLimit entries; the row past Limit is a probe proving a further page
// exists and is dropped. Edges always come out ascending by sort key,
// whichever direction was scanned.
//
// The flag pointing away from the scan direction comes from the probe row;
// the opposite flag is true when the matching bound was client-supplied
// rather than a sentinel.
func BuildConnection(spec QuerySpec, rows []models.Card) (Connection, error) {
	more := len(rows) > spec.Limit
	if more {
		rows = rows[:spec.Limit]
	}

	var info PageInfo
	if spec.Descending {
		info.HasPreviousPage = more
		info.HasNextPage = !spec.Upper.Equal(spec.Kind.Max())
		reverse(rows)
	} else {
		info.HasNextPage = more
		info.HasPreviousPage = !spec.Lower.Equal(spec.Kind.Min())
	}

	edges := make([]Edge, 0, len(rows))
	for _, card := range rows {
		encoded, err := CursorFor(spec.Kind, card).Encode()
		if err != nil {
			return Connection{}, err
		}
		edges = append(edges, Edge{Cursor: encoded, Node: card})
	}
	return Connection{Edges: edges, PageInfo: info}, nil
}

func reverse(rows []models.Card) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
