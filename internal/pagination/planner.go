package pagination

import "fmt"

// MaxPageSize caps the number of rows a single page may request.
const MaxPageSize = 100

// DefaultKind orders listings when the request carries no cursor at all.
const DefaultKind = KindOwnedAt

// RequestError reports pagination arguments a client must correct before
// retrying. Op names the operation being paginated.
type RequestError struct {
	Op     string
	Detail string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Op, e.Detail)
}

func badRequest(op, detail string) error {
	return &RequestError{Op: op, Detail: detail}
}

// PageArgs carries the raw pagination arguments of one request. Counts may be
// negative or oversized; Plan clamps them.
type PageArgs struct {
	After  *Cursor
	Before *Cursor
	First  *int
	Last   *int
}

// QuerySpec is a validated range scan over one sort key: both bounds are
// exclusive, Descending selects the scan direction, and Limit is the page
// size after clamping.
type QuerySpec struct {
	Kind       Kind
	Lower      Cursor
	Upper      Cursor
	Descending bool
	Limit      int
}

// FetchLimit is the row count the store should return: one past Limit so the
// connection builder can tell whether a further page exists.
func (s QuerySpec) FetchLimit() int {
	return s.Limit + 1
}

// Plan validates the request arguments and derives the range scan to execute.
// Validation follows a fixed order: conflicting counts, count defaulting and
// clamping, then cursor variant consistency.
func Plan(op string, args PageArgs) (QuerySpec, error) {
	if args.First != nil && args.Last != nil {
		return QuerySpec{}, badRequest(op, "first or last, not both")
	}
	first, last := args.First, args.Last
	if first == nil && last == nil {
		fallback := MaxPageSize
		first = &fallback
	}
	limit := MaxPageSize
	if first != nil {
		limit = clampLimit(*first)
	} else {
		limit = clampLimit(*last)
	}

	kind := DefaultKind
	var lower, upper Cursor
	switch {
	case args.After != nil && args.Before != nil:
		if args.After.Kind != args.Before.Kind {
			return QuerySpec{}, badRequest(op, "cursor type not match")
		}
		kind = args.After.Kind
		lower, upper = *args.After, *args.Before
	case args.After != nil:
		kind = args.After.Kind
		lower, upper = *args.After, kind.Max()
	case args.Before != nil:
		kind = args.Before.Kind
		lower, upper = kind.Min(), *args.Before
	default:
		lower, upper = kind.Min(), kind.Max()
	}

	return QuerySpec{
		Kind:       kind,
		Lower:      lower,
		Upper:      upper,
		Descending: last != nil,
		Limit:      limit,
	}, nil
}

func clampLimit(requested int) int {
	if requested < 0 {
		return 0
	}
	if requested > MaxPageSize {
		return MaxPageSize
	}
	return requested
}
