package esquery

import (
	"errors"
	"fmt"
)

// Sentinel errors for the four failure classes. The first three are raised
// while validating or building a query, the last while parsing a response.
// All wrapped errors carry the offending field path and match with errors.Is.
var (
	// ErrInvalidFilterSpec indicates a malformed or contradictory filter,
	// e.g. both gte and gt set on the same range filter.
	ErrInvalidFilterSpec = errors.New("invalid filter spec")

	// ErrInvalidDateSpec indicates a malformed relative-date offset or an
	// unsupported date format token.
	ErrInvalidDateSpec = errors.New("invalid date spec")

	// ErrDuplicateAggName indicates two sibling aggregations sharing a name.
	ErrDuplicateAggName = errors.New("duplicate aggregation name")

	// ErrMalformedAggregationResponse indicates a response whose aggregation
	// nesting does not match the requested aggregation tree.
	ErrMalformedAggregationResponse = errors.New("malformed aggregation response")
)

// pathErrorf wraps sentinel with the field path at which the problem was
// detected, e.g. "searchFilters.rangeFilters[2].gte".
func pathErrorf(sentinel error, path, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", path, fmt.Sprintf(format, args...), sentinel)
}
