// Package esquery translates declarative query configurations into
// Elasticsearch query documents and extracts flat records from the
// (possibly deeply nested) responses.
//
// The package is pure: no I/O, no shared state. Building and parsing may run
// concurrently on independent inputs without coordination. Executing queries
// is the transport's job (see the estransport package).
package esquery

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Range value types accepted by RangeFilter.
const (
	RangeTypeNumber = "number"
	RangeTypeDate   = "date"
)

// Sort and bucket-order directions.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// EqualsFilter asserts exact-match equality on a field.
type EqualsFilter struct {
	Field string `json:"field" yaml:"field"`
	Value any    `json:"value" yaml:"value"`
}

// DateOffset is a relative date specification: move to the given calendar
// month/day, then shift the year by Years. Years may be negative. Month and
// Day are pointers so "absent" is distinguishable from zero.
type DateOffset struct {
	Years int  `json:"years,omitempty" yaml:"years,omitempty"`
	Month *int `json:"month,omitempty" yaml:"month,omitempty"`
	Day   *int `json:"day,omitempty" yaml:"day,omitempty"`
}

func (o *DateOffset) validate(path string) error {
	if o.Month != nil && (*o.Month < 1 || *o.Month > 12) {
		return pathErrorf(ErrInvalidDateSpec, path+".month", "must be between 1 and 12, got %d", *o.Month)
	}
	if o.Day != nil && (*o.Day < 1 || *o.Day > 31) {
		return pathErrorf(ErrInvalidDateSpec, path+".day", "must be between 1 and 31, got %d", *o.Day)
	}
	return nil
}

// BoundKind tags the two variants of a range bound.
type BoundKind int

const (
	// BoundLiteral is a scalar bound (number, or date string already in the
	// filter's date format). Literals pass through the builder unresolved.
	BoundLiteral BoundKind = iota + 1
	// BoundOffset is a relative date offset resolved against the builder's
	// clock at compile time.
	BoundOffset
)

// Bound is one endpoint of a range filter: either a literal scalar or a
// relative date offset. The variant is explicit rather than inferred from the
// value's dynamic type, so a mismatch is a validation error, never a guess.
type Bound struct {
	Kind    BoundKind
	Literal any
	Offset  *DateOffset
}

// Literal returns a literal bound.
func Literal(v any) *Bound {
	return &Bound{Kind: BoundLiteral, Literal: v}
}

// RelativeOffset returns a relative date offset bound.
func RelativeOffset(off DateOffset) *Bound {
	return &Bound{Kind: BoundOffset, Offset: &off}
}

// UnmarshalJSON decodes either a JSON object ({"years": -60, "month": 2})
// into an offset bound or any scalar into a literal bound.
func (b *Bound) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		var off DateOffset
		if err := dec.Decode(&off); err != nil {
			return fmt.Errorf("decode relative offset: %w", err)
		}
		b.Kind = BoundOffset
		b.Offset = &off
		b.Literal = nil
		return nil
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	b.Kind = BoundLiteral
	b.Literal = v
	b.Offset = nil
	return nil
}

// MarshalJSON emits the underlying variant value.
func (b Bound) MarshalJSON() ([]byte, error) {
	if b.Kind == BoundOffset {
		return json.Marshal(b.Offset)
	}
	return json.Marshal(b.Literal)
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML-shaped configurations.
func (b *Bound) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.MappingNode {
		var off DateOffset
		if err := value.Decode(&off); err != nil {
			return fmt.Errorf("decode relative offset: %w", err)
		}
		b.Kind = BoundOffset
		b.Offset = &off
		b.Literal = nil
		return nil
	}

	var v any
	if err := value.Decode(&v); err != nil {
		return err
	}
	b.Kind = BoundLiteral
	b.Literal = v
	b.Offset = nil
	return nil
}

// RangeFilter asserts a range condition on a numeric or date field. At least
// one bound must be present; gte/gt and lte/lt are mutually exclusive pairs.
// Date bounds may be literal strings (already formatted per DateFormat) or
// relative offsets resolved at build time.
type RangeFilter struct {
	Field      string `json:"field" yaml:"field"`
	RangeType  string `json:"rangeType" yaml:"rangeType"`
	GTE        *Bound `json:"gte,omitempty" yaml:"gte,omitempty"`
	LTE        *Bound `json:"lte,omitempty" yaml:"lte,omitempty"`
	GT         *Bound `json:"gt,omitempty" yaml:"gt,omitempty"`
	LT         *Bound `json:"lt,omitempty" yaml:"lt,omitempty"`
	DateFormat string `json:"dateFormat,omitempty" yaml:"dateFormat,omitempty"`
}

func (f *RangeFilter) validate(path string) error {
	if f.Field == "" {
		return pathErrorf(ErrInvalidFilterSpec, path+".field", "must not be empty")
	}
	if f.RangeType != RangeTypeNumber && f.RangeType != RangeTypeDate {
		return pathErrorf(ErrInvalidFilterSpec, path+".rangeType", "must be %q or %q, got %q",
			RangeTypeNumber, RangeTypeDate, f.RangeType)
	}
	if f.GTE == nil && f.LTE == nil && f.GT == nil && f.LT == nil {
		return pathErrorf(ErrInvalidFilterSpec, path, "at least one of gte, lte, gt, lt must be set")
	}
	if f.GTE != nil && f.GT != nil {
		return pathErrorf(ErrInvalidFilterSpec, path, "gte and gt are mutually exclusive")
	}
	if f.LTE != nil && f.LT != nil {
		return pathErrorf(ErrInvalidFilterSpec, path, "lte and lt are mutually exclusive")
	}

	for _, bound := range []struct {
		key string
		b   *Bound
	}{
		{"gte", f.GTE}, {"lte", f.LTE}, {"gt", f.GT}, {"lt", f.LT},
	} {
		if bound.b == nil {
			continue
		}
		boundPath := path + "." + bound.key
		switch bound.b.Kind {
		case BoundLiteral:
			if bound.b.Literal == nil {
				return pathErrorf(ErrInvalidFilterSpec, boundPath, "literal bound must not be null")
			}
		case BoundOffset:
			if f.RangeType != RangeTypeDate {
				return pathErrorf(ErrInvalidFilterSpec, boundPath,
					"relative offsets are only valid for date ranges")
			}
			if err := bound.b.Offset.validate(boundPath); err != nil {
				return err
			}
		default:
			return pathErrorf(ErrInvalidFilterSpec, boundPath, "bound has no value")
		}
	}
	return nil
}

// SearchFilters groups all filter conditions. Every entry must match
// (logical AND); this is fixed by design, not a per-filter option.
type SearchFilters struct {
	Equals       []EqualsFilter `json:"equals,omitempty" yaml:"equals,omitempty"`
	RangeFilters []RangeFilter  `json:"rangeFilters,omitempty" yaml:"rangeFilters,omitempty"`
}

func (s *SearchFilters) validate(path string) error {
	for i := range s.Equals {
		if s.Equals[i].Field == "" {
			return pathErrorf(ErrInvalidFilterSpec, fmt.Sprintf("%s.equals[%d].field", path, i), "must not be empty")
		}
	}
	for i := range s.RangeFilters {
		if err := s.RangeFilters[i].validate(fmt.Sprintf("%s.rangeFilters[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// SortSpec is one sort clause. The order of SortSpec entries in a config is
// significant and preserved exactly in the emitted query.
type SortSpec struct {
	Field string `json:"field" yaml:"field"`
	Order string `json:"order" yaml:"order"`
}

// AggSpec describes one bucket aggregation. SubAggs nest to unlimited depth;
// sibling names must be unique because the name keys the bucket list at that
// level of the response.
type AggSpec struct {
	Name    string    `json:"name" yaml:"name"`
	Field   string    `json:"field" yaml:"field"`
	Size    int       `json:"size,omitempty" yaml:"size,omitempty"`
	Order   string    `json:"order,omitempty" yaml:"order,omitempty"`
	SubAggs []AggSpec `json:"subAggs,omitempty" yaml:"subAggs,omitempty"`
}

func validateAggs(aggs []AggSpec, path string) error {
	seen := make(map[string]struct{}, len(aggs))
	for i := range aggs {
		a := &aggs[i]
		aggPath := fmt.Sprintf("%s[%d]", path, i)
		if a.Name == "" {
			return pathErrorf(ErrInvalidFilterSpec, aggPath+".name", "must not be empty")
		}
		if a.Field == "" {
			return pathErrorf(ErrInvalidFilterSpec, aggPath+".field", "must not be empty")
		}
		if a.Order != "" && a.Order != OrderAsc && a.Order != OrderDesc {
			return pathErrorf(ErrInvalidFilterSpec, aggPath+".order", "must be %q or %q, got %q",
				OrderAsc, OrderDesc, a.Order)
		}
		if _, dup := seen[a.Name]; dup {
			return pathErrorf(ErrDuplicateAggName, aggPath+".name", "%q already used by a sibling aggregation", a.Name)
		}
		seen[a.Name] = struct{}{}
		if err := validateAggs(a.SubAggs, aggPath+".subAggs"); err != nil {
			return err
		}
	}
	return nil
}

// QueryConfig is the root configuration. Every section is optional; an empty
// config still builds a valid match-all query. Size is a pointer so an absent
// size is omitted from the query rather than defaulted.
type QueryConfig struct {
	SearchFilters *SearchFilters `json:"searchFilters,omitempty" yaml:"searchFilters,omitempty"`
	SortList      []SortSpec     `json:"sortList,omitempty" yaml:"sortList,omitempty"`
	Size          *int           `json:"size,omitempty" yaml:"size,omitempty"`
	ReturnFields  []string       `json:"returnFields,omitempty" yaml:"returnFields,omitempty"`
	Aggs          []AggSpec      `json:"aggs,omitempty" yaml:"aggs,omitempty"`
}

// Validate checks every invariant of the configuration, reporting the first
// violation with the offending field path. Build calls it before emitting
// anything, so a caller never receives a partially built query.
func (c *QueryConfig) Validate() error {
	if c.SearchFilters != nil {
		if err := c.SearchFilters.validate("searchFilters"); err != nil {
			return err
		}
	}
	for i := range c.SortList {
		s := &c.SortList[i]
		if s.Field == "" {
			return pathErrorf(ErrInvalidFilterSpec, fmt.Sprintf("sortList[%d].field", i), "must not be empty")
		}
		if s.Order != OrderAsc && s.Order != OrderDesc {
			return pathErrorf(ErrInvalidFilterSpec, fmt.Sprintf("sortList[%d].order", i),
				"must be %q or %q, got %q", OrderAsc, OrderDesc, s.Order)
		}
	}
	if c.Size != nil && *c.Size < 0 {
		return pathErrorf(ErrInvalidFilterSpec, "size", "must not be negative, got %d", *c.Size)
	}
	return validateAggs(c.Aggs, "aggs")
}

// ParseConfig decodes a JSON-shaped configuration and validates it.
func ParseConfig(data []byte) (*QueryConfig, error) {
	var cfg QueryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode query config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
