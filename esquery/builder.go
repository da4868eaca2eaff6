package esquery

import (
	"fmt"
	"time"
)

// Key and sizing for the top_hits sub-aggregation injected under every leaf
// bucket aggregation. The engine only carries matched source documents inside
// a bucket tree through top_hits, so the builder attaches one at each leaf
// and the extractor reads it back out.
const (
	leafDocsKey  = "docs"
	leafDocsSize = 100

	defaultBucketSize = 10
)

// Builder compiles query configurations into Elasticsearch query documents.
// It holds no mutable state; Build is pure given the config and the clock,
// so a single Builder is safe for concurrent use.
type Builder struct {
	now func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClock overrides the time source used to resolve relative date offsets.
// Supplying a fixed clock makes repeated builds byte-identical.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBuilder creates a query builder. The default clock is wall time.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build compiles cfg into a complete query document. Absent config sections
// are omitted from the output, never substituted with defaults: no size means
// the engine's default result window, no returnFields means all fields.
// All validation and compilation failures happen before anything is
// returned, so a caller never sees a partially built document.
func (b *Builder) Build(cfg *QueryConfig) (map[string]any, error) {
	if cfg == nil {
		cfg = &QueryConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now()
	query := make(map[string]any, 5)

	clauses, err := compileSearchFilters(cfg.SearchFilters, now)
	if err != nil {
		return nil, err
	}
	if len(clauses) == 0 {
		query["query"] = map[string]any{"match_all": map[string]any{}}
	} else {
		query["query"] = map[string]any{
			"bool": map[string]any{"filter": clauses},
		}
	}

	if len(cfg.SortList) > 0 {
		query["sort"] = compileSort(cfg.SortList)
	}
	if cfg.Size != nil {
		query["size"] = *cfg.Size
	}
	if len(cfg.ReturnFields) > 0 {
		query["_source"] = cfg.ReturnFields
	}
	if len(cfg.Aggs) > 0 {
		query["aggs"] = compileAggs(cfg.Aggs, cfg.ReturnFields)
	}

	return query, nil
}

// compileSearchFilters concatenates compiled equals and range clauses. The
// resulting list lands in the bool query's filter context, so every clause
// must match.
func compileSearchFilters(filters *SearchFilters, now time.Time) ([]any, error) {
	if filters == nil {
		return nil, nil
	}

	clauses := make([]any, 0, len(filters.Equals)+len(filters.RangeFilters))
	for i := range filters.Equals {
		clauses = append(clauses, compileEquals(&filters.Equals[i]))
	}
	for i := range filters.RangeFilters {
		path := fmt.Sprintf("searchFilters.rangeFilters[%d]", i)
		clause, err := compileRange(&filters.RangeFilters[i], now, path)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

// compileEquals emits an exact-term clause on field = value.
func compileEquals(f *EqualsFilter) map[string]any {
	return map[string]any{
		"term": map[string]any{f.Field: f.Value},
	}
}

// compileRange emits a range clause. Numeric bounds are copied through;
// relative date bounds are resolved against now and formatted per the
// filter's date format. Absent bounds are omitted, never defaulted.
func compileRange(f *RangeFilter, now time.Time, path string) (map[string]any, error) {
	cond := make(map[string]any, 5)

	for _, bound := range []struct {
		key string
		b   *Bound
	}{
		{"gte", f.GTE}, {"gt", f.GT}, {"lte", f.LTE}, {"lt", f.LT},
	} {
		if bound.b == nil {
			continue
		}
		value, err := compileBound(f, bound.b, now, path+"."+bound.key)
		if err != nil {
			return nil, err
		}
		cond[bound.key] = value
	}

	if f.RangeType == RangeTypeDate && f.DateFormat != "" {
		format, err := engineFormat(f.DateFormat, path+".dateFormat")
		if err != nil {
			return nil, err
		}
		cond["format"] = format
	}

	return map[string]any{
		"range": map[string]any{f.Field: cond},
	}, nil
}

func compileBound(f *RangeFilter, b *Bound, now time.Time, path string) (any, error) {
	// Literals pass through unresolved, both numeric and pre-formatted dates.
	if b.Kind == BoundLiteral {
		return b.Literal, nil
	}

	resolved, err := resolveOffset(now, b.Offset, path)
	if err != nil {
		return nil, err
	}
	layout, err := translateFormat(f.DateFormat, path)
	if err != nil {
		return nil, err
	}
	return resolved.Format(layout), nil
}

// compileSort preserves the config's sort order exactly; entry order is
// semantically significant to the engine.
func compileSort(sorts []SortSpec) []any {
	out := make([]any, 0, len(sorts))
	for i := range sorts {
		out = append(out, map[string]any{
			sorts[i].Field: map[string]any{"order": sorts[i].Order},
		})
	}
	return out
}

func compileAggs(aggs []AggSpec, returnFields []string) map[string]any {
	out := make(map[string]any, len(aggs))
	for i := range aggs {
		out[aggs[i].Name] = compileAgg(&aggs[i], returnFields)
	}
	return out
}

// compileAgg recursively compiles a terms bucket aggregation, nesting child
// aggregations under their own names. Depth is bounded only by the AggSpec tree.
func compileAgg(a *AggSpec, returnFields []string) map[string]any {
	size := a.Size
	if size <= 0 {
		size = defaultBucketSize
	}
	order := a.Order
	if order == "" {
		order = OrderDesc
	}

	clause := map[string]any{
		"terms": map[string]any{
			"field": a.Field,
			"size":  size,
			"order": map[string]any{"_count": order},
		},
	}

	if len(a.SubAggs) > 0 {
		clause["aggs"] = compileAggs(a.SubAggs, returnFields)
		return clause
	}

	topHits := map[string]any{"size": leafDocsSize}
	if len(returnFields) > 0 {
		topHits["_source"] = returnFields
	}
	clause["aggs"] = map[string]any{
		leafDocsKey: map[string]any{"top_hits": topHits},
	}
	return clause
}
