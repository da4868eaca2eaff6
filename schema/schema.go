// Package schema compares expected index schemas (mappings or settings)
// against the documents a live cluster reports. Comparison is structural:
// every field in the expected document must exist in the actual document with
// the same shape, while extra fields in the actual document are reported but
// do not fail validation.
package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Result holds the differences between an expected and an actual schema.
type Result struct {
	// Missing lists dotted paths present in expected but absent from actual.
	Missing []string

	// Mismatched lists dotted paths whose values differ in type or, for
	// scalars, in value.
	Mismatched []string

	// Extra lists dotted paths present in actual but not in expected.
	Extra []string
}

// Valid reports whether the actual schema satisfies the expected one. Extra
// fields do not make a schema invalid.
func (r *Result) Valid() bool {
	return len(r.Missing) == 0 && len(r.Mismatched) == 0
}

// Report renders the differences as a human-readable multi-line string.
// Returns an empty string when the schemas match exactly.
func (r *Result) Report() string {
	var b strings.Builder
	writeSection := func(header string, paths []string) {
		if len(paths) == 0 {
			return
		}
		b.WriteString(header)
		b.WriteString(":\n")
		for _, p := range paths {
			b.WriteString("  ")
			b.WriteString(p)
			b.WriteString("\n")
		}
	}
	writeSection("missing fields", r.Missing)
	writeSection("mismatched fields", r.Mismatched)
	writeSection("extra fields", r.Extra)
	return b.String()
}

// Compare walks expected and actual recursively and records differences at
// dotted paths (e.g. "mappings.properties.title.type").
func Compare(expected, actual map[string]any) *Result {
	res := &Result{}
	compareMaps(expected, actual, "", res)
	sort.Strings(res.Missing)
	sort.Strings(res.Mismatched)
	sort.Strings(res.Extra)
	return res
}

func compareMaps(expected, actual map[string]any, prefix string, res *Result) {
	for key, expVal := range expected {
		path := joinPath(prefix, key)
		actVal, ok := actual[key]
		if !ok {
			res.Missing = append(res.Missing, path)
			continue
		}
		compareValues(expVal, actVal, path, res)
	}
	for key := range actual {
		if _, ok := expected[key]; !ok {
			res.Extra = append(res.Extra, joinPath(prefix, key))
		}
	}
}

func compareValues(expected, actual any, path string, res *Result) {
	expMap, expIsMap := asMap(expected)
	actMap, actIsMap := asMap(actual)

	switch {
	case expIsMap && actIsMap:
		compareMaps(expMap, actMap, path, res)
	case expIsMap != actIsMap:
		res.Mismatched = append(res.Mismatched, path)
	default:
		if !scalarEqual(expected, actual) {
			res.Mismatched = append(res.Mismatched, path)
		}
	}
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// scalarEqual compares leaf values. Numbers are compared by their string
// rendering since JSON decoding yields float64 while in-code schemas often
// carry int.
func scalarEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	if isNumber(a) && isNumber(b) {
		return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
	}
	return false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
