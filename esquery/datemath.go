package esquery

import (
	"strings"
	"time"
)

// DefaultDateFormat is the engine-native date format used when a date range
// filter does not specify one.
const DefaultDateFormat = "yyyy-MM-dd"

// Resolve converts a relative date offset into a concrete date anchored at
// base. The order of operations is fixed: set the month, set the day, then
// shift the year. The day is clamped to the length of the target month at
// every step, so Feb 29 becomes Feb 28 when the year shift lands on a
// non-leap year. Clock components and location are carried from base.
func Resolve(base time.Time, off DateOffset) (time.Time, error) {
	return resolveOffset(base, &off, "offset")
}

func resolveOffset(base time.Time, off *DateOffset, path string) (time.Time, error) {
	if err := off.validate(path); err != nil {
		return time.Time{}, err
	}

	year, month, day := base.Date()
	if off.Month != nil {
		month = time.Month(*off.Month)
		day = clampDay(day, year, month)
	}
	if off.Day != nil {
		day = clampDay(*off.Day, year, month)
	}
	year += off.Years
	day = clampDay(day, year, month)

	hour, min, sec := base.Clock()
	return time.Date(year, month, day, hour, min, sec, base.Nanosecond(), base.Location()), nil
}

func clampDay(day, year int, month time.Month) int {
	if last := daysIn(year, month); day > last {
		return last
	}
	return day
}

// daysIn returns the number of days in the given month. Day zero of the next
// month normalizes to the last day of this one.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// strftime directives mapped to Go reference-layout fragments and to the
// engine's java-time tokens (the notation the range clause's "format" key
// requires).
var strftimeLayouts = map[byte]struct {
	goLayout string
	engine   string
}{
	'Y': {"2006", "yyyy"},
	'y': {"06", "yy"},
	'm': {"01", "MM"},
	'd': {"02", "dd"},
	'H': {"15", "HH"},
	'M': {"04", "mm"},
	'S': {"05", "ss"},
	'b': {"Jan", "MMM"},
	'B': {"January", "MMMM"},
	'a': {"Mon", "EEE"},
	'A': {"Monday", "EEEE"},
	'p': {"PM", "a"},
}

// Date-format tokens in the engine's own (java-time) notation, longest first
// so "yyyy" is not consumed as two "yy".
var engineLayouts = []struct {
	token  string
	layout string
}{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MM", "01"},
	{"dd", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

// translateFormat converts a date format into a Go time layout. Formats
// containing '%' are treated as strftime (the shape the configuration
// language uses); anything else is treated as the engine's java-time token
// notation. Unsupported strftime directives are an error rather than being
// passed through into query output.
func translateFormat(format, path string) (string, error) {
	if format == "" {
		format = DefaultDateFormat
	}

	if strings.ContainsRune(format, '%') {
		return translateStrftime(format, path)
	}

	var b strings.Builder
	for i := 0; i < len(format); {
		matched := false
		for _, tok := range engineLayouts {
			if strings.HasPrefix(format[i:], tok.token) {
				b.WriteString(tok.layout)
				i += len(tok.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String(), nil
}

func translateStrftime(format, path string) (string, error) {
	return expandStrftime(format, path, func(directive byte) (string, bool) {
		frag, ok := strftimeLayouts[directive]
		return frag.goLayout, ok
	})
}

// engineFormat converts a filter's date format into the engine's java-time
// notation for the range clause's "format" key. Formats without '%' are
// already in engine notation and pass through unchanged.
func engineFormat(format, path string) (string, error) {
	if !strings.ContainsRune(format, '%') {
		return format, nil
	}
	return expandStrftime(format, path, func(directive byte) (string, bool) {
		frag, ok := strftimeLayouts[directive]
		return frag.engine, ok
	})
}

func expandStrftime(format, path string, expand func(byte) (string, bool)) (string, error) {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			b.WriteByte(format[i])
			continue
		}
		if i+1 >= len(format) {
			return "", pathErrorf(ErrInvalidDateSpec, path, "dangling %% at end of date format %q", format)
		}
		i++
		if format[i] == '%' {
			b.WriteByte('%')
			continue
		}
		frag, ok := expand(format[i])
		if !ok {
			return "", pathErrorf(ErrInvalidDateSpec, path, "unsupported date format directive %%%c", format[i])
		}
		b.WriteString(frag)
	}
	return b.String(), nil
}
