package datanorm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

var (
	errEmpty      = errors.New("empty value")
	errPercent    = errors.New("percentage where an absolute value is required")
	errFractional = errors.New("fractional count")
	errNotFinite  = errors.New("not a finite number")
)

// maxExactCount is the largest integer a float64 holds exactly.
const maxExactCount = 1 << 53

// isBlank reports whether a raw value counts as missing.
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// parseNumber coerces a numeric-looking value to float64. Currency symbols,
// thousands separators and surrounding whitespace are tolerated.
func parseNumber(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := parseNumericString(n)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}

func parseNumericString(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errEmpty
	}
	if strings.HasSuffix(s, "%") {
		return 0, errPercent
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '$', '€', '£', ',', ' ', '\u00a0':
			continue
		}
		b.WriteRune(r)
	}
	// Accounting style negatives: (12.50)
	cleaned := b.String()
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + strings.Trim(cleaned, "()")
	}
	return strconv.ParseFloat(cleaned, 64)
}

// parseCount coerces a value to a whole number.
func parseCount(v any) (int64, error) {
	f, err := parseNumber(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errFractional
	}
	if math.Abs(f) > maxExactCount {
		return 0, fmt.Errorf("count %v out of range", f)
	}
	return int64(f), nil
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
}

// parseDate accepts a time.Time or one of the supported layouts. Values
// without a zone are read as UTC.
func parseDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, errEmpty
		}
		return t.UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, errEmpty
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	default:
		return time.Time{}, fmt.Errorf("unsupported type %T", v)
	}
}

// parseIdentifier renders an id column as a string. Spreadsheet exports
// often turn numeric ids into floats, so whole floats print without exponent.
func parseIdentifier(v any) (string, error) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return "", errEmpty
		}
		return s, nil
	case json.Number:
		return t.String(), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return "", fmt.Errorf("non-integral identifier %v", t)
		}
		return strconv.FormatFloat(t, 'f', 0, 64), nil
	default:
		return "", fmt.Errorf("unsupported type %T", v)
	}
}

// attributeValue canonicalizes a creative attribute: case-folded, trimmed and
// with inner whitespace joined by underscores ("Shop Now" -> "shop_now").
func attributeValue(folder cases.Caser, v any) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case nil:
		return ""
	default:
		s = fmt.Sprintf("%v", t)
	}
	s = folder.String(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}

// lengthBucket maps a creative duration in seconds to a coarse bucket.
func lengthBucket(seconds float64) string {
	switch {
	case seconds < 0:
		return ""
	case seconds <= 6:
		return "0-6s"
	case seconds <= 15:
		return "7-15s"
	case seconds <= 30:
		return "16-30s"
	case seconds <= 60:
		return "31-60s"
	default:
		return "60s+"
	}
}
