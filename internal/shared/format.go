package shared

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MarshalJSON encodes v, indenting with two spaces when pretty is set.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// FormatYear renders an optional release year, "n/a" when unknown.
func FormatYear(year *int) string {
	if year == nil || *year == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%d", *year)
}

// FormatRating renders a 0-10 rating with one decimal, "-" when unrated.
func FormatRating(rating float64) string {
	if rating <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", rating)
}

// Truncate shortens s to at most n runes, ending with an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if n <= 0 || len(r) <= n {
		return string(r)
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
