package session

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ParseCount converts a platform count value into a plain non-negative
// integer. Platforms report counts as numbers or abbreviated strings like
// "1.2万" or "3w"; anything unparsable becomes 0.
func ParseCount(v any) int {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		return clampCount(n)
	case int32:
		return clampCount(int(n))
	case int64:
		return clampCount(int(n))
	case float32:
		return clampCount(int(n))
	case float64:
		return clampCount(int(n))
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return clampCount(int(f))
	case string:
		return parseCountString(n)
	default:
		return 0
	}
}

func parseCountString(s string) int {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "万"):
		multiplier = 1e4
		s = strings.TrimSuffix(s, "万")
	case strings.HasSuffix(s, "w"), strings.HasSuffix(s, "W"):
		multiplier = 1e4
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "亿"):
		multiplier = 1e8
		s = strings.TrimSuffix(s, "亿")
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return clampCount(int(f * multiplier))
}

func clampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// CleanText collapses whitespace runs to single spaces and trims the ends.
// Platform payloads mix newlines, tabs and full-width spaces freely.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
