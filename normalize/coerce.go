package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Upstream payloads arrive as decoded JSON, so values can be strings,
// float64s, json.Numbers or nested arrays. The coercers below flatten that
// duck typing in one place.

func firstString(fields map[string]any, aliases []string) string {
	for _, name := range aliases {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if s := coerceString(v); s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(fields map[string]any, aliases []string) (float64, bool) {
	for _, name := range aliases {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if f, ok := coerceNumber(v); ok {
			return f, true
		}
	}
	return 0, false
}

func firstInt(fields map[string]any, aliases []string) (int, bool) {
	f, ok := firstNumber(fields, aliases)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func firstTime(fields map[string]any, aliases []string) (time.Time, bool) {
	for _, name := range aliases {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if t, ok := coerceTime(v); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstStringList(fields map[string]any, aliases []string) []string {
	for _, name := range aliases {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if list := coerceStringList(v); len(list) > 0 {
			return list
		}
	}
	return nil
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		// Strip currency symbols and thousands separators: "$156,000" → 156000.
		s = strings.Map(func(r rune) rune {
			switch {
			case r >= '0' && r <= '9', r == '.', r == '-':
				return r
			default:
				return -1
			}
		}, s)
		if s == "" || s == "-" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
}

func coerceTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	case float64, int, int64, json.Number:
		// Unix seconds; upstream sometimes sends millis.
		f, ok := coerceNumber(v)
		if !ok || f <= 0 {
			return time.Time{}, false
		}
		secs := int64(f)
		if secs > 1e12 {
			secs /= 1000
		}
		return time.Unix(secs, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

func coerceStringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }
