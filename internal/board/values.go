package board

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

func pick(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func asObject(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, true
	case map[any]any:
		out := make(map[string]any, len(o))
		for k, val := range o {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

func asArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case []any:
		return a, true
	case []map[string]any:
		out := make([]any, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out, true
	}
	return nil, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	}
	if n, ok := toInt64(v); ok {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	}
	if n, ok := toInt64(v); ok {
		return n != 0, true
	}
	return false, false
}

// toTime accepts RFC 3339 strings, looser date layouts and epoch millis.
// Zone-less layouts are read as UTC.
func toTime(v any) (time.Time, string, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, t.Format(time.RFC3339Nano), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, "", false
		}
		if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return parsed, s, true
		}
		if parsed, err := dateparse.ParseIn(s, time.UTC); err == nil {
			return parsed, s, true
		}
		return time.Time{}, s, false
	}
	if ms, ok := toInt64(v); ok && ms > 0 {
		return time.UnixMilli(ms).UTC(), strconv.FormatInt(ms, 10), true
	}
	return time.Time{}, "", false
}
