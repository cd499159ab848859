package reports

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"foodwaste/pkg/domain"
)

// normalize converts a raw driver value to the Go type implied by the column
// type: int64 for integer, float64 for number, string otherwise. pgx hands
// NUMERIC aggregates back as text, SQLite returns native numbers; both end up
// identical here. NULL stays nil.
func normalize(raw any, columnType string) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	switch columnType {
	case typeInteger:
		switch v := raw.(type) {
		case int64:
			return v, nil
		case int32:
			return int64(v), nil
		case int:
			return int64(v), nil
		case float64:
			return int64(v), nil
		case string:
			s := strings.TrimSpace(v)
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("integer column: %q", v)
			}
			return int64(f), nil
		}
	case typeNumber:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case int:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("number column: %q", v)
			}
			return f, nil
		}
	default:
		switch v := raw.(type) {
		case string:
			return v, nil
		case time.Time:
			return v.UTC().Format(domain.TimestampLayout), nil
		default:
			return fmt.Sprint(v), nil
		}
	}
	return nil, fmt.Errorf("unexpected %T for %s column", raw, columnType)
}

// bindParams resolves run parameters into driver arguments. Timestamps are
// rendered in the stored text layout; a missing as_of becomes now.
func bindParams(params map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		if ts, ok := v.(time.Time); ok {
			out[k] = ts.UTC().Format(domain.TimestampLayout)
			continue
		}
		out[k] = v
	}
	if _, ok := out[ParamAsOf]; !ok {
		out[ParamAsOf] = now.UTC().Format(domain.TimestampLayout)
	}
	return out
}
