package bulk

// coerce.go converts loosely-typed batch values to their declared column
// types. Pipelines hand over data read from CSVs, JSON, or upstream nodes,
// so numbers arrive as strings or floats and booleans in several spellings;
// the rules here mirror what those sources produce.

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order when parsing string timestamps.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coerceValue casts v to the declared column type. nil passes through
// unchanged and becomes a database NULL.
func coerceValue(v any, t ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeInt:
		return coerceInt(v)
	case TypeFloat:
		return coerceFloat(v)
	case TypeText:
		return coerceText(v)
	case TypeBool:
		return coerceBool(v)
	case TypeTimestamp:
		return coerceTimestamp(v)
	default:
		return nil, fmt.Errorf("unknown column type %d", t)
	}
}

// coerceInt truncates floats toward zero, matching numeric casts in the
// pipelines feeding this SDK.
func coerceInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse int: %w", err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unsupported source type %T", v)
	}
}

func coerceFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("parse float: %w", err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unsupported source type %T", v)
	}
}

func coerceText(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case time.Time:
		return s.Format(time.RFC3339), nil
	default:
		return fmt.Sprint(v), nil
	}
}

func coerceBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case int:
		return b != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "t", "yes", "y", "1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		default:
			return false, fmt.Errorf("unrecognized boolean %q", b)
		}
	default:
		return false, fmt.Errorf("unsupported source type %T", v)
	}
}

func coerceTimestamp(v any) (time.Time, error) {
	switch ts := v.(type) {
	case time.Time:
		return ts, nil
	case string:
		s := strings.TrimSpace(ts)
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", ts)
	default:
		return time.Time{}, fmt.Errorf("unsupported source type %T", v)
	}
}
