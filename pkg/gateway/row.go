package gateway

import (
	"strconv"
	"strings"
	"time"
)

// Row is one stored record keyed by column name. Backends disagree on numeric and
// time types, so read values through the accessors.
type Row map[string]interface{}

func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int, int32, int64, float64:
		n, _ := toInt64(v)
		return strconv.FormatInt(n, 10)
	}
	return ""
}

func (r Row) Int(key string) int64 {
	n, _ := toInt64(r[key])
	return n
}

func (r Row) Float(key string) float64 {
	f, _ := toFloat64(r[key])
	return f
}

func (r Row) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case int, int32, int64, float64:
		n, _ := toInt64(v)
		return n != 0
	}
	return false
}

func (r Row) Time(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int, int32, int64:
		i, _ := toInt64(n)
		return float64(i), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// Compare orders two stored values: numbers numerically, times chronologically,
// everything else as strings. ok is false when either side is nil.
func Compare(a, b interface{}) (cmp int, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if ta, isTime := a.(time.Time); isTime {
		if tb, isTime := b.(time.Time); isTime {
			switch {
			case ta.Before(tb):
				return -1, true
			case ta.After(tb):
				return 1, true
			}
			return 0, true
		}
	}
	if _, isStr := a.(string); !isStr {
		fa, okA := toFloat64(a)
		fb, okB := toFloat64(b)
		if okA && okB {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
	}
	if _, isBool := a.(bool); isBool {
		ba, bb := a.(bool), false
		if v, ok := b.(bool); ok {
			bb = v
		}
		switch {
		case ba == bb:
			return 0, true
		case !ba:
			return -1, true
		}
		return 1, true
	}
	sa, sb := Row{"v": a}.String("v"), Row{"v": b}.String("v")
	return strings.Compare(sa, sb), true
}

// Match reports whether row satisfies every filter.
func Match(row Row, filters []Filter) bool {
	for _, f := range filters {
		if !matchOne(row[f.Field], f) {
			return false
		}
	}
	return true
}

func matchOne(v interface{}, f Filter) bool {
	switch f.Op {
	case OpIn:
		vs, _ := f.Value.([]interface{})
		for _, candidate := range vs {
			if c, ok := Compare(v, candidate); ok && c == 0 {
				return true
			}
		}
		return false
	case OpContains:
		s, _ := v.(string)
		sub, _ := f.Value.(string)
		return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	case OpNeq:
		c, ok := Compare(v, f.Value)
		return !ok || c != 0
	}

	c, ok := Compare(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEq:
		return c == 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}
