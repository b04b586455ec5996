package choropleth

import (
	"encoding/json"
	"math"
)

// LabelIndex returns the position of value in labels using strict equality,
// or -1 when no label matches. "5" and 5 are different labels, and NaN
// matches nothing.
func LabelIndex(labels []any, value any) int {
	for i, l := range labels {
		if strictEqual(l, value) {
			return i
		}
	}
	return -1
}

func strictEqual(a, b any) bool {
	if af, ok := numeric(a); ok {
		bf, ok := numeric(b)
		return ok && af == bf
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case nil:
		return b == nil
	}
	// Arrays and objects compare by identity, which decoded values never share.
	return false
}

// numeric reports the float64 value of a Go number. NaN is reported as
// numeric so that it compares unequal to everything, itself included.
func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return math.NaN(), true
		}
		return f, true
	}
	return 0, false
}
