package order

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CoerceQuantity converts a tool-call quantity into a positive integer.
// Integers, integral floats, and numeric strings are accepted; fractions,
// non-positive values and anything else are not.
func CoerceQuantity(v any) (int, bool) {
	var n int64
	switch q := v.(type) {
	case int:
		n = int64(q)
	case int32:
		n = int64(q)
	case int64:
		n = q
	case float64:
		if q != math.Trunc(q) || q > math.MaxInt32 || q < math.MinInt32 {
			return 0, false
		}
		n = int64(q)
	case json.Number:
		return CoerceQuantity(q.String())
	case string:
		s := strings.TrimSpace(q)
		i, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil || strings.ContainsAny(s, "eEnNiI") {
				return 0, false
			}
			return CoerceQuantity(f)
		}
		n = i
	default:
		return 0, false
	}
	if n <= 0 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}
