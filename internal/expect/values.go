package expect

import "fmt"

// valuesEqual compares a decoded JSON value with an expected Go value.
// Numbers compare numerically, everything else by its printed form.
func valuesEqual(actual, expected any) bool {
	actualNum, aErr := toFloat64(actual)
	expectedNum, eErr := toFloat64(expected)

	if aErr == nil && eErr == nil {
		return actualNum == expectedNum
	}
	if (aErr == nil) != (eErr == nil) {
		return false
	}
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}
