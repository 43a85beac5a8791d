package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ToInt64 converts a scanned column value to int64 using explicit type switching.
// It handles standard integer types, floats, strings, and byte slices.
// ok is false for nil (SQL NULL) and for values that do not parse as an integer.
func ToInt64(val any) (int64, bool) {
	switch v := val.(type) {
	case nil:
		return 0, false
	case int:
		return int64(v), true
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint:
		return int64(v), true
	case uint64:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint8:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return i, err == nil
	case []byte:
		i, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		return i, err == nil
	default:
		i, err := strconv.ParseInt(fmt.Sprintf("%v", v), 10, 64)
		return i, err == nil
	}
}

// ToString converts a scanned column value to string.
// SQL NULL (nil) becomes the empty string.
func ToString(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToBool converts various types to bool.
// It handles bool, numeric types (1=true), and strings ("1", "true").
// ok is false for nil (SQL NULL).
func ToBool(val any) (value bool, ok bool) {
	switch v := val.(type) {
	case nil:
		return false, false
	case bool:
		return v, true
	case int, int64, int32, int16, int8, uint, uint64, uint32, uint16, uint8:
		i, _ := ToInt64(v)
		return i == 1, true
	case string:
		return v == "1" || strings.ToLower(v) == "true", true
	case []byte:
		s := string(v)
		return s == "1" || strings.ToLower(s) == "true", true
	default:
		return false, true
	}
}
