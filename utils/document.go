package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// StringifyField renders a document value for display, search and export.
// JSON numbers arrive as float64; integral values must not grow a ".0"
// suffix on the way out.
func StringifyField(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// NumericValue attempts to interpret a document value as a number.
// Strings are parsed after stripping spaces and thousands separators, so
// "1,000" and " 42 " both qualify. Booleans and nulls never do.
func NumericValue(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(val), ",", "")
		if cleaned == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
