package tabular

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
}

// IsDate reports whether s parses as one of the accepted date layouts.
func IsDate(s string) bool {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// InferType picks the narrowest type that fits every non-empty value.
// A column with no values is a string column.
func InferType(values []string) string {
	isInt, isNum, isBool, isDate := true, true, true, true
	seen := 0
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		seen++
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isNum {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isNum = false
			}
		}
		if isBool {
			lv := strings.ToLower(v)
			isBool = lv == "true" || lv == "false"
		}
		if isDate {
			isDate = IsDate(v)
		}
	}

	switch {
	case seen == 0:
		return TypeString
	case isInt:
		return TypeInteger
	case isNum:
		return TypeNumber
	case isBool:
		return TypeBoolean
	case isDate:
		return TypeDate
	default:
		return TypeString
	}
}

// Convert turns a cell string into the Go value for its column type.
// Empty cells become nil.
func Convert(raw, typ string) any {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	switch typ {
	case TypeInteger:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case TypeNumber:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	case TypeBoolean:
		return strings.EqualFold(v, "true")
	}
	return raw
}

func inferAnyType(values []any) string {
	isInt, isNum, isBool, isDate := true, true, true, true
	seen := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		seen++
		switch val := v.(type) {
		case float64:
			isBool, isDate = false, false
			if val != math.Trunc(val) {
				isInt = false
			}
		case bool:
			isInt, isNum, isDate = false, false, false
		case string:
			isInt, isNum, isBool = false, false, false
			if isDate {
				isDate = IsDate(val)
			}
		default:
			isInt, isNum, isBool, isDate = false, false, false, false
		}
	}

	switch {
	case seen == 0:
		return TypeString
	case isInt:
		return TypeInteger
	case isNum:
		return TypeNumber
	case isBool:
		return TypeBoolean
	case isDate:
		return TypeDate
	default:
		return TypeString
	}
}

// convertAny normalizes a decoded JSON value. Nested objects and arrays are
// kept as their JSON text so they fit in a single cell.
func convertAny(v any, typ string) any {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		if typ == TypeInteger {
			return int64(val)
		}
		return val
	case bool, string:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(b)
	}
}
