// Package dynamic implements the permissive value model used at the
// LLM-facing dispatch boundary: declared parameter types, argument shapes,
// and the coercion rules that convert loosely-typed values into them.
package dynamic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParamType is the declared type of a tool parameter.
type ParamType string

const (
	TypeString ParamType = "string"
	TypeBool   ParamType = "bool"
	TypeInt    ParamType = "int"
	TypeLong   ParamType = "long"
	TypeDouble ParamType = "double"
	TypeFloat  ParamType = "float"
	TypeList   ParamType = "list"
	TypeOther  ParamType = "other"
)

// Coerce converts an arbitrary value into the declared parameter type.
// It never fails: a value that cannot be converted degrades to the
// type-appropriate default (false, 0, 0.0) instead of raising an error,
// keeping the dispatch boundary permissive for LLM-originated calls.
//
// TypeString maps nil to nil (the caller may re-default); everything else
// maps nil to its zero value. TypeList and TypeOther pass values through
// unchanged.
func Coerce(v any, t ParamType) any {
	switch t {
	case TypeBool:
		return coerceBool(v)
	case TypeInt:
		return int(coerceInt64(v))
	case TypeLong:
		return coerceInt64(v)
	case TypeDouble:
		return coerceFloat64(v)
	case TypeFloat:
		return float32(coerceFloat64(v))
	case TypeString:
		if v == nil {
			return nil
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	default: // TypeList, TypeOther
		return v
	}
}

func coerceBool(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return strings.EqualFold(x, "true")
	default:
		return false
	}
}

func coerceInt64(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case float32:
		return int64(x)
	case float64:
		return int64(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		return 0
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n
		}
		return 0
	default:
		return 0
	}
}

func coerceFloat64(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0.0
	case float32:
		return float64(x)
	case float64:
		return x
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return 0.0
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
		return 0.0
	default:
		return 0.0
	}
}

// Stringify produces the single canonical string form of a tool result,
// used when binding a resolved variable. Strings pass through; nil becomes
// the empty string; scalars format via strconv; string slices join with
// newlines; any other structured value is JSON-encoded.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []string:
		return strings.Join(x, "\n")
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(data)
	}
}
