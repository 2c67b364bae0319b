package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Value types a recipe may declare for an extracted key. These are data
// format identifiers carried in recipe files, not Go type names.
const (
	TypeStr  = "str"
	TypeInt  = "int"
	TypeBool = "bool"
)

// KeySpec declares one expected extraction key: what it means, its
// value type, and an optional closed set of allowed values.
type KeySpec struct {
	Description string   `yaml:"description" json:"description"`
	Type        string   `yaml:"type" json:"type"`
	EnumValues  []string `yaml:"enum_values,omitempty" json:"enum_values,omitempty"`
}

// KeySchema maps extraction key names to their specs.
type KeySchema map[string]KeySpec

// Validate checks that every spec uses a known type and that enums are
// only declared on str keys.
func (s KeySchema) Validate() error {
	for key, spec := range s {
		switch spec.Type {
		case TypeStr, TypeInt, TypeBool:
		default:
			return eris.Errorf("schema: key %q has unknown type %q", key, spec.Type)
		}
		if len(spec.EnumValues) > 0 && spec.Type != TypeStr {
			return eris.Errorf("schema: key %q declares enum_values on type %q", key, spec.Type)
		}
	}
	return nil
}

// Default returns the documented fallback value for a spec: "" for str,
// "N/A" for enum-constrained str, 0 for int, false for bool.
func (spec KeySpec) Default() any {
	switch spec.Type {
	case TypeInt:
		return 0
	case TypeBool:
		return false
	default:
		if len(spec.EnumValues) > 0 {
			return "N/A"
		}
		return ""
	}
}

// Coerce converts a raw extracted value to the declared type and, when
// enum_values is set, rejects values outside that set. Enum membership
// is checked case-insensitively; the canonical declared casing is
// returned. A nil raw value is an error so the caller substitutes the
// default and records the failure.
func (spec KeySpec) Coerce(raw any) (any, error) {
	if raw == nil {
		return nil, eris.New("schema: value is null")
	}

	switch spec.Type {
	case TypeInt:
		return coerceInt(raw)
	case TypeBool:
		return coerceBool(raw)
	default:
		s := strings.TrimSpace(Stringify(raw))
		if len(spec.EnumValues) == 0 {
			return s, nil
		}
		for _, allowed := range spec.EnumValues {
			if strings.EqualFold(s, allowed) {
				return allowed, nil
			}
		}
		return nil, eris.Errorf("schema: value %q not in enum set", s)
	}
}

func coerceInt(raw any) (any, error) {
	switch n := raw.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return nil, eris.Errorf("schema: %v is not an integer", n)
		}
		return int(n), nil
	case string:
		v, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return nil, eris.Wrapf(err, "schema: parse int %q", n)
		}
		return v, nil
	default:
		return nil, eris.Errorf("schema: cannot coerce %T to int", raw)
	}
}

func coerceBool(raw any) (any, error) {
	switch b := raw.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "si", "sí", "1":
			return true, nil
		case "false", "no", "0":
			return false, nil
		}
		return nil, eris.Errorf("schema: cannot parse bool %q", b)
	case float64:
		if b == 1 {
			return true, nil
		}
		if b == 0 {
			return false, nil
		}
		return nil, eris.Errorf("schema: cannot coerce %v to bool", b)
	default:
		return nil, eris.Errorf("schema: cannot coerce %T to bool", raw)
	}
}

// Stringify renders a context value for CSV output. Booleans render as
// TRUE/FALSE to match the reporting convention used by the downstream
// sheets; nil renders as the blank sentinel.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339)
	case time.Duration:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
