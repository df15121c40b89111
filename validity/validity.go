// Package validity decides whether a definition needs validation and checks
// values against it.
package validity

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/reoring/formtree"
)

var validate = validator.New()

// Requires reports whether values of def must be validated: def carries a
// predicate, a pattern, a minimum, a maximum, or is required, and is neither
// hidden nor loader-supplied.
func Requires(def *formtree.Definition) bool {
	if def == nil || def.Hidden || isLoader(def) {
		return false
	}
	return def.Validator != nil || def.Pattern() != nil || def.HasMin() || def.HasMax() || !def.Optional
}

// Validate checks v against def. It returns nil when v is valid and a
// formtree.Issue otherwise. path locates the issue.
//
// Containers may be given either as plain values or as cellified
// []*cells.Cell / map[string]*cells.Cell.
func Validate(def *formtree.Definition, v any, path formtree.Path) error {
	if def == nil || def.Hidden {
		return nil
	}
	str, isString := v.(string)
	if s, ok := def.Shape.(formtree.String); ok && s.Address {
		if isString && IsAddress(str) {
			return nil
		}
		if !isString || !(IsStringAddress(str) || strings.HasPrefix(str, "tok:")) {
			return formtree.Fail(path, formtree.CodeInvalidAddress, "value", fmt.Sprint(v))
		}
	}
	if isLoader(def) {
		return nil
	}
	if def.Validator != nil {
		if msg := def.Validator(v); msg != "" {
			it := formtree.Fail(path, formtree.CodeCustom)
			it.Message = msg
			return it
		}
	}
	if re := def.Pattern(); re != nil && isString {
		ok := re.MatchString(str)
		if str == "" {
			ok = def.Optional
		}
		if !ok {
			return formtree.Fail(path, formtree.CodePattern)
		}
	}
	if s, ok := def.Shape.(formtree.String); ok && s.Binary && !IsHex(v) {
		return formtree.Fail(path, formtree.CodeInvalidHex)
	}
	if n, ok := length(v); ok {
		lo, hi := def.LengthBounds()
		if lo != nil && n < *lo {
			return formtree.Fail(path, formtree.CodeTooShort, "min", strconv.Itoa(*lo))
		}
		if hi != nil && n > *hi {
			return formtree.Fail(path, formtree.CodeTooLong, "max", strconv.Itoa(*hi))
		}
	}
	if !def.Optional && !truthy(def.Default) && missing(def, v) {
		return formtree.Fail(path, formtree.CodeRequired)
	}
	return nil
}

// IsAddress reports a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool { return validate.Var(s, "required,eth_addr") == nil }

// IsStringAddress reports an address qualified by a network, e.g.
// "mainnet:0x...".
func IsStringAddress(s string) bool {
	network, addr, ok := strings.Cut(s, ":")
	return ok && network != "" && IsAddress(addr)
}

// IsHex reports a 0x-prefixed hex string; "0x" alone is valid.
func IsHex(v any) bool {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "0x") {
		return false
	}
	rest := s[2:]
	return rest == "" || validate.Var(rest, "hexadecimal") == nil
}

func isLoader(def *formtree.Definition) bool {
	s, ok := def.Shape.(formtree.String)
	return ok && s.Loader
}

// length measures strings and collections; other values have no length.
func length(v any) (int, bool) {
	if s, ok := v.(string); ok {
		return len([]rune(s)), true
	}
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len(), true
	}
	return 0, false
}

// missing reports a required value that is absent, an empty array, or an
// empty dict.
func missing(def *formtree.Definition, v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch def.Shape.(type) {
	case formtree.Array:
		return (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Len() == 0
	case formtree.Dict:
		return rv.Kind() == reflect.Map && rv.Len() == 0
	}
	return false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case float64:
		return x != 0
	}
	return true
}
