package formtree

import (
	"fmt"
	"strconv"
	"strings"
)

// Key addresses a child within its parent: a string for object fields and
// dict entries, an int for array elements.
type Key = any

// Path is the sequence of keys from the root to a node.
type Path []Key

// Field returns a copy of p extended with an object or dict key.
func (p Path) Field(name string) Path { return p.With(name) }

// Index returns a copy of p extended with an array index.
func (p Path) Index(i int) Path { return p.With(i) }

// With returns a copy of p extended with k. The receiver is never aliased.
func (p Path) With(k Key) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, k)
}

// Parent returns the path without its last key.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return append(Path{}, p[:len(p)-1]...)
}

// Equal reports whether both paths hold the same keys.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Pointer renders the path as a JSON Pointer ("/" for the root).
func (p Path) Pointer() string {
	if len(p) == 0 {
		return "/"
	}
	b := &strings.Builder{}
	for _, k := range p {
		b.WriteByte('/')
		switch v := k.(type) {
		case int:
			b.WriteString(strconv.Itoa(v))
		case string:
			// escape '~' -> '~0', '/' -> '~1' per RFC6901
			b.WriteString(strings.ReplaceAll(strings.ReplaceAll(v, "~", "~0"), "/", "~1"))
		default:
			fmt.Fprint(b, v)
		}
	}
	return b.String()
}

// String renders keys joined by dots, as used in messages.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, k := range p {
		parts[i] = fmt.Sprint(k)
	}
	return strings.Join(parts, ".")
}

// Issue creates an Issue located at p; kv is a list of param name/value pairs.
func (p Path) Issue(code, msg string, kv ...any) Issue {
	m := map[string]any{}
	for i := 0; i+1 < len(kv); i += 2 {
		m[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return Issue{Path: p.Pointer(), Code: code, Message: msg, Params: m}
}
