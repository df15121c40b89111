package formtree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reoring/formtree/i18n"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	// Resolution and navigation
	CodeUnknownType            = "unknown_type"
	CodeKeyNotFound            = "key_not_found"
	CodeElementNotFound        = "element_not_found"
	CodeNotAnArray             = "not_an_array"
	CodeNotADict               = "not_a_dict"
	CodeNotAnObject            = "not_an_object"
	CodeMissingFieldDefinition = "missing_field_definition"
	CodeLeafReached            = "leaf_reached"
	CodeMissingKey             = "missing_key"
	CodeNotWritable            = "not_writable"
	// Document loading
	CodeDuplicateKey = "duplicate_key"
	// Validation results held in node validity cells
	CodeRequired       = "required"
	CodePattern        = "pattern"
	CodeInvalidAddress = "invalid_address"
	CodeInvalidHex     = "invalid_hex"
	CodeTooShort       = "too_short"
	CodeTooLong        = "too_long"
	CodeCustom         = "custom"
)

// Issue represents a single editor failure or validation result.
type Issue struct {
	Path    string // JSON Pointer of the node (for example: /items/2/price).
	Code    string // One of the codes listed above.
	Message string
	Hint    string // Optional: remediation hints.
	Cause   error  // Optional: underlying error.
	// Params carries structured parameters (e.g., {"min":1, "key":"foo"})
	// for i18n and observability.
	Params map[string]any
}

// Error renders "code at path: message".
func (it Issue) Error() string {
	if it.Message == "" {
		return fmt.Sprintf("%s at %s", it.Code, it.Path)
	}
	return fmt.Sprintf("%s at %s: %s", it.Code, it.Path, it.Message)
}

func (it Issue) Unwrap() error { return it.Cause }

// Issues is a collection of issues that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := min(n, maxShown)
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s at %s", iss[i].Code, iss[i].Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	return append(dst, more...)
}

// AsIssues extracts Issues from an error using errors.As internally. A single
// Issue is returned as a one-element collection.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	var it Issue
	if errors.As(err, &it) {
		return Issues{it}, true
	}
	return nil, false
}

// CodeOf returns the code of the first Issue found in err's chain, or "".
func CodeOf(err error) string {
	iss, ok := AsIssues(err)
	if !ok || len(iss) == 0 {
		return ""
	}
	return iss[0].Code
}

// IssueAt creates an Issue at the given path with provided code, message and params map.
func IssueAt(p Path, code, msg string, params map[string]any) Issue {
	return Issue{Path: p.Pointer(), Code: code, Message: msg, Params: params}
}

// Fail builds an Issue whose message comes from the i18n catalogue. kv is a
// list of placeholder name/value pairs.
func Fail(p Path, code string, kv ...string) Issue {
	data := make(map[string]string, len(kv)/2)
	params := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		data[kv[i]] = kv[i+1]
		params[kv[i]] = kv[i+1]
	}
	return Issue{Path: p.Pointer(), Code: code, Message: i18n.T(code, data), Params: params}
}

// UnknownType reports a named reference missing from the registry.
func UnknownType(p Path, name string) Issue {
	return Fail(p, CodeUnknownType, "name", name)
}
