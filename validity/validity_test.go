package validity_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/formtree"
	"github.com/reoring/formtree/cells"
	"github.com/reoring/formtree/validity"
)

const addr = "0x52908400098527886E0F7030069857D2E4169EE7"

func code(err error) string { return formtree.CodeOf(err) }

func TestRequires(t *testing.T) {
	cases := []struct {
		name string
		def  *formtree.Definition
		want bool
	}{
		{"required string", &formtree.Definition{Shape: formtree.String{}}, true},
		{"optional string", &formtree.Definition{Optional: true, Shape: formtree.String{}}, false},
		{"optional with pattern", &formtree.Definition{Optional: true, Shape: formtree.String{Pattern: regexp.MustCompile("a")}}, true},
		{"optional with min", &formtree.Definition{Optional: true, Shape: formtree.Array{Min: formtree.Bound(1)}}, true},
		{"optional with zero min", &formtree.Definition{Optional: true, Shape: formtree.Array{Min: formtree.Bound(0)}}, false},
		{"optional with max", &formtree.Definition{Optional: true, Shape: formtree.Number{Max: formtree.Limit(3)}}, true},
		{"optional with predicate", &formtree.Definition{Optional: true, Validator: func(any) string { return "" }}, true},
		{"hidden", &formtree.Definition{Hidden: true, Shape: formtree.String{}}, false},
		{"loader", &formtree.Definition{Shape: formtree.String{Loader: true}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, validity.Requires(tc.def))
		})
	}
}

func TestValidate_OrderOfChecks(t *testing.T) {
	// hidden wins over everything
	hidden := &formtree.Definition{Hidden: true, Shape: formtree.String{Pattern: regexp.MustCompile("^x$")}}
	assert.NoError(t, validity.Validate(hidden, "nope", nil))

	// predicate message wins over the pattern
	pred := &formtree.Definition{
		Validator: func(v any) string {
			if v == "bad" {
				return "no bad values"
			}
			return ""
		},
		Shape: formtree.String{Pattern: regexp.MustCompile("^x$")},
	}
	err := validity.Validate(pred, "bad", formtree.Path{"f"})
	require.Error(t, err)
	assert.Equal(t, formtree.CodeCustom, code(err))
	assert.Contains(t, err.Error(), "no bad values")
	assert.Equal(t, formtree.CodePattern, code(validity.Validate(pred, "y", nil)))
	assert.NoError(t, validity.Validate(pred, "x", nil))
}

func TestValidate_Pattern(t *testing.T) {
	re := regexp.MustCompile("a")
	required := &formtree.Definition{Shape: formtree.String{Pattern: re}}
	optional := &formtree.Definition{Optional: true, Shape: formtree.String{Pattern: re}}

	assert.Equal(t, formtree.CodePattern, code(validity.Validate(required, "", nil)))
	assert.NoError(t, validity.Validate(optional, "", nil))
	assert.Equal(t, formtree.CodePattern, code(validity.Validate(optional, "b", nil)))
	assert.NoError(t, validity.Validate(required, "bab", nil))
}

func TestValidate_Address(t *testing.T) {
	def := &formtree.Definition{Shape: formtree.String{Address: true}}
	assert.NoError(t, validity.Validate(def, addr, nil))
	assert.NoError(t, validity.Validate(def, "tok:usdc", nil))
	assert.NoError(t, validity.Validate(def, "mainnet:"+addr, nil))

	err := validity.Validate(def, "0x1234", nil)
	assert.Equal(t, formtree.CodeInvalidAddress, code(err))
	assert.Contains(t, err.Error(), "Invalid address: 0x1234")
	assert.Equal(t, formtree.CodeInvalidAddress, code(validity.Validate(def, 42, nil)))
}

func TestValidate_Loader(t *testing.T) {
	def := &formtree.Definition{Shape: formtree.String{Loader: true, Min: formtree.Bound(3)}}
	assert.NoError(t, validity.Validate(def, "", nil))
}

func TestValidate_Binary(t *testing.T) {
	def := &formtree.Definition{Shape: formtree.String{Binary: true}}
	assert.NoError(t, validity.Validate(def, "0x", nil))
	assert.NoError(t, validity.Validate(def, "0xdeadBEEF", nil))
	err := validity.Validate(def, "0xzz", nil)
	assert.Equal(t, formtree.CodeInvalidHex, code(err))
	assert.Contains(t, err.Error(), "Must be an hex string")
	assert.Equal(t, formtree.CodeInvalidHex, code(validity.Validate(def, "dead", nil)))
}

func TestValidate_LengthBounds(t *testing.T) {
	str := &formtree.Definition{Shape: formtree.String{Min: formtree.Bound(2), Max: formtree.Bound(4)}}
	err := validity.Validate(str, "a", nil)
	assert.Equal(t, formtree.CodeTooShort, code(err))
	assert.Contains(t, err.Error(), "Length should be >= 2")
	assert.Equal(t, formtree.CodeTooLong, code(validity.Validate(str, "abcde", nil)))
	assert.NoError(t, validity.Validate(str, "abc", nil))

	s := cells.NewSheet()
	arr := &formtree.Definition{Shape: formtree.Array{Min: formtree.Bound(1)}}
	assert.Equal(t, formtree.CodeTooShort, code(validity.Validate(arr, []*cells.Cell{}, nil)))
	assert.NoError(t, validity.Validate(arr, []*cells.Cell{s.New("b")}, nil))
	assert.NoError(t, validity.Validate(arr, []any{"b"}, nil))
}

func TestValidate_RequiredValueMissing(t *testing.T) {
	str := &formtree.Definition{Shape: formtree.String{}}
	err := validity.Validate(str, nil, formtree.Path{"bar"})
	require.Error(t, err)
	assert.Equal(t, formtree.CodeRequired, code(err))
	assert.True(t, strings.Contains(err.Error(), "fill in this field"))
	iss, _ := formtree.AsIssues(err)
	assert.Equal(t, "/bar", iss[0].Path)

	// empty strings are values
	assert.NoError(t, validity.Validate(str, "", nil))
	// falsy scalars are values
	assert.NoError(t, validity.Validate(&formtree.Definition{Shape: formtree.Boolean{}}, false, nil))
	assert.NoError(t, validity.Validate(&formtree.Definition{Shape: formtree.Number{}}, 0.0, nil))

	// a truthy explicit default satisfies the requirement
	withDef := &formtree.Definition{Default: "x", Shape: formtree.String{}}
	assert.NoError(t, validity.Validate(withDef, nil, nil))

	arr := &formtree.Definition{Shape: formtree.Array{}}
	assert.Equal(t, formtree.CodeRequired, code(validity.Validate(arr, []*cells.Cell{}, nil)))
	dict := &formtree.Definition{Shape: formtree.Dict{}}
	assert.Equal(t, formtree.CodeRequired, code(validity.Validate(dict, map[string]*cells.Cell{}, nil)))
	obj := formtree.ObjectDefinition("o")
	assert.NoError(t, validity.Validate(obj, map[string]*cells.Cell{}, nil))
	assert.Equal(t, formtree.CodeRequired, code(validity.Validate(obj, nil, nil)))
}

// An optional field accepts its generated default and fails only once
// required.
func TestValidate_OptionalFieldBecomesRequired(t *testing.T) {
	bar := &formtree.Definition{Label: "bar", Optional: true, Shape: formtree.String{}}
	assert.NoError(t, validity.Validate(bar, nil, nil))
	assert.NoError(t, validity.Validate(bar, "", nil))

	forced := *bar
	forced.Optional = false
	assert.Equal(t, formtree.CodeRequired, code(validity.Validate(&forced, nil, nil)))
}
