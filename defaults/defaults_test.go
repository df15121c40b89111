package defaults_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/formtree"
	"github.com/reoring/formtree/cells"
	"github.com/reoring/formtree/defaults"
	"github.com/reoring/formtree/validity"
)

func str(label string) *formtree.Definition {
	return &formtree.Definition{Label: label, Shape: formtree.String{}}
}

func sampleTypes() formtree.Registry {
	return formtree.StaticTypes(map[string]*formtree.Definition{
		"fullname": formtree.ObjectDefinition("Child Full Name",
			formtree.FieldOf("first", str("First Name")),
			formtree.FieldOf("last", str("Last Name")),
			formtree.FieldOf("allergies", &formtree.Definition{Label: "Does your child have allergies?", Shape: formtree.Boolean{}}),
		),
	})
}

func TestValue_OptionalArrayIsEmpty(t *testing.T) {
	def := &formtree.Definition{Label: "MyList", Optional: true, Shape: formtree.Array{Element: formtree.Static(str(""))}}
	v, err := defaults.Value(nil, def, defaults.Options{})
	require.NoError(t, err)
	assert.Equal(t, []any{}, v)
}

func TestValue_OptionalStringIsEmpty(t *testing.T) {
	v, err := defaults.Value(nil, &formtree.Definition{Optional: true, Shape: formtree.String{}}, defaults.Options{})
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestValue_ObjectPopulatesRequiredFields(t *testing.T) {
	def := &formtree.Definition{Label: "MyList", Optional: true, Shape: formtree.Object{Fields: []formtree.Field{
		formtree.FieldOf("test", str("test")),
	}}}
	v, err := defaults.Value(nil, def, defaults.Options{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"test": ""}, v)

	v, err = defaults.Value(nil, def, defaults.Options{SkipNestedObject: true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, v)
}

func TestValue_DeepSampleSkipsOptionalSubtrees(t *testing.T) {
	testdeep := formtree.ObjectDefinition("Test deep",
		formtree.FieldOf("first", formtree.ObjectDefinition("First",
			formtree.FieldOf("full", &formtree.Definition{Label: "Full", Shape: formtree.Named{Name: "fullname"}}),
		)),
		formtree.FieldOf("second", formtree.ObjectDefinition("Second",
			formtree.FieldOf("hello", str("Hello")),
			formtree.FieldOf("world", &formtree.Definition{Label: "world", Optional: true, Shape: formtree.String{}}),
		)),
		formtree.FieldOf("test", &formtree.Definition{Label: "Test", Optional: true, Shape: formtree.Named{Name: "fullname"}}),
		formtree.FieldOf("last", str("Last")),
		formtree.FieldOf("dictTest", &formtree.Definition{Label: "TEST dict", Optional: true, Shape: formtree.Dict{
			Value: formtree.Static(&formtree.Definition{Label: "dict name", Shape: formtree.Named{Name: "fullname"}}),
		}}),
	)
	v, err := defaults.Value(sampleTypes(), testdeep, defaults.Options{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"first":  map[string]any{"full": map[string]any{"allergies": false, "first": "", "last": ""}},
		"second": map[string]any{"hello": ""},
		"last":   "",
	}, v)
}

func TestValue_ArrayWithMinimumHasOneElement(t *testing.T) {
	// minimum declared on the array
	arr := &formtree.Definition{Shape: formtree.Array{Min: formtree.Bound(1), Element: formtree.Static(str("item"))}}
	v, err := defaults.Value(nil, arr, defaults.Options{})
	require.NoError(t, err)
	assert.Equal(t, []any{""}, v)

	// minimum declared on the element
	elemMin := &formtree.Definition{Shape: formtree.Array{Element: formtree.Static(&formtree.Definition{Shape: formtree.String{Min: formtree.Bound(1)}})}}
	v, err = defaults.Value(nil, elemMin, defaults.Options{})
	require.NoError(t, err)
	assert.Equal(t, []any{""}, v)

	// explicit request
	plain := &formtree.Definition{Shape: formtree.Array{Element: formtree.Static(&formtree.Definition{Shape: formtree.Boolean{}})}}
	v, err = defaults.Value(nil, plain, defaults.Options{OneElementInArray: true})
	require.NoError(t, err)
	assert.Equal(t, []any{false}, v)
	v, err = defaults.Value(nil, plain, defaults.Options{})
	require.NoError(t, err)
	assert.Equal(t, []any{}, v)
}

func TestValue_NegativeElementMinimumKeepsArrayEmpty(t *testing.T) {
	arr := &formtree.Definition{Shape: formtree.Array{Element: formtree.Static(&formtree.Definition{Shape: formtree.Number{Min: formtree.Limit(-5)}})}}
	v, err := defaults.Value(formtree.Registry{}, arr, defaults.Options{})
	require.NoError(t, err)
	assert.Equal(t, []any{}, v)

	arr = &formtree.Definition{Shape: formtree.Array{Element: formtree.Static(&formtree.Definition{Shape: formtree.Number{Min: formtree.Limit(0.5)}})}}
	v, err = defaults.Value(formtree.Registry{}, arr, defaults.Options{})
	require.NoError(t, err)
	assert.Len(t, v, 1)
}

func TestValue_Leaves(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	env := formtree.MapEnv{"amount": "12", "n": big.NewInt(42)}
	cases := []struct {
		name string
		def  *formtree.Definition
		opts defaults.Options
		want any
	}{
		{"boolean", &formtree.Definition{Shape: formtree.Boolean{}}, defaults.Options{}, false},
		{"number", &formtree.Definition{Shape: formtree.Number{}}, defaults.Options{}, 0.0},
		{"number min", &formtree.Definition{Shape: formtree.Number{Min: formtree.Limit(5)}}, defaults.Options{}, 5.0},
		{"date", &formtree.Definition{Shape: formtree.Date{}}, defaults.Options{Now: func() time.Time { return now }}, now},
		{"enum", &formtree.Definition{Shape: formtree.Enum{Options: []string{"USD", "EUR"}}}, defaults.Options{}, "USD"},
		{"empty enum", &formtree.Definition{Shape: formtree.Enum{}}, defaults.Options{}, ""},
		{"any", &formtree.Definition{Shape: formtree.Any{}}, defaults.Options{}, ""},
		{"binary", &formtree.Definition{Shape: formtree.String{Binary: true}}, defaults.Options{}, "0x"},
		{"address", &formtree.Definition{Shape: formtree.String{Address: true}}, defaults.Options{}, ""},
		{"address default", &formtree.Definition{Default: "0x52908400098527886E0F7030069857D2E4169EE7", Shape: formtree.String{Address: true}}, defaults.Options{}, "0x52908400098527886e0f7030069857d2e4169ee7"},
		{"expr bound", &formtree.Definition{Shape: formtree.String{Expr: true}}, defaults.Options{Env: env, Key: "amount"}, `"12"`},
		{"expr big", &formtree.Definition{Shape: formtree.String{Expr: true}}, defaults.Options{Env: env, Key: "n"}, "42"},
		{"expr unbound", &formtree.Definition{Shape: formtree.String{Expr: true}}, defaults.Options{Env: env, Key: "other"}, ""},
		{"explicit default", &formtree.Definition{Default: "x", Shape: formtree.String{}}, defaults.Options{}, "x"},
		{"default producer", &formtree.Definition{Default: func() any { return 7.0 }, Shape: formtree.Number{}}, defaults.Options{}, 7.0},
		{"deep optional", &formtree.Definition{Optional: true, Shape: formtree.String{}}, defaults.Options{Deep: true}, nil},
		{"deep optional with default", &formtree.Definition{Optional: true, Default: "d", Shape: formtree.String{}}, defaults.Options{Deep: true}, "d"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := defaults.Value(nil, tc.def, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, v)
		})
	}
}

func TestValue_UnknownNamedType(t *testing.T) {
	_, err := defaults.Value(formtree.Registry{}, &formtree.Definition{Shape: formtree.Named{Name: "ghost"}}, defaults.Options{})
	assert.Equal(t, formtree.CodeUnknownType, formtree.CodeOf(err))
}

// Generated defaults pass validation when optional; a required value the
// generator leaves out is reported as missing.
func TestValue_ConsistentWithValidation(t *testing.T) {
	leaves := []formtree.Shape{formtree.String{}, formtree.Number{}, formtree.Boolean{}, formtree.Date{}, formtree.Enum{Options: []string{"a"}}}
	for _, shape := range leaves {
		opt := &formtree.Definition{Optional: true, Shape: shape}
		v, err := defaults.Value(nil, opt, defaults.Options{})
		require.NoError(t, err)
		assert.NoError(t, validity.Validate(opt, v, nil), "%T", shape)

		deep, err := defaults.Value(nil, opt, defaults.Options{Deep: true})
		require.NoError(t, err)
		require.Nil(t, deep)
		req := &formtree.Definition{Shape: shape}
		assert.Equal(t, formtree.CodeRequired, formtree.CodeOf(validity.Validate(req, deep, nil)), "%T", shape)
	}
}

func TestCell_FollowsDefinition(t *testing.T) {
	s := cells.NewSheet()
	types := s.New(sampleTypes())
	def := s.New(&formtree.Definition{Shape: formtree.Named{Name: "fullname"}})
	c := defaults.Cell(s, types, def, defaults.Options{}, true)

	v, err := s.Get(c)
	require.NoError(t, err)
	out, err := cells.Uncellify(s, v.(*cells.Cell))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"first": "", "last": "", "allergies": false}, out)

	require.NoError(t, s.Set(def, &formtree.Definition{Shape: formtree.Boolean{}}))
	v, err = s.Get(c)
	require.NoError(t, err)
	out, err = cells.Uncellify(s, v.(*cells.Cell))
	require.NoError(t, err)
	assert.Equal(t, false, out)
}
