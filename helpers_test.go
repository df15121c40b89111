package formtree_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/formtree"
	"github.com/reoring/formtree/cells"
)

func TestNewSchema_Defaults(t *testing.T) {
	s := cells.NewSheet()
	sc := formtree.NewSchema(s, formtree.ObjectDefinition("x"), nil)
	assert.Equal(t, []formtree.GroupDefinition{formtree.MainGroup}, sc.Groups)
	reg, err := s.Get(sc.Types)
	require.NoError(t, err)
	assert.Equal(t, formtree.Registry{}, reg)
}

func TestDatatypeOf(t *testing.T) {
	for want, def := range map[string]*formtree.Definition{
		"string":  {Shape: formtree.String{}},
		"number":  {Shape: formtree.Number{}},
		"boolean": {Shape: formtree.Boolean{}},
		"date":    {Shape: formtree.Date{}},
		"array":   {Shape: formtree.Array{}},
		"dict":    {Shape: formtree.Dict{}},
		"enum":    {Shape: formtree.Enum{}},
		"object":  formtree.ObjectDefinition(""),
		"any":     {Shape: formtree.Any{}},
		"account": {Shape: formtree.Named{Name: "account"}},
	} {
		assert.Equal(t, want, formtree.DatatypeOf(def))
	}
	assert.Equal(t, "field group", formtree.TypeLabel("object"))
	assert.Equal(t, "checkbox", formtree.TypeLabel("boolean"))
	assert.Equal(t, "date", formtree.TypeLabel("date"))
}

func TestIsFieldName(t *testing.T) {
	for name, ok := range map[string]bool{"a": true, "_x1": true, "Ab_9": true, "1a": false, "a-b": false, "": false} {
		assert.Equal(t, ok, formtree.IsFieldName(name), name)
	}
}

func TestValueTypes(t *testing.T) {
	reg := formtree.Registry{"zeta": nil, "alpha": nil}
	assert.Equal(t, []string{"string", "number", "date", "boolean", "enum", "alpha", "zeta"}, formtree.ValueTypes(reg))
}

func TestDefinition_String(t *testing.T) {
	def := formtree.ObjectDefinition("",
		formtree.FieldOf("tags", &formtree.Definition{Shape: formtree.Array{
			Element: formtree.Static(&formtree.Definition{Shape: formtree.String{}}),
		}}),
		formtree.FieldOf("owner", &formtree.Definition{Shape: formtree.Named{Name: "account"}}),
		formtree.FieldOf("mode", &formtree.Definition{Shape: formtree.Enum{Options: []string{"a", "b"}}}),
		formtree.FieldOf("m", &formtree.Definition{Shape: formtree.Dict{}}),
	)
	assert.Equal(t, `{tags: string[], owner: ACCOUNT, mode: "a"|"b", m: {key: type}}`, def.String())
	var nilDef *formtree.Definition
	assert.Equal(t, "type", nilDef.String())
}

func TestDefineValue(t *testing.T) {
	s := cells.NewSheet()
	sc := formtree.NewSchema(s, formtree.ObjectDefinition("", formtree.FieldOf("name", &formtree.Definition{Shape: formtree.String{}})), nil)

	require.NoError(t, formtree.DefineValue(s, sc, formtree.TargetValues, "age", "Age", "number"))
	v, err := s.Get(sc.Values)
	require.NoError(t, err)
	obj := v.(*formtree.Definition).Shape.(formtree.Object)
	require.Len(t, obj.Fields, 2)
	f, ok := obj.Lookup("age")
	require.True(t, ok)
	def, err := f(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Age", def.Label)

	err = formtree.DefineValue(s, sc, formtree.TargetValues, "NAME", "", "string")
	assert.True(t, errors.Is(err, formtree.ErrFieldExists))

	require.NoError(t, formtree.DefineValue(s, sc, formtree.TargetTypes, "color", "Color", "enum", "red", "blue"))
	reg, err := s.Get(sc.Types)
	require.NoError(t, err)
	cd, err := reg.(formtree.Registry)["color"](nil, nil)
	require.NoError(t, err)
	assert.Equal(t, formtree.Enum{Options: []string{"red", "blue"}}, cd.Shape)
	assert.True(t, errors.Is(formtree.DefineValue(s, sc, formtree.TargetTypes, "Color", "", "string"), formtree.ErrFieldExists))

	assert.Error(t, formtree.DefineValue(s, sc, formtree.TargetValues, "x", "", "object"))
}
