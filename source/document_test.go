package source_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/formtree"
	"github.com/reoring/formtree/cells"
	"github.com/reoring/formtree/source"
)

func TestDecode_Cellifies(t *testing.T) {
	s := cells.NewSheet()
	c, err := source.DecodeBytes(s, []byte(`{"name":"n","tags":["a","b"],"size":3,"on":true,"none":null}`))
	require.NoError(t, err)

	v, err := s.Get(c)
	require.NoError(t, err)
	m := v.(map[string]*cells.Cell)
	require.Len(t, m, 5)
	tags, err := s.Get(m["tags"])
	require.NoError(t, err)
	assert.Len(t, tags.([]*cells.Cell), 2)

	plain, err := cells.Uncellify(s, c)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name": "n",
		"tags": []any{"a", "b"},
		"size": 3.0,
		"on":   true,
		"none": nil,
	}, plain)
	// one cell per scalar, per element and per container
	assert.Equal(t, 8, s.Stats().Size)
}

func TestDecode_JSONNumbers(t *testing.T) {
	s := cells.NewSheet()
	c, err := source.DecodeBytes(s, []byte(`[1.50, 10]`), source.Options{Numbers: source.NumberJSONNumber})
	require.NoError(t, err)
	plain, err := cells.Uncellify(s, c)
	require.NoError(t, err)
	assert.Equal(t, []any{json.Number("1.50"), json.Number("10")}, plain)
}

func TestDecode_DuplicateKeys(t *testing.T) {
	s := cells.NewSheet()
	_, err := source.DecodeBytes(s, []byte(`{"a":{"b":1,"b":2}}`))
	require.Error(t, err)
	assert.Equal(t, formtree.CodeDuplicateKey, formtree.CodeOf(err))
	iss, ok := formtree.AsIssues(err)
	require.True(t, ok)
	assert.Equal(t, "/a/b", iss[0].Path)
	assert.Equal(t, 0, s.Stats().Size, "partial cells are collected")

	c, err := source.DecodeBytes(s, []byte(`{"b":[1],"b":2}`), source.Options{AllowDuplicateKeys: true})
	require.NoError(t, err)
	plain, err := cells.Uncellify(s, c)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": 2.0}, plain)
	assert.Equal(t, 2, s.Stats().Size, "overwritten value is released")
}

func TestDecode_Malformed(t *testing.T) {
	for name, in := range map[string]string{
		"empty":     ``,
		"truncated": `{"a": [1, 2`,
		"trailing":  `{"a": 1} 2`,
	} {
		t.Run(name, func(t *testing.T) {
			s := cells.NewSheet()
			_, err := source.Decode(s, strings.NewReader(in))
			require.Error(t, err)
			assert.Equal(t, 0, s.Stats().Size)
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	s := cells.NewSheet()
	c := cells.Cellify(s, map[string]any{"b": []any{1.0, "x"}, "a": true})
	var buf bytes.Buffer
	require.NoError(t, source.Encode(&buf, s, c))
	assert.Equal(t, "{\n  \"a\": true,\n  \"b\": [\n    1,\n    \"x\"\n  ]\n}\n", buf.String())

	back, err := source.Decode(s, &buf)
	require.NoError(t, err)
	plain, err := cells.Uncellify(s, back)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": []any{1.0, "x"}, "a": true}, plain)
}
