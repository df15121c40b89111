// Package source loads documents and schemas into a cells.Sheet: JSON data
// documents become nested cells, YAML files become a formtree.TypeScheme, and
// Watch reloads a schema file when it changes on disk.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/reoring/formtree"
	"github.com/reoring/formtree/cells"
)

// NumberMode selects how JSON numbers are stored in cells.
type NumberMode int

const (
	// NumberFloat64 stores numbers as float64 (default).
	NumberFloat64 NumberMode = iota
	// NumberJSONNumber keeps the literal as json.Number.
	NumberJSONNumber
)

// Options configures Decode. When several are passed, the last one wins.
type Options struct {
	Numbers NumberMode
	// AllowDuplicateKeys keeps the last occurrence of a repeated object key
	// instead of failing with CodeDuplicateKey.
	AllowDuplicateKeys bool
}

// Decode reads one JSON value from r and cellifies it the way cells.Cellify
// does: objects become map[string]*cells.Cell, arrays []*cells.Cell, scalars
// their own cell. Trailing data after the value is an error. On failure every
// cell created so far is collected.
func Decode(s *cells.Sheet, r io.Reader, opts ...Options) (*cells.Cell, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[len(opts)-1]
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	d := &decoder{sheet: s, dec: dec, opts: o}

	root, err := d.value(nil)
	if err == nil {
		err = d.end()
	}
	if err != nil {
		for _, c := range d.made {
			s.Collect(c)
		}
		return nil, err
	}
	return root, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(s *cells.Sheet, b []byte, opts ...Options) (*cells.Cell, error) {
	return Decode(s, bytes.NewReader(b), opts...)
}

// Encode writes the plain value held by c (and its nested cells) as indented
// JSON. Object keys are sorted.
func Encode(w io.Writer, s *cells.Sheet, c *cells.Cell) error {
	v, err := cells.Uncellify(s, c)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type decoder struct {
	sheet *cells.Sheet
	dec   *json.Decoder
	opts  Options
	made  []*cells.Cell
}

func (d *decoder) cell(v any) *cells.Cell {
	c := d.sheet.New(v)
	d.made = append(d.made, c)
	return c
}

func (d *decoder) token(p formtree.Path) (json.Token, error) {
	tok, err := d.dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("source: unexpected end of input at %s", p.Pointer())
	}
	if err != nil {
		return nil, fmt.Errorf("source: %s: %w", p.Pointer(), err)
	}
	return tok, nil
}

func (d *decoder) value(p formtree.Path) (*cells.Cell, error) {
	tok, err := d.token(p)
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return d.object(p)
		case '[':
			return d.array(p)
		}
		return nil, fmt.Errorf("source: unexpected %q at %s", rune(v), p.Pointer())
	case json.Number:
		if d.opts.Numbers == NumberJSONNumber {
			return d.cell(v), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("source: number %s at %s: %w", v, p.Pointer(), err)
		}
		return d.cell(f), nil
	case float64:
		if d.opts.Numbers == NumberJSONNumber {
			return d.cell(json.Number(fmt.Sprint(v))), nil
		}
		return d.cell(v), nil
	}
	return d.cell(tok), nil
}

func (d *decoder) object(p formtree.Path) (*cells.Cell, error) {
	m := map[string]*cells.Cell{}
	for d.dec.More() {
		tok, err := d.token(p)
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("source: object key expected at %s, got %v", p.Pointer(), tok)
		}
		prev, dup := m[key]
		if dup && !d.opts.AllowDuplicateKeys {
			return nil, formtree.Fail(p.Field(key), formtree.CodeDuplicateKey, "key", key)
		}
		c, err := d.value(p.Field(key))
		if err != nil {
			return nil, err
		}
		if dup {
			cells.CollectDeep(d.sheet, prev)
		}
		m[key] = c
	}
	if _, err := d.token(p); err != nil {
		return nil, err
	}
	return d.cell(m), nil
}

func (d *decoder) array(p formtree.Path) (*cells.Cell, error) {
	arr := []*cells.Cell{}
	for i := 0; d.dec.More(); i++ {
		c, err := d.value(p.Index(i))
		if err != nil {
			return nil, err
		}
		arr = append(arr, c)
	}
	if _, err := d.token(p); err != nil {
		return nil, err
	}
	return d.cell(arr), nil
}

func (d *decoder) end() error {
	tok, err := d.dec.Token()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("source: trailing data: %w", err)
	}
	return fmt.Errorf("source: trailing data starting with %v", tok)
}
