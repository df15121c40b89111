package source_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/formtree"
	"github.com/reoring/formtree/source"
)

// waitFor reads reloads until one satisfies ok. Writes may surface as
// several events, some of them observing a truncated file.
func waitFor(t *testing.T, ch <-chan source.Reload, ok func(source.Reload) bool) source.Reload {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case r, open := <-ch:
			require.True(t, open, "watch channel closed")
			if ok(r) {
				return r
			}
		case <-deadline:
			t.Fatal("no matching reload within 5s")
		}
	}
}

func shapeIs[S formtree.Shape](r source.Reload) bool {
	if r.Err != nil {
		return false
	}
	_, ok := r.Schema.Values.Shape.(S)
	return ok
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("values: string\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := source.Watch(ctx, path)
	require.NoError(t, err)

	first := <-ch
	require.NoError(t, first.Err)
	assert.Equal(t, formtree.String{}, first.Schema.Values.Shape)

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("values: number\n"), 0o600))
	waitFor(t, ch, shapeIs[formtree.Number])

	require.NoError(t, os.WriteFile(path, []byte("values: [\n"), 0o600))
	bad := waitFor(t, ch, func(r source.Reload) bool { return r.Err != nil })
	assert.Nil(t, bad.Schema.Values)

	// renamed into place
	tmp := filepath.Join(dir, "schema.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("values: boolean\n"), 0o600))
	require.NoError(t, os.Rename(tmp, path))
	waitFor(t, ch, shapeIs[formtree.Boolean])

	cancel()
	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatch_MissingDirectory(t *testing.T) {
	_, err := source.Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "schema.yaml"))
	assert.Error(t, err)
}
