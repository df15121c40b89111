package source

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Reload is one (re)load of a watched schema file. Err is set when the file
// could not be read or parsed; Schema is then the zero value.
type Reload struct {
	Schema Schema
	Err    error
}

// WatchOptions configures Watch. When several are passed, the last one wins.
type WatchOptions struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Watch loads the schema at path and reloads it whenever the file is written,
// created or renamed into place. The first Reload carries the initial load.
// The channel is closed when ctx is done or the watcher fails.
//
// The containing directory is watched rather than the file, so editors that
// save through a temporary file and a rename are followed.
//
// Reloads are delivered on the caller's side of the channel; applying them to
// a Sheet (Schema.Apply) stays on the goroutine that owns the Sheet.
func Watch(ctx context.Context, path string, opts ...WatchOptions) (<-chan Reload, error) {
	var o WatchOptions
	if len(opts) > 0 {
		o = opts[len(opts)-1]
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	path = filepath.Clean(path)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	out := make(chan Reload, 1)
	sw := &schemaWatcher{path: path, watcher: w, out: out, logger: o.Logger.With(slog.String("schema", path))}
	go sw.run(ctx)
	return out, nil
}

type schemaWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	out     chan Reload
	logger  *slog.Logger
}

func (sw *schemaWatcher) run(ctx context.Context) {
	defer close(sw.out)
	defer sw.watcher.Close()

	if !sw.load(ctx) {
		return
	}
	sw.logger.Debug("watching schema")
	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if !sw.relevant(event) {
				continue
			}
			sw.logger.Debug("schema changed", slog.String("op", event.Op.String()))
			if !sw.load(ctx) {
				return
			}

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Warn("schema watcher error", slog.Any("error", err))

		case <-ctx.Done():
			sw.logger.Debug("schema watcher stopping")
			return
		}
	}
}

func (sw *schemaWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != sw.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0
}

// load parses the file and delivers the result. It reports false when ctx
// ended before delivery.
func (sw *schemaWatcher) load(ctx context.Context) bool {
	sc, err := LoadSchema(sw.path)
	if err != nil {
		sw.logger.Warn("schema reload failed", slog.Any("error", err))
	}
	select {
	case sw.out <- Reload{Schema: sc, Err: err}:
		return true
	case <-ctx.Done():
		return false
	}
}
