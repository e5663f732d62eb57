package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is a detected file modification.
type Event struct {
	Path string
	Time time.Time
}

// Handler receives modification events. It is called from the watcher's
// delivery goroutine, one event at a time.
type Handler func(Event)

// Options configures a Watcher.
type Options struct {
	// Root is the directory tree to watch recursively.
	Root string

	// IgnorePaths are directories whose contents never trigger the handler,
	// typically the serving directory when it lives under Root.
	IgnorePaths []string

	// Ignore holds glob patterns matched against paths relative to Root.
	Ignore []string

	// Debounce coalesces events arriving within the interval. Zero
	// delivers every event.
	Debounce time.Duration

	// Logger is used for structured logging.
	Logger *slog.Logger
}

// Watcher delivers modification events under a directory tree.
type Watcher struct {
	opts    Options
	handler Handler
	match   *matcher

	fs        *fsnotify.Watcher
	debouncer *Debouncer

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Watcher. Nothing is observed until Start.
func New(opts Options, handler Handler) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch: handler is required")
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	m, err := newMatcher(opts.IgnorePaths, opts.Ignore)
	if err != nil {
		return nil, err
	}

	return &Watcher{
		opts:    opts,
		handler: handler,
		match:   m,
		done:    make(chan struct{}),
	}, nil
}

// Start arms the watches and begins delivery in the background. When
// Start returns nil every directory under Root is being observed.
func (w *Watcher) Start() error {
	root, err := filepath.Abs(w.opts.Root)
	if err != nil {
		return fmt.Errorf("resolving watch root: %w", err)
	}

	w.opts.Root = root

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	if err := w.addRecursive(fw, root); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watching %s: %w", root, err)
	}

	w.fs = fw

	deliver := w.handler
	if w.opts.Debounce > 0 {
		w.debouncer = NewDebouncer(w.opts.Debounce, w.handler)
		deliver = w.debouncer.Trigger
	}

	w.wg.Add(1)

	go w.loop(deliver)

	w.opts.Logger.Info("observer started", slog.String("root", root))

	return nil
}

// Close stops delivery and releases the underlying watches.
func (w *Watcher) Close() error {
	var err error

	w.closeOnce.Do(func() {
		close(w.done)

		if w.debouncer != nil {
			w.debouncer.Stop()
		}

		if w.fs != nil {
			err = w.fs.Close()
		}

		w.wg.Wait()
	})

	return err
}

func (w *Watcher) loop(deliver Handler) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}

			// A new directory is not itself a modification, but anything
			// edited inside it later must be seen.
			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					w.watchNewDir(event.Name)
				}
			}

			if !isModification(event) || w.match.ignored(w.opts.Root, event.Name) {
				continue
			}

			select {
			case <-w.done:
				return
			default:
			}

			w.opts.Logger.Debug("modified", slog.String("path", event.Name))
			deliver(Event{Path: event.Name, Time: time.Now()})

		case watchErr, ok := <-w.fs.Errors:
			if !ok {
				return
			}

			w.opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// watchNewDir adds a directory created after Start to the watch set.
func (w *Watcher) watchNewDir(dir string) {
	if w.match.ignored(w.opts.Root, dir) {
		return
	}

	if err := w.addRecursive(w.fs, dir); err != nil {
		w.opts.Logger.Warn("watching new directory",
			slog.String("path", dir),
			slog.String("error", err.Error()),
		)
	}
}

// addRecursive walks root and adds all directories to the watcher.
func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		// Skip hidden directories (e.g., .git).
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}

		if path != root && w.match.ignored(w.opts.Root, path) {
			return filepath.SkipDir
		}

		return fw.Add(path)
	})
}

// isModification keeps write events only; create, remove, rename and
// chmod never trigger a restart.
func isModification(event fsnotify.Event) bool {
	return event.Has(fsnotify.Write)
}
