package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher observes one directory tree through fsnotify, filters changes
// by suffix-style glob patterns, and forwards matches to the configured
// callback. Stop releases the OS handle; a watcher is never restarted in
// place — the owner builds a replacement after Stop returns.
type Watcher struct {
	options   Options
	mutex     sync.Mutex
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	done      chan struct{}
	started   bool
	closed    bool
}

func New(options Options) *Watcher {
	if options.Debounce <= 0 {
		options.Debounce = defaultDebounce
	}
	return &Watcher{options: options}
}

func (watcher *Watcher) Start() error {
	if watcher == nil {
		return errors.New("watcher unavailable")
	}
	path := strings.TrimSpace(watcher.options.Path)
	if path == "" {
		return errors.New("watch path required")
	}

	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	if watcher.closed {
		return errors.New("watcher already stopped")
	}
	if watcher.started {
		return errors.New("watcher already started")
	}

	source, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := source.Add(path); err != nil {
		_ = source.Close()
		return err
	}
	if watcher.options.Recursive {
		if err := addSubdirectories(source, path); err != nil {
			_ = source.Close()
			return err
		}
	}

	watcher.watcher = source
	watcher.debouncer = newDebouncer(watcher.options.Debounce)
	watcher.done = make(chan struct{})
	watcher.started = true
	go watcher.run(source)
	return nil
}

// Stop closes the OS watch handle. Safe to call more than once and
// before Start.
func (watcher *Watcher) Stop() {
	if watcher == nil {
		return
	}
	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return
	}
	watcher.closed = true
	source := watcher.watcher
	watcher.watcher = nil
	if watcher.debouncer != nil {
		watcher.debouncer.stop()
		watcher.debouncer = nil
	}
	done := watcher.done
	watcher.mutex.Unlock()

	if done != nil {
		close(done)
	}
	if source != nil {
		_ = source.Close()
	}
}

func (watcher *Watcher) run(source *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-source.Events:
			if !ok {
				return
			}
			watcher.handleEvent(source, event)
		case err, ok := <-source.Errors:
			if !ok {
				return
			}
			watcher.logWarn("watch error", map[string]string{
				"path":  watcher.options.Path,
				"error": err.Error(),
			})
		case <-watcher.done:
			return
		}
	}
}

func (watcher *Watcher) handleEvent(source *fsnotify.Watcher, event fsnotify.Event) {
	op, ok := classifyOp(event.Op)
	if !ok {
		return
	}

	if op == OpCreated && watcher.options.Recursive {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := source.Add(event.Name); err != nil {
				watcher.logWarn("watch subdirectory add failed", map[string]string{
					"path":  event.Name,
					"error": err.Error(),
				})
			}
			return
		}
	}

	if !matchesPatterns(event.Name, watcher.options.Patterns) {
		return
	}

	entry := FileEvent{
		Path:      event.Name,
		Op:        op,
		Timestamp: time.Now().UTC(),
	}

	watcher.mutex.Lock()
	if watcher.closed || watcher.debouncer == nil {
		watcher.mutex.Unlock()
		return
	}
	watcher.debouncer.schedule(event.Name, entry, watcher.flush)
	watcher.mutex.Unlock()
}

func (watcher *Watcher) flush(path string) {
	watcher.mutex.Lock()
	if watcher.closed || watcher.debouncer == nil {
		watcher.mutex.Unlock()
		return
	}
	entry, ok := watcher.debouncer.pop(path)
	watcher.mutex.Unlock()

	if !ok {
		return
	}
	if watcher.options.OnEvent != nil {
		watcher.options.OnEvent(entry)
	}
}

func (watcher *Watcher) logWarn(message string, fields map[string]string) {
	if watcher == nil || watcher.options.Logger == nil {
		return
	}
	watcher.options.Logger.Warn(message, fields)
}

func classifyOp(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreated, true
	case op.Has(fsnotify.Write):
		return OpModified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDeleted, true
	default:
		return "", false
	}
}

// matchesPatterns matches the file base name against suffix-style globs
// such as *.yaml. An empty pattern list matches everything.
func matchesPatterns(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}

func addSubdirectories(source *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() || path == root {
			return nil
		}
		return source.Add(path)
	})
}
