package registry

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tunnelgate/gateway/internal/obslog"
)

// FilesystemWatcher watches one or more capability directories and
// invokes onChange with the changed file's path once events settle,
// debounced the way the teacher's reconciler detector coalesces bursts
// of editor saves/renames into a single reload.
type FilesystemWatcher struct {
	watcher      *fsnotify.Watcher
	debounce     time.Duration
	onChange     func(path string)
	pending      map[string]*time.Timer
}

func NewFilesystemWatcher(dirs []string, debounce time.Duration, onChange func(path string)) (*FilesystemWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			obslog.Warn("registry-watcher", "cannot watch %s: %v", d, err)
		}
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &FilesystemWatcher{watcher: w, debounce: debounce, onChange: onChange, pending: make(map[string]*time.Timer)}, nil
}

// Run blocks processing events until the watcher is closed.
func (fw *FilesystemWatcher) Run() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			fw.debounceEvent(event.Name)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			obslog.Warn("registry-watcher", "watch error: %v", err)
		}
	}
}

func (fw *FilesystemWatcher) debounceEvent(path string) {
	ext := filepath.Ext(path)
	if ext != ".yaml" && ext != ".yml" {
		return
	}
	if t, ok := fw.pending[path]; ok {
		t.Stop()
	}
	fw.pending[path] = time.AfterFunc(fw.debounce, func() {
		fw.onChange(path)
	})
}

func (fw *FilesystemWatcher) Close() error { return fw.watcher.Close() }
