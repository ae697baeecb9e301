package app

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ConfigWatcher reloads the config file when it changes on disk, so a running
// TUI or server picks up key/preference edits without a restart. Preferences
// are only ever mutated by explicit user saves; the watcher just observes.
type ConfigWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	log     *logrus.Logger

	mu       sync.Mutex
	onChange func(Config)
	closed   bool
	done     chan struct{}
}

// WatchConfig starts watching path. onChange is invoked with the freshly
// loaded config after each write, debounced so editors that write twice
// (truncate then rename) trigger a single reload.
func WatchConfig(path string, log *logrus.Logger, onChange func(Config)) (*ConfigWatcher, error) {
	if log == nil {
		log = NewQuietLogger()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors commonly replace the file, which drops a
	// watch placed on the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	cw := &ConfigWatcher{
		path:     path,
		watcher:  w,
		log:      log,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go cw.loop()
	return cw, nil
}

func (cw *ConfigWatcher) loop() {
	defer close(cw.done)
	var timer *time.Timer
	reload := func() {
		cfg, err := LoadConfig(cw.path)
		if err != nil {
			cw.log.WithError(err).Warn("config reload failed")
			return
		}
		cw.mu.Lock()
		fn := cw.onChange
		cw.mu.Unlock()
		if fn != nil {
			fn(cfg)
		}
	}
	for {
		select {
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(cw.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(100*time.Millisecond, reload)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.log.WithError(err).Warn("config watcher error")
		}
	}
}

func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	if cw.closed {
		cw.mu.Unlock()
		return nil
	}
	cw.closed = true
	cw.mu.Unlock()
	err := cw.watcher.Close()
	<-cw.done
	return err
}
