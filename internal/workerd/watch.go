package workerd

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/slipstream/slip/internal/config"
	"github.com/slipstream/slip/internal/idle"
)

// configWatcher applies idle_timeout changes from config.toml while the worker runs.
type configWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	sup     *idle.Supervisor
	logger  *log.Logger
	done    chan struct{}
}

// watchConfig watches the directory holding path, since config.Save replaces
// the file by rename.
func watchConfig(path string, sup *idle.Supervisor, logger *log.Logger) (*configWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}
	cw := &configWatcher{
		watcher: w,
		path:    filepath.Clean(path),
		sup:     sup,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go cw.loop()
	return cw, nil
}

func (cw *configWatcher) loop() {
	defer close(cw.done)
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				cw.reload()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Printf("Warning: config watcher: %v", err)
		}
	}
}

func (cw *configWatcher) reload() {
	cfg, err := config.Load(cw.path)
	if err != nil {
		cw.logger.Printf("Warning: reloading config, keeping idle timeout %v: %v", cw.sup.Timeout(), err)
		return
	}
	for _, w := range cfg.Validate() {
		cw.logger.Printf("Warning: %s", w)
	}
	timeout := cfg.Worker.IdleTimeout.Duration
	if timeout == cw.sup.Timeout() {
		return
	}
	cw.sup.SetTimeout(timeout)
	cw.logger.Printf("Idle timeout changed to %v", cw.sup.Timeout())
}

// Close stops watching and waits for the event loop to exit.
func (cw *configWatcher) Close() error {
	err := cw.watcher.Close()
	<-cw.done
	return err
}
