package consulconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"inspector/pkg/logging"
)

const defaultDebounceInterval = 500 * time.Millisecond

// TokenWatcher re-reads the Consul configuration when files under the
// configured path change and reports a changed ACL token.
type TokenWatcher struct {
	mu sync.Mutex

	// path is the configuration file or directory being watched
	path string

	// inline is configuration passed through the environment
	inline string

	// debounceInterval is how long to wait for additional changes
	debounceInterval time.Duration

	// onChange receives the new token
	onChange func(token string)

	// token is the last reported token
	token string

	timer *time.Timer
}

// NewTokenWatcher creates a watcher for the configuration at path. The
// initial token is the one already in use so that only changes are reported.
func NewTokenWatcher(path, inline, initialToken string, debounceInterval time.Duration, onChange func(token string)) *TokenWatcher {
	if debounceInterval == 0 {
		debounceInterval = defaultDebounceInterval
	}

	return &TokenWatcher{
		path:             path,
		inline:           inline,
		debounceInterval: debounceInterval,
		onChange:         onChange,
		token:            initialToken,
	}
}

// Run watches for changes until ctx is cancelled.
func (w *TokenWatcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.path)
	if err != nil {
		logging.Info(subsystem, "Not watching %s for token changes: %v", w.path, err)
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Files are watched through their directory since editors and
	// configuration managers usually replace them by rename.
	dir := w.path
	if !info.IsDir() {
		dir = filepath.Dir(w.path)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	logging.Info(subsystem, "Watching %s for token changes", w.path)

	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if w.relevant(event, info.IsDir()) {
				w.schedule()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error(subsystem, err, "Configuration watcher error")
		}
	}
}

func (w *TokenWatcher) relevant(event fsnotify.Event, watchingDir bool) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if watchingDir {
		return isConfigFile(event.Name)
	}
	return filepath.Clean(event.Name) == filepath.Clean(w.path)
}

// schedule debounces rapid successive changes into one reload.
func (w *TokenWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceInterval, w.reload)
}

func (w *TokenWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *TokenWatcher) reload() {
	values, err := Load(w.path, w.inline)
	if err != nil {
		logging.Error(subsystem, err, "Failed to reload Consul configuration")
		return
	}

	token := values.Token()

	w.mu.Lock()
	changed := token != w.token
	w.token = token
	w.mu.Unlock()

	if changed {
		logging.Info(subsystem, "ACL token changed in %s", w.path)
		w.onChange(token)
	}
}
