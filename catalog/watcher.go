package catalog

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/logger"
)

// watchDebounce coalesces bursts of filesystem events (a download
// writing a file produces many) into a single rescan request.
const watchDebounce = 2 * time.Second

// Watcher observes the music root and emits rescan requests when audio
// files appear, change or disappear. Subdirectories are watched
// recursively; new directories are added as they are created.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	req     chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	timer   *time.Timer
	closeMu sync.Once
}

// NewWatcher starts watching the music root tree.
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root: root,
		fsw:  fsw,
		req:  make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	go w.run()
	logger.Info("watching music directory", zap.String("root", root))
	return w, nil
}

// Requests returns the channel that receives rescan requests. The
// channel has capacity one; a request arriving while one is pending is
// dropped, which is fine because a scan reconciles everything.
func (w *Watcher) Requests() <-chan struct{} {
	return w.req
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("filesystem watch error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return
	}
	if ev.Op.Has(fsnotify.Create) {
		// A new directory needs its own watch before files land in it.
		// Plain files already generate events through their parent.
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.fsw.Add(ev.Name); err == nil {
				logger.Debug("watching new directory", zap.String("path", ev.Name))
			}
		}
	}
	if !IsAudioFile(ev.Name) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, func() {
		select {
		case w.req <- struct{}{}:
		default:
		}
	})
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeMu.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.fsw.Close()
	})
	return err
}
