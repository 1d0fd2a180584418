package atlas

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher reloads a descriptor file whenever it changes on disk. Each
// successful reload produces a new Descriptor; existing ones are never
// modified. Invalid edits are reported on Errors and the previous descriptor
// stays in use.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	Reloads chan *Descriptor
	Errors  chan error
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewWatcher watches the directory holding path so that editors which replace
// the file on save are still observed.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, err
	}

	watcher := &Watcher{
		path:    abs,
		watcher: w,
		Reloads: make(chan *Descriptor, 1),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
		close(w.Reloads)
		close(w.Errors)
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)

	// Saves usually arrive as a burst of events; reload once they settle.
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			d, err := Load(w.path)
			if err != nil {
				w.send(nil, err)
				continue
			}
			w.send(d, nil)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.send(nil, err)
		case <-w.closeCh:
			return
		}
	}
}

// send replaces any unread value so consumers always see the newest state.
func (w *Watcher) send(d *Descriptor, err error) {
	if err != nil {
		select {
		case w.Errors <- err:
		default:
		}
		return
	}
	for {
		select {
		case w.Reloads <- d:
			return
		default:
		}
		select {
		case <-w.Reloads:
		default:
		}
	}
}
