// If you are AI: This file adds an optional fsnotify watch over the
// output's most recently created date-partition directory, so that if an
// operator (or a log-rotation cron job) removes it out from under a live
// Output, the next persist() call recreates it instead of silently
// failing forever because dirCache still claims it exists. Supplements
// spec.md §4.7's "log but do not throw" persistence-failure policy.

package fanout

import (
	"sync"

	"github.com/fsnotify/fsnotify"
)

type dirWatcher struct {
	w  *fsnotify.Watcher
	mu sync.Mutex
	o  *Output
}

// EnableDirWatch starts watching directories this Output creates, so an
// externally deleted date-partition directory is noticed and recreated on
// the next write rather than producing mkdir errors forever. It is
// optional: an Output that never calls this behaves exactly as before.
func (o *Output) EnableDirWatch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dw := &dirWatcher{w: w, o: o}
	o.watcher = dw
	go dw.run()
	return nil
}

// track adds dir to the watch set, removing the previously tracked
// directory first since only the most recent one can ever be o.dirCache.
func (dw *dirWatcher) track(dir string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	for _, existing := range dw.w.WatchList() {
		dw.w.Remove(existing)
	}
	dw.w.Add(dir)
}

func (dw *dirWatcher) run() {
	for {
		select {
		case ev, ok := <-dw.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				dw.o.mu.Lock()
				if ev.Name == dw.o.dirCache {
					dw.o.dirCache = ""
				}
				dw.o.mu.Unlock()
			}
		case _, ok := <-dw.w.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the directory watcher, if one was enabled.
func (dw *dirWatcher) Close() error {
	return dw.w.Close()
}
