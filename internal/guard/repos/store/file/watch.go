package file

import (
	"bytes"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/haukened/siteguard/internal/guard/repos/store"
)

// watch observes the containing directory, since editors and our own atomic
// writes replace the file rather than writing it in place.
func (s *Store) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return err
	}
	s.watcher = w
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.processEvents()
	return nil
}

func (s *Store) processEvents() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case evt, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != s.path {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			s.reload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error(map[string]any{"path": s.path, "error": err}, "settings watcher error")
		}
	}
}

// reload re-reads the document and publishes a Change for every key whose
// value differs. Reloading our own write finds no differences.
func (s *Store) reload() {
	next, err := s.load()
	if err != nil {
		s.logger.Warn(map[string]any{"path": s.path, "error": err}, "settings reload failed, keeping previous values")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	changes := diff(s.values, next)
	s.values = next
	s.mu.Unlock()

	if len(changes) > 0 {
		s.logger.Debug(map[string]any{"path": s.path, "changes": len(changes)}, "settings reloaded")
	}
	for _, c := range changes {
		s.Publish(c)
	}
}

func diff(prev, next map[string][]byte) []store.Change {
	var out []store.Change
	for k, v := range next {
		if old, ok := prev[k]; !ok || !bytes.Equal(old, v) {
			out = append(out, store.Change{Key: k})
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			out = append(out, store.Change{Key: k, Deleted: true})
		}
	}
	return out
}
