package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch loads member files that another process drops into the store
// directory. Ids already in the cache are ignored: the cache stays
// authoritative and our own renames show up here too. Stops when ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create member directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
					s.pickUp(ev.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("member directory watcher", "error", err)
			}
		}
	}()
	return nil
}

// pickUp loads the member file at path into the cache if its id is not yet
// tracked. Reports whether a record was added.
func (s *Store) pickUp(path string) bool {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, fileExt) || strings.HasPrefix(base, ".") {
		return false
	}
	id, err := url.PathUnescape(strings.TrimSuffix(base, fileExt))
	if err != nil || id == "" {
		return false
	}

	s.mu.RLock()
	_, cached := s.cache[id]
	s.mu.RUnlock()
	if cached {
		return false
	}

	rec, ok := s.loadFile(path)
	if !ok || rec.ID != id {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cache[id]; exists {
		return false
	}
	s.cache[id] = rec
	s.logger.Info("picked up member file", "member_id", id)
	return true
}
