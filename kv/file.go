// kv/file.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package kv

import (
	"errors"
	"io/fs"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"sync"

	"github.com/harborline/harborline/log"
	"github.com/harborline/harborline/util"

	"github.com/fsnotify/fsnotify"
)

// FileStore keeps all of its entries in memory and writes the full set to
// a single zstd-compressed msgpack file on every Set. If Watch is called,
// writes to the file by other processes are picked up; concurrent writers
// are last-writer-wins.
type FileStore struct {
	path string
	lg   *log.Logger

	mu       sync.Mutex
	m        map[string][]byte
	onChange func()

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileStore opens the store at path. A missing file is an empty store;
// an unreadable one is logged and also treated as empty, since the
// contents are only preferences.
func NewFileStore(path string, lg *log.Logger) (*FileStore, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	s := &FileStore{
		path: path,
		lg:   lg,
		m:    make(map[string][]byte),
	}
	s.reload()
	return s, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) reload() {
	// Hold the lock while reading so that a reload can't interleave with
	// a Set and resurrect older contents.
	s.mu.Lock()
	m := make(map[string][]byte)
	if err := util.ReadObjectFile(s.path, &m); err != nil {
		s.mu.Unlock()
		if !errors.Is(err, fs.ErrNotExist) {
			s.lg.Warn("unable to read store; keeping current contents", slog.String("path", s.path),
				slog.Any("error", err))
		}
		return
	}
	s.m = m
	cb := s.onChange
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (s *FileStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.m[key]; ok {
		return slices.Clone(v), nil
	}
	return nil, ErrNotFound
}

func (s *FileStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Only keep the new value if it was saved.
	m := maps.Clone(s.m)
	m[key] = slices.Clone(value)
	if err := util.WriteObjectFile(s.path, m); err != nil {
		return err
	}
	s.m = m
	return nil
}

func (s *FileStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return util.SortedMapKeys(s.m), nil
}

// Watch starts watching the store's file for changes made by other
// processes; onChange, if non-nil, is called after each reload.
func (s *FileStore) Watch(onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// The file is replaced by rename on every write, so watch its
	// directory rather than the file itself.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return err
	}

	s.mu.Lock()
	s.onChange = onChange
	s.watcher = w
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.watch(w, s.done)
	return nil
}

func (s *FileStore) watch(w *fsnotify.Watcher, done <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-done:
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == s.path && ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				s.lg.Debug("store file changed", slog.String("op", ev.Op.String()))
				s.reload()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.lg.Warn("store watcher error", slog.Any("error", err))
		}
	}
}

// Close stops watching; the store remains usable afterward.
func (s *FileStore) Close() error {
	s.mu.Lock()
	w, done := s.watcher, s.done
	s.watcher, s.done = nil, nil
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	close(done)
	err := w.Close()
	s.wg.Wait()
	return err
}
