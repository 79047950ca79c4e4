// fleet/fleet.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package fleet maintains the user's "my fleet" set of vessel ids, stored
// as a JSON array in a kv.Store.
package fleet

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/harborline/harborline/kv"
	"github.com/harborline/harborline/log"
)

const Key = "fleet.ids"

// Set is the persisted fleet membership set. Each mutation reloads the
// stored array, modifies it, and writes it back while holding a lock, so
// toggles from within one process never lose updates. Writers in other
// processes sharing the store are last-writer-wins.
type Set struct {
	mu    sync.Mutex
	store kv.Store
	lg    *log.Logger
}

func New(store kv.Store, lg *log.Logger) *Set {
	return &Set{store: store, lg: lg}
}

// load returns the stored ids; a missing or malformed value is an empty
// set. Duplicates and empty ids are dropped.
func (s *Set) load() []string {
	ids := kv.GetJSON[[]string](s.store, Key, nil, s.lg)
	var clean []string
	for _, id := range ids {
		if id != "" && !slices.Contains(clean, id) {
			clean = append(clean, id)
		}
	}
	return clean
}

// IDs returns the members of the set in insertion order.
func (s *Set) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Set) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.load(), id)
}

// Toggle adds id to the set if it is absent and removes it otherwise. It
// returns whether id is a member afterward.
func (s *Set) Toggle(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.load()
	member := false
	if idx := slices.Index(ids, id); idx != -1 {
		ids = slices.Delete(ids, idx, idx+1)
	} else {
		ids = append(ids, id)
		member = true
	}
	if ids == nil {
		ids = []string{}
	}

	if err := kv.SetJSON(s.store, Key, ids); err != nil {
		s.lg.Warn("unable to persist fleet", slog.String("id", id), slog.Any("error", err))
		return !member, err
	}
	s.lg.Debug("fleet toggled", slog.String("id", id), slog.Bool("member", member))
	return member, nil
}
