// kv/store.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package kv provides the small key-value store that user preferences and
// the fleet membership set are persisted in. Values are JSON-encoded by
// convention; readers fall back to defaults when a value is missing or
// malformed.
package kv

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/harborline/harborline/log"
)

var ErrNotFound = errors.New("kv: key not found")

// Store is the capability the rest of the system persists through.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored for key, or ErrNotFound.
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys() ([]string, error)
}

// GetJSON decodes the JSON value stored under key into a T. If the key is
// missing, the store fails, or the value does not decode, def is returned.
func GetJSON[T any](s Store, key string, def T, lg *log.Logger) T {
	b, err := s.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			lg.Warn("kv get failed", slog.String("key", key), slog.Any("error", err))
		}
		return def
	}

	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		lg.Debug("malformed stored value; using default", slog.String("key", key),
			slog.String("value", string(b)), slog.Any("error", err))
		return def
	}
	return v
}

// SetJSON stores the JSON encoding of v under key.
func SetJSON[T any](s Store, key string, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(key, b)
}

///////////////////////////////////////////////////////////////////////////
// MemoryStore

// MemoryStore is a Store that lives only as long as the process; it is
// what tests use.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.m[key]; ok {
		return slices.Clone(v), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[key] = slices.Clone(value)
	return nil
}

func (s *MemoryStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}
