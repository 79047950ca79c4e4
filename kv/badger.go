// kv/badger.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package kv

import (
	"errors"
	"fmt"
	"os"

	"github.com/harborline/harborline/log"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds configuration for a BadgerStore.
type BadgerConfig struct {
	// Path is the directory for the database files; ignored when InMemory
	// is set.
	Path string

	// InMemory keeps everything in memory; useful for testing.
	InMemory bool

	// SyncWrites makes every Set durable before it returns.
	SyncWrites bool
}

// BadgerStore is a Store backed by an embedded BadgerDB database.
type BadgerStore struct {
	db *badger.DB
}

// badgerLogger adapts log.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	lg *log.Logger
}

func (l badgerLogger) Errorf(format string, args ...any)   { l.lg.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...any) { l.lg.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...any)    { l.lg.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...any)   { l.lg.Debugf(format, args...) }

func OpenBadgerStore(cfg BadgerConfig, lg *log.Logger) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if lg != nil {
		opts = opts.WithLogger(badgerLogger{lg: lg})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(key string) ([]byte, error) {
	var v []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *BadgerStore) Set(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *BadgerStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
