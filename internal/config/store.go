// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"sync"
)

// Store holds the current configuration and persists every change.
//
// Readers take snapshots that are never mutated afterwards; writers go
// through Update, which works on a copy and swaps it in only after it
// validates and saves. A Store with an empty path keeps changes in memory.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  *Config

	subMu sync.Mutex
	subs  []func(*Config)
}

// Open loads the config at path (defaults if the file is missing).
func Open(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, cfg: cfg}, nil
}

// NewMemoryStore wraps cfg without a backing file.
func NewMemoryStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = Default()
	}
	return &Store{cfg: cfg.Clone()}
}

// Path returns the backing file, or "" for a memory store.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns an independent copy of the current configuration.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Update applies fn to a copy of the configuration, validates and saves
// the result, then makes it current. If any step fails the current
// configuration is unchanged.
func (s *Store) Update(fn func(*Config) error) error {
	s.mu.Lock()
	next := s.cfg.Clone()
	if err := fn(next); err != nil {
		s.mu.Unlock()
		return err
	}
	next.Normalize()
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.path != "" {
		if err := Save(next, s.path); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("save config: %w", err)
		}
	}
	s.cfg = next
	s.mu.Unlock()

	s.notify(next)
	return nil
}

// Reload rereads the backing file. Memory stores are left as they are.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	s.notify(cfg)
	return nil
}

// OnChange registers fn to receive a snapshot after every successful
// Update or Reload.
func (s *Store) OnChange(fn func(*Config)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) notify(cfg *Config) {
	s.subMu.Lock()
	subs := append([]func(*Config){}, s.subs...)
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(cfg.Clone())
	}
}
