// Package file implements the KV store as a single JSON document on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/crypto"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository"
)

const sealAAD = "bonjoy-store-v1"

// Store persists all keys in one file. Every mutation rewrites the file via temp+rename,
// so multi-key operations are atomic on crash.
type Store struct {
	mu   sync.Mutex
	path string
	key  []byte // nil: plain JSON
}

var _ repository.KV = (*Store)(nil)

// DefaultDir returns the per-user config directory for the client.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "bonjoy")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "bonjoy")
}

// DefaultPath returns the default store location.
func DefaultPath() string { return filepath.Join(DefaultDir(), "store.json") }

// New returns a store at path. A non-empty secret enables sealing of the whole document.
func New(path, secret string) (*Store, error) {
	s := &Store{path: path}
	if secret != "" {
		k, err := crypto.DeriveKey([]byte(secret), []byte(sealAAD))
		if err != nil {
			return nil, err
		}
		s.key = k
	}
	return s, nil
}

// Path reports the backing file.
func (s *Store) Path() string { return s.path }

func (s *Store) load() (map[string]string, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, &errs.StorageError{Op: "read", Cause: err}
	}
	if len(b) == 0 {
		return map[string]string{}, nil
	}
	if s.key != nil {
		if b, err = crypto.Open(s.key, b, []byte(sealAAD)); err != nil {
			return nil, &errs.StorageError{Op: "open", Cause: err}
		}
	}
	m := map[string]string{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, &errs.StorageError{Op: "decode", Cause: err}
	}
	return m, nil
}

func (s *Store) save(m map[string]string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &errs.StorageError{Op: "encode", Cause: err}
	}
	if s.key != nil {
		if b, err = crypto.Seal(s.key, b, []byte(sealAAD)); err != nil {
			return &errs.StorageError{Op: "seal", Cause: err}
		}
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &errs.StorageError{Op: "mkdir", Cause: err}
	}
	tmp, err := os.CreateTemp(dir, ".store-*")
	if err != nil {
		return &errs.StorageError{Op: "write", Cause: err}
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return &errs.StorageError{Op: "write", Cause: err}
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return &errs.StorageError{Op: "write", Cause: err}
	}
	if err := tmp.Close(); err != nil {
		return &errs.StorageError{Op: "write", Cause: err}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return &errs.StorageError{Op: "rename", Cause: err}
	}
	return nil
}

// mutate applies fn to the current document and saves it.
func (s *Store) mutate(fn func(m map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	fn(m)
	return s.save(m)
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := m[key]
	if !ok {
		return "", errs.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	return s.mutate(func(m map[string]string) { m[key] = value })
}

func (s *Store) Remove(_ context.Context, key string) error {
	return s.mutate(func(m map[string]string) { delete(m, key) })
}

func (s *Store) MultiGet(_ context.Context, keys ...string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *Store) MultiSet(_ context.Context, pairs map[string]string) error {
	return s.mutate(func(m map[string]string) {
		for k, v := range pairs {
			m[k] = v
		}
	})
}

func (s *Store) MultiRemove(_ context.Context, keys ...string) error {
	return s.mutate(func(m map[string]string) {
		for _, k := range keys {
			delete(m, k)
		}
	})
}
