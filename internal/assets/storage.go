// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/apex/log"
)

// BypassHeader marks requests made by a Worker so that the local server
// answers them from disk instead of routing them back into the Worker.
const BypassHeader = "Cconv-Bypass"

// Doer performs HTTP requests, normally an *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Storage is a set of named buckets on disk. Each bucket is a directory below
// root; dot-prefixed entries are internal (staging areas, registration state)
// and never show up as buckets.
type Storage struct {
	root string
	mu   sync.Mutex
}

func NewStorage(root string) *Storage {
	return &Storage{root: root}
}

func (s *Storage) Root() string {
	return s.root
}

func validName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid cache name %q", name)
	}
	return nil
}

// Keys lists bucket names, sorted.
func (s *Storage) Keys() ([]string, error) {
	des, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list caches: %w", err)
	}

	var names []string
	for _, de := range des {
		if de.IsDir() && !strings.HasPrefix(de.Name(), ".") {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Storage) Has(name string) (bool, error) {
	if err := validName(name); err != nil {
		return false, err
	}
	info, err := os.Stat(filepath.Join(s.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Open returns the named bucket, creating it if absent.
func (s *Storage) Open(name string) (*Cache, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to open cache %s: %w", name, err)
	}
	return &Cache{name: name, dir: dir}, nil
}

// Delete removes the named bucket and reports whether it existed.
func (s *Storage) Delete(name string) (bool, error) {
	ok, err := s.Has(name)
	if err != nil || !ok {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(filepath.Join(s.root, name)); err != nil {
		return false, fmt.Errorf("failed to delete cache %s: %w", name, err)
	}
	return true, nil
}

// Match looks key up in every bucket, in Keys order, and returns the first
// hit.
func (s *Storage) Match(key string) (*Entry, bool, error) {
	names, err := s.Keys()
	if err != nil {
		return nil, false, err
	}
	for _, name := range names {
		e, ok, err := (&Cache{name: name, dir: filepath.Join(s.root, name)}).Match(key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return e, true, nil
		}
	}
	return nil, false, nil
}

// AddAll fetches every url and stores the responses in the named bucket. It
// is all or nothing: responses are collected in a hidden staging directory
// and only swapped in once every fetch succeeded with a 2xx status. On
// failure the bucket is left exactly as it was, or absent if it never
// existed.
func (s *Storage) AddAll(ctx context.Context, name string, doer Doer, urls []string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create cache storage: %w", err)
	}

	staging, err := os.MkdirTemp(s.root, "."+name+".staging-")
	if err != nil {
		return fmt.Errorf("failed to create staging area: %w", err)
	}
	defer os.RemoveAll(staging) //nolint:errcheck

	stage := &Cache{name: name, dir: staging}
	for _, u := range urls {
		if err := stage.add(ctx, doer, u); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	final := filepath.Join(s.root, name)
	if err := carryOver(final, staging); err != nil {
		return err
	}

	var old string
	if _, err := os.Stat(final); err == nil {
		old = filepath.Join(s.root, "."+name+".old")
		_ = os.RemoveAll(old)
		if err := os.Rename(final, old); err != nil {
			return fmt.Errorf("failed to replace cache %s: %w", name, err)
		}
	}
	if err := os.Rename(staging, final); err != nil {
		if old != "" {
			_ = os.Rename(old, final)
		}
		return fmt.Errorf("failed to replace cache %s: %w", name, err)
	}
	if old != "" {
		_ = os.RemoveAll(old)
	}

	log.WithFields(log.Fields{"cache": name, "entries": len(urls)}).Debug("cache populated")
	return nil
}

// carryOver copies entries present in the existing bucket dir but not in
// staging, so AddAll adds to a bucket rather than replacing it.
func carryOver(dir, staging string) error {
	des, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	for _, de := range des {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		dst := filepath.Join(staging, de.Name())
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		if err := copyFile(filepath.Join(dir, de.Name()), dst); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to copy cache entry: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) //nolint:mnd
	if err != nil {
		return fmt.Errorf("failed to copy cache entry: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy cache entry: %w", err)
	}
	return out.Close()
}
