// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/staranto/cconv/internal/cacheutil"
)

const (
	metaExt = ".json"
	bodyExt = ".body"
)

// Cache is one bucket. Every entry is a pair of files named after the MD5 of
// its key: <hash>.json holds the response metadata, <hash>.body the payload.
type Cache struct {
	name string
	dir  string
}

func (c *Cache) Name() string {
	return c.name
}

// Entry is a stored response.
type Entry struct {
	Key    string      `json:"key"`
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Size   int64       `json:"size"`
	Stored time.Time   `json:"stored"`

	body string
}

// Open returns the stored body.
func (e *Entry) Open() (io.ReadCloser, error) {
	return os.Open(e.body)
}

// Write replays the entry as an HTTP response.
func (e *Entry) Write(w http.ResponseWriter) error {
	f, err := e.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	for k, vs := range e.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(e.Status)
	_, err = io.Copy(w, f)
	return err
}

func (c *Cache) paths(key string) (meta, body string) {
	base := filepath.Join(c.dir, cacheutil.EncodeKey(key))
	return base + metaExt, base + bodyExt
}

// Match returns the entry stored under key.
func (c *Cache) Match(key string) (*Entry, bool, error) {
	meta, body := c.paths(key)
	data, err := os.ReadFile(meta)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry %s: %w", meta, err)
	}
	e.body = body
	return &e, true, nil
}

// Entries returns every entry in the bucket, ordered by key.
func (c *Cache) Entries() ([]*Entry, error) {
	des, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache %s: %w", c.name, err)
	}

	var entries []*Entry
	for _, de := range des {
		if de.IsDir() || !strings.HasSuffix(de.Name(), metaExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.dir, de.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read cache entry: %w", err)
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("corrupt cache entry %s: %w", de.Name(), err)
		}
		e.body = filepath.Join(c.dir, strings.TrimSuffix(de.Name(), metaExt)+bodyExt)
		entries = append(entries, &e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// add fetches u and stores the response. Any transport error or non-2xx
// status is an error.
func (c *Cache) add(ctx context.Context, doer Doer, u string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", u, err)
	}
	req.Header.Set(BypassHeader, "1")

	resp, err := doer.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to fetch %s: %s", u, resp.Status)
	}

	meta, body := c.paths(u)
	f, err := os.Create(body)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", u, err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", u, err)
	}

	header := resp.Header.Clone()
	header.Del("Content-Length")
	header.Del("Date")

	data, err := json.Marshal(Entry{
		Key:    u,
		Status: resp.StatusCode,
		Header: header,
		Size:   n,
		Stored: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", u, err)
	}
	return cacheutil.WriteFileAtomic(meta, data)
}
