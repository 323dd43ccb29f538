// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package assets

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultApp     = "vm-currency-converter"
	DefaultVersion = 7

	rootEntry = "./"
)

// DefaultManifest is the list of files the page needs to start offline.
// Relative entries resolve against Config.Origin.
var DefaultManifest = []string{
	rootEntry,
	"favicon.ico",
	"js/app.js",
	"css/app.css",
	"https://fonts.gstatic.com/s/anton/v9/1Ptgg87LROyAm3Kz-C8.woff2",
	"https://fonts.gstatic.com/s/poppins/v5/pxiEyp8kv8JHgFVrJJfecg.woff2",
}

// Config describes one generation of cached assets.
type Config struct {
	App      string
	Version  int
	Manifest []string
	// Origin is where the page is served from, e.g. http://localhost:8080/.
	Origin *url.URL
}

// CacheName is the bucket holding this generation.
func (c Config) CacheName() string {
	return fmt.Sprintf("%s-static-v%d", c.App, c.Version)
}

// Prefix is shared by every generation of this app's buckets.
func (c Config) Prefix() string {
	return c.App + "-"
}

// RootKey is the cache key of the page itself.
func (c Config) RootKey() string {
	return Key(c.Origin.ResolveReference(&url.URL{Path: rootEntry}))
}

// URLs resolves the manifest into absolute cache keys.
func (c Config) URLs() ([]string, error) {
	if c.Origin == nil {
		return nil, fmt.Errorf("origin is required")
	}

	urls := make([]string, 0, len(c.Manifest))
	for _, m := range c.Manifest {
		ref, err := url.Parse(m)
		if err != nil {
			return nil, fmt.Errorf("bad manifest entry %q: %w", m, err)
		}
		urls = append(urls, Key(c.Origin.ResolveReference(ref)))
	}
	return urls, nil
}

// ParseCacheVersion extracts N from "<app>-static-vN".
func ParseCacheVersion(app, name string) (int, bool) {
	prefix := app + "-static-v"
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	var v int
	if _, err := fmt.Sscanf(strings.TrimPrefix(name, prefix), "%d", &v); err != nil {
		return 0, false
	}
	if fmt.Sprintf("%s%d", prefix, v) != name {
		return 0, false
	}
	return v, true
}

// Key is the cache key for u: the absolute URL without its fragment.
func Key(u *url.URL) string {
	k := *u
	k.Fragment = ""
	k.RawFragment = ""
	return k.String()
}
