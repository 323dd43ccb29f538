// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/cconv/internal/metrics"
)

// site serves a tiny page and counts requests per path.
type site struct {
	*httptest.Server
	mu    sync.Mutex
	files map[string]string
	hits  map[string]int
	// bypassed counts requests carrying BypassHeader.
	bypassed atomic.Int32
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{
		files: map[string]string{
			"/":              "<html>converter</html>",
			"/favicon.ico":   "ICO",
			"/js/app.js":     "console.log('app')",
			"/css/app.css":   "body{}",
			"/fonts/a.woff2": "FONT",
		},
		hits: map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(BypassHeader) != "" {
			s.bypassed.Add(1)
		}
		s.mu.Lock()
		s.hits[r.URL.Path]++
		body, ok := s.files[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *site) origin(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse(s.URL + "/")
	require.NoError(t, err)
	return u
}

func (s *site) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func testConfig(t *testing.T, s *site, version int) Config {
	return Config{
		App:      "app",
		Version:  version,
		Manifest: []string{"./", "favicon.ico", "js/app.js", "css/app.css", s.URL + "/fonts/a.woff2"},
		Origin:   s.origin(t),
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestConfig(t *testing.T) {
	origin, _ := url.Parse("http://localhost:8080/")
	cfg := Config{App: DefaultApp, Version: DefaultVersion, Manifest: DefaultManifest, Origin: origin}

	assert.Equal(t, "vm-currency-converter-static-v7", cfg.CacheName())
	assert.Equal(t, "vm-currency-converter-", cfg.Prefix())
	assert.Equal(t, "http://localhost:8080/", cfg.RootKey())

	urls, err := cfg.URLs()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://localhost:8080/",
		"http://localhost:8080/favicon.ico",
		"http://localhost:8080/js/app.js",
		"http://localhost:8080/css/app.css",
		"https://fonts.gstatic.com/s/anton/v9/1Ptgg87LROyAm3Kz-C8.woff2",
		"https://fonts.gstatic.com/s/poppins/v5/pxiEyp8kv8JHgFVrJJfecg.woff2",
	}, urls)

	_, err = Config{Manifest: DefaultManifest}.URLs()
	assert.Error(t, err)
}

func TestParseCacheVersion(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"app-static-v7", 7, true},
		{"app-static-v12", 12, true},
		{"app-static-v7x", 0, false},
		{"app-static-v", 0, false},
		{"other-app-v1", 0, false},
		{"app-dynamic-v1", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCacheVersion("app", tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKey(t *testing.T) {
	u, _ := url.Parse("http://h/js/app.js?v=1#frag")
	assert.Equal(t, "http://h/js/app.js?v=1", Key(u))
}

func TestStorage_OpenHasDelete(t *testing.T) {
	s := NewStorage(t.TempDir())

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = s.Open("app-static-v1")
	require.NoError(t, err)

	ok, err := s.Has("app-static-v1")
	require.NoError(t, err)
	assert.True(t, ok)

	deleted, err := s.Delete("app-static-v1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete("app-static-v1")
	require.NoError(t, err)
	assert.False(t, deleted)

	for _, bad := range []string{"", ".hidden", "a/b"} {
		_, err := s.Open(bad)
		assert.Error(t, err, bad)
	}
}

func TestStorage_KeysMissingRoot(t *testing.T) {
	keys, err := NewStorage("/nonexistent/cconv/assets").Keys()
	assert.NoError(t, err)
	assert.Empty(t, keys)
}

func TestActivate_EvictsOwnStaleBuckets(t *testing.T) {
	s := NewStorage(t.TempDir())
	for _, name := range []string{"app-static-v6", "app-static-v7", "other-app-v1"} {
		_, err := s.Open(name)
		require.NoError(t, err)
	}

	w := NewWorker(Config{App: "app", Version: 7}, s)
	require.NoError(t, w.Activate(context.Background()))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"app-static-v7", "other-app-v1"}, keys)
	assert.Equal(t, StateActivated, w.State())
}

func TestInstall(t *testing.T) {
	site := newSite(t)
	s := NewStorage(t.TempDir())
	cfg := testConfig(t, site, 1)

	w := NewWorker(cfg, s, WithDoer(site.Client()))
	require.NoError(t, w.Install(context.Background()))
	assert.Equal(t, StateInstalled, w.State())

	urls, err := cfg.URLs()
	require.NoError(t, err)
	for _, u := range urls {
		e, ok, err := s.Match(u)
		require.NoError(t, err)
		require.True(t, ok, u)
		assert.Equal(t, http.StatusOK, e.Status)
	}
	assert.Equal(t, int32(len(urls)), site.bypassed.Load(), "install requests carry the bypass header")

	c, err := s.Open(cfg.CacheName())
	require.NoError(t, err)
	entries, err := c.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, len(urls))

	e, ok, err := c.Match(site.URL + "/js/app.js")
	require.NoError(t, err)
	require.True(t, ok)
	f, err := e.Open()
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "console.log('app')", string(body))
	assert.Equal(t, int64(len(body)), e.Size)
}

func TestInstall_AllOrNothing(t *testing.T) {
	site := newSite(t)
	root := t.TempDir()
	s := NewStorage(root)
	ctx := context.Background()

	cfg := testConfig(t, site, 1)
	cfg.Manifest = append(cfg.Manifest, "js/missing.js")

	w := NewWorker(cfg, s, WithDoer(site.Client()))
	err := w.Install(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, StateRedundant, w.State())

	ok, err := s.Has(cfg.CacheName())
	require.NoError(t, err)
	assert.False(t, ok, "failed install must not leave a bucket")

	_, ok, err = s.Match(site.URL + "/favicon.ico")
	require.NoError(t, err)
	assert.False(t, ok)

	des, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, de := range des {
		assert.False(t, strings.Contains(de.Name(), "staging"), "staging left behind: %s", de.Name())
	}
}

func TestAddAll_FailureKeepsExistingBucket(t *testing.T) {
	site := newSite(t)
	s := NewStorage(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.AddAll(ctx, "app-static-v1", site.Client(), []string{site.URL + "/favicon.ico"}))

	err := s.AddAll(ctx, "app-static-v1", site.Client(), []string{site.URL + "/js/app.js", site.URL + "/nope"})
	require.Error(t, err)

	c, err := s.Open("app-static-v1")
	require.NoError(t, err)
	entries, err := c.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, site.URL+"/favicon.ico", entries[0].Key)
}

func TestAddAll_AddsToExistingBucket(t *testing.T) {
	site := newSite(t)
	s := NewStorage(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.AddAll(ctx, "app-static-v1", site.Client(), []string{site.URL + "/favicon.ico"}))
	require.NoError(t, s.AddAll(ctx, "app-static-v1", site.Client(), []string{site.URL + "/js/app.js"}))

	for _, p := range []string{"/favicon.ico", "/js/app.js"} {
		_, ok, err := s.Match(site.URL + p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
}

func TestAddAll_TransportError(t *testing.T) {
	s := NewStorage(t.TempDir())
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	err := s.AddAll(context.Background(), "app-static-v1", srv.Client(), []string{srv.URL + "/"})
	assert.Error(t, err)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestWorker_ServeHTTP(t *testing.T) {
	site := newSite(t)
	s := NewStorage(t.TempDir())
	m := metrics.New()
	w := NewWorker(testConfig(t, site, 1), s, WithDoer(site.Client()), WithMetrics(m))
	require.NoError(t, w.Install(context.Background()))

	// Change the live site; cached answers must not see this.
	site.mu.Lock()
	site.files["/"] = "<html>changed</html>"
	site.files["/js/app.js"] = "changed"
	site.mu.Unlock()

	rootHits := site.hitCount("/")

	t.Run("root ignores query", func(t *testing.T) {
		rec := get(t, w, "/?utm=1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "<html>converter</html>", rec.Body.String())
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, rootHits, site.hitCount("/"))
	})

	t.Run("cached asset", func(t *testing.T) {
		rec := get(t, w, "/js/app.js")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "console.log('app')", rec.Body.String())
	})

	t.Run("cross origin cached", func(t *testing.T) {
		rec := get(t, w, site.URL+"/fonts/a.woff2")
		assert.Equal(t, "FONT", rec.Body.String())
	})

	t.Run("network fallback does not populate", func(t *testing.T) {
		site.mu.Lock()
		site.files["/extra.txt"] = "live"
		site.mu.Unlock()

		before := site.bypassed.Load()
		rec := get(t, w, "/extra.txt")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "live", rec.Body.String())
		assert.Equal(t, before+1, site.bypassed.Load())

		_, ok, err := s.Match(site.URL + "/extra.txt")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("network status passes through", func(t *testing.T) {
		rec := get(t, w, "/missing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestWorker_ServeHTTP_OwnGenerationFirst(t *testing.T) {
	site := newSite(t)
	s := NewStorage(t.TempDir())

	v7 := NewWorker(testConfig(t, site, 7), s, WithDoer(site.Client()))
	require.NoError(t, v7.Install(context.Background()))

	site.mu.Lock()
	site.files["/"] = "<html>v10</html>"
	site.files["/js/app.js"] = "v10()"
	site.mu.Unlock()

	v10 := NewWorker(testConfig(t, site, 10), s, WithDoer(site.Client()))
	require.NoError(t, v10.Install(context.Background()))

	// app-static-v10 sorts before app-static-v7.
	names, err := s.Keys()
	require.NoError(t, err)
	require.Equal(t, []string{"app-static-v10", "app-static-v7"}, names)

	assert.Equal(t, "<html>converter</html>", get(t, v7, "/").Body.String())
	assert.Equal(t, "console.log('app')", get(t, v7, "/js/app.js").Body.String())
	assert.Equal(t, "<html>v10</html>", get(t, v10, "/").Body.String())
	assert.Equal(t, "v10()", get(t, v10, "/js/app.js").Body.String())
}

func TestWorker_ServeHTTP_RootMissing(t *testing.T) {
	site := newSite(t)
	s := NewStorage(t.TempDir())
	cfg := testConfig(t, site, 1)
	cfg.Manifest = []string{"favicon.ico"}

	w := NewWorker(cfg, s, WithDoer(site.Client()))
	require.NoError(t, w.Install(context.Background()))

	before := site.hitCount("/")
	rec := get(t, w, "/")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, before, site.hitCount("/"), "root is never fetched live")
}

func TestWorker_ServeHTTP_NetworkDown(t *testing.T) {
	site := newSite(t)
	s := NewStorage(t.TempDir())
	w := NewWorker(testConfig(t, site, 1), s, WithDoer(site.Client()))
	require.NoError(t, w.Install(context.Background()))
	site.Close()

	assert.Equal(t, http.StatusOK, get(t, w, "/css/app.css").Code)
	assert.Equal(t, http.StatusBadGateway, get(t, w, "/api/currencies").Code)
}

func TestRegistration_Lifecycle(t *testing.T) {
	site := newSite(t)
	s := NewStorage(t.TempDir())
	ctx := context.Background()

	network := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "network")
	})
	reg := NewRegistration(s, network)

	var changes []string
	reg.OnControllerChange(func(w *Worker) {
		changes = append(changes, w.Config().CacheName())
		// Listeners may inspect the registration.
		assert.Equal(t, w, reg.Controller())
	})

	assert.Equal(t, "network", get(t, reg, "/").Body.String())

	v1 := NewWorker(testConfig(t, site, 1), s, WithDoer(site.Client()))
	require.NoError(t, reg.Register(ctx, v1))
	assert.Equal(t, v1, reg.Controller())
	assert.Equal(t, StateActivated, v1.State())
	assert.Equal(t, "<html>converter</html>", get(t, reg, "/").Body.String())

	// Same generation again is a no-op.
	require.NoError(t, reg.Register(ctx, NewWorker(testConfig(t, site, 1), s, WithDoer(site.Client()))))
	assert.Equal(t, v1, reg.Controller())

	v2 := NewWorker(testConfig(t, site, 2), s, WithDoer(site.Client()))
	require.NoError(t, reg.Register(ctx, v2))
	assert.Equal(t, v1, reg.Controller(), "new worker waits while one is active")
	assert.Equal(t, v2, reg.Waiting())
	assert.Equal(t, StateInstalled, v2.State())

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"app-static-v1", "app-static-v2"}, keys)

	require.NoError(t, reg.PostMessage(ctx, Message{Action: "unknown"}))
	assert.Equal(t, v1, reg.Controller())

	require.NoError(t, reg.PostMessage(ctx, Message{Action: ActionSkipWaiting}))
	assert.Equal(t, v2, reg.Controller())
	assert.Nil(t, reg.Waiting())
	assert.Equal(t, StateRedundant, v1.State())
	assert.Equal(t, StateActivated, v2.State())

	keys, err = s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"app-static-v2"}, keys)

	assert.Equal(t, []string{"app-static-v1", "app-static-v2"}, changes)

	// Nothing waiting: skipWaiting does nothing.
	require.NoError(t, reg.PostMessage(ctx, Message{Action: ActionSkipWaiting}))
	assert.Len(t, changes, 2)
}

func TestRegistration_SkipWaitingBeforeInstall(t *testing.T) {
	site := newSite(t)
	s := NewStorage(t.TempDir())
	ctx := context.Background()
	reg := NewRegistration(s, nil)

	require.NoError(t, reg.Register(ctx, NewWorker(testConfig(t, site, 1), s, WithDoer(site.Client()))))

	v2 := NewWorker(testConfig(t, site, 2), s, WithDoer(site.Client()))
	v2.SkipWaiting()
	require.NoError(t, reg.Register(ctx, v2))
	assert.Equal(t, v2, reg.Controller())
	assert.Nil(t, reg.Waiting())
}

func TestRegistration_FailedInstall(t *testing.T) {
	site := newSite(t)
	s := NewStorage(t.TempDir())
	ctx := context.Background()
	reg := NewRegistration(s, nil)

	v1 := NewWorker(testConfig(t, site, 1), s, WithDoer(site.Client()))
	require.NoError(t, reg.Register(ctx, v1))

	cfg := testConfig(t, site, 2)
	cfg.Manifest = append(cfg.Manifest, "gone.js")
	v2 := NewWorker(cfg, s, WithDoer(site.Client()))
	require.Error(t, reg.Register(ctx, v2))

	assert.Equal(t, v1, reg.Controller())
	assert.Nil(t, reg.Waiting())
	assert.Equal(t, StateRedundant, v2.State())
}

func TestRegistration_Restore(t *testing.T) {
	site := newSite(t)
	s := NewStorage(t.TempDir())
	ctx := context.Background()

	reg := NewRegistration(s, nil)
	require.NoError(t, reg.Register(ctx, NewWorker(testConfig(t, site, 1), s, WithDoer(site.Client()))))
	require.NoError(t, reg.Register(ctx, NewWorker(testConfig(t, site, 2), s, WithDoer(site.Client()))))

	restored := NewRegistration(s, nil)
	require.NoError(t, restored.Restore(testConfig(t, site, 0), WithDoer(site.Client())))

	require.NotNil(t, restored.Controller())
	assert.Equal(t, "app-static-v1", restored.Controller().Config().CacheName())
	assert.Equal(t, StateActivated, restored.Controller().State())
	require.NotNil(t, restored.Waiting())
	assert.Equal(t, "app-static-v2", restored.Waiting().Config().CacheName())

	require.NoError(t, restored.PostMessage(ctx, Message{Action: ActionSkipWaiting}))
	assert.Equal(t, "app-static-v2", restored.Controller().Config().CacheName())

	again := NewRegistration(s, nil)
	require.NoError(t, again.Restore(testConfig(t, site, 0)))
	assert.Equal(t, "app-static-v2", again.Controller().Config().CacheName())
	assert.Nil(t, again.Waiting())

	require.NoError(t, again.Forget())
	empty := NewRegistration(s, nil)
	require.NoError(t, empty.Restore(testConfig(t, site, 0)))
	assert.Nil(t, empty.Controller())
}

func TestRegistration_RestoreDropsMissingBucket(t *testing.T) {
	site := newSite(t)
	s := NewStorage(t.TempDir())
	ctx := context.Background()

	reg := NewRegistration(s, nil)
	require.NoError(t, reg.Register(ctx, NewWorker(testConfig(t, site, 3), s, WithDoer(site.Client()))))
	_, err := s.Delete("app-static-v3")
	require.NoError(t, err)

	restored := NewRegistration(s, nil)
	require.NoError(t, restored.Restore(testConfig(t, site, 0)))
	assert.Nil(t, restored.Controller())
}

func TestReloadGuard(t *testing.T) {
	var reloads atomic.Int32
	g := NewReloadGuard(func() { reloads.Add(1) })

	assert.True(t, g.Fire())
	assert.False(t, g.Fire(), "already refreshing")
	assert.Equal(t, int32(1), reloads.Load())

	g.Rearm()
	assert.True(t, g.Fire())
	assert.Equal(t, int32(2), reloads.Load())
}

func TestReloadGuard_Concurrent(t *testing.T) {
	var reloads atomic.Int32
	g := NewReloadGuard(func() { reloads.Add(1) })
	listener := g.Listener()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			listener(nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), reloads.Load())
}
