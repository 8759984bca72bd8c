package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Doer is the minimal http.Client interface the store depends on.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

const defaultTTL = 24 * time.Hour

// Store fetches bootstrap registries with three layers under the
// overrides: an in-memory snapshot, the disk cache, and the IANA URL.
// Override files in the config dir unconditionally shadow all of them.
type Store struct {
	hc        Doer
	ua        string
	cacheDir  string
	configDir string
	ttl       time.Duration
	log       *logrus.Logger
	now       func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	snaps map[Kind]*snapshot
}

type snapshot struct {
	reg       *Registry
	fetchedAt time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

func WithHTTPDoer(d Doer) StoreOption          { return func(s *Store) { s.hc = d } }
func WithUserAgent(ua string) StoreOption      { return func(s *Store) { s.ua = ua } }
func WithCacheDir(dir string) StoreOption      { return func(s *Store) { s.cacheDir = dir } }
func WithConfigDir(dir string) StoreOption     { return func(s *Store) { s.configDir = dir } }
func WithTTL(ttl time.Duration) StoreOption    { return func(s *Store) { s.ttl = ttl } }
func WithLogger(l *logrus.Logger) StoreOption  { return func(s *Store) { s.log = l } }
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns a ready Store with IANA defaults.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		hc:    &http.Client{Timeout: 15 * time.Second},
		ua:    "rdapkit/0.1",
		ttl:   defaultTTL,
		log:   logrus.StandardLogger(),
		now:   time.Now,
		snaps: make(map[Kind]*snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// overrideFile maps a kind to its config-dir override file name.
func overrideFile(kind Kind) string { return string(kind) + ".json" }

func (s *Store) cachePath(kind Kind) string {
	return filepath.Join(s.cacheDir, "iana-"+string(kind)+".json")
}

func (s *Store) etagPath(kind Kind) string {
	return filepath.Join(s.cacheDir, "iana-"+string(kind)+".etag")
}

// Fetch returns the registry for kind: the override if present, else the
// memory snapshot if fresh, else the disk cache if fresh, else a download.
// Concurrent misses for the same kind share one download.
func (s *Store) Fetch(ctx context.Context, kind Kind) (*Registry, error) {
	if s.configDir != "" {
		if data, err := os.ReadFile(filepath.Join(s.configDir, overrideFile(kind))); err == nil {
			reg, err := ParseRegistry(kind, data)
			if err != nil {
				return nil, fmt.Errorf("bootstrap: override %s: %w", overrideFile(kind), err)
			}
			return reg, nil
		}
	}

	s.mu.RLock()
	snap := s.snaps[kind]
	s.mu.RUnlock()
	if snap != nil && s.now().Sub(snap.fetchedAt) < s.ttl {
		return snap.reg, nil
	}

	if reg := s.loadDisk(kind); reg != nil {
		return reg, nil
	}

	v, err, _ := s.group.Do(string(kind), func() (any, error) {
		return s.download(ctx, kind)
	})
	if err != nil {
		// a stale snapshot beats an error
		if snap != nil {
			s.log.WithError(err).WithField("registry", kind).
				Warn("bootstrap refresh failed, serving stale registry")
			return snap.reg, nil
		}
		return nil, err
	}
	return v.(*Registry), nil
}

// loadDisk returns the cached registry when the cache file is fresh.
func (s *Store) loadDisk(kind Kind) *Registry {
	if s.cacheDir == "" {
		return nil
	}
	fi, err := os.Stat(s.cachePath(kind))
	if err != nil || s.now().Sub(fi.ModTime()) >= s.ttl {
		return nil
	}
	data, err := os.ReadFile(s.cachePath(kind))
	if err != nil {
		return nil
	}
	reg, err := ParseRegistry(kind, data)
	if err != nil {
		s.log.WithError(err).WithField("registry", kind).
			Warn("discarding unparsable bootstrap cache file")
		return nil
	}
	s.store(kind, reg)
	return reg
}

func (s *Store) store(kind Kind, reg *Registry) {
	s.mu.Lock()
	s.snaps[kind] = &snapshot{reg: reg, fetchedAt: s.now()}
	s.mu.Unlock()
}

func (s *Store) download(ctx context.Context, kind Kind) (*Registry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, kind.IANAURL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.ua)
	req.Header.Set("Accept", "application/json")
	if etag, err := os.ReadFile(s.etagPath(kind)); err == nil && len(etag) > 0 {
		req.Header.Set("If-None-Match", strings.TrimSpace(string(etag)))
	}

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: fetching %s registry: %w", kind, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		data, err := os.ReadFile(s.cachePath(kind))
		if err != nil {
			// 304 with no cached body: drop the etag and refetch
			_ = os.Remove(s.etagPath(kind))
			return nil, fmt.Errorf("bootstrap: %s registry not modified but cache file missing", kind)
		}
		reg, err := ParseRegistry(kind, data)
		if err != nil {
			return nil, err
		}
		s.touchCache(kind)
		s.store(kind, reg)
		return reg, nil
	case http.StatusOK:
		data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: reading %s registry: %w", kind, err)
		}
		reg, err := ParseRegistry(kind, data)
		if err != nil {
			return nil, err
		}
		s.writeCache(kind, data, resp.Header.Get("ETag"))
		s.store(kind, reg)
		s.log.WithFields(logrus.Fields{
			"registry":    kind,
			"publication": reg.Publication,
			"services":    len(reg.Services),
		}).Debug("bootstrap registry downloaded")
		return reg, nil
	default:
		return nil, fmt.Errorf("bootstrap: fetching %s registry: unexpected status %s", kind, resp.Status)
	}
}

// writeCache persists the registry body and its etag atomically.
func (s *Store) writeCache(kind Kind, data []byte, etag string) {
	if s.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		s.log.WithError(err).Warn("cannot create bootstrap cache dir")
		return
	}
	if err := renameio.WriteFile(s.cachePath(kind), data, 0o644); err != nil {
		s.log.WithError(err).WithField("registry", kind).Warn("cannot write bootstrap cache file")
		return
	}
	if etag != "" {
		if err := renameio.WriteFile(s.etagPath(kind), []byte(etag), 0o644); err != nil {
			s.log.WithError(err).WithField("registry", kind).Warn("cannot write bootstrap etag file")
		}
	} else {
		_ = os.Remove(s.etagPath(kind))
	}
}

// touchCache renews the cache file's freshness window after a 304.
func (s *Store) touchCache(kind Kind) {
	now := s.now()
	_ = os.Chtimes(s.cachePath(kind), now, now)
}

// Refresh re-fetches every registry kind, ignoring snapshot freshness.
func (s *Store) Refresh(ctx context.Context) error {
	var firstErr error
	for _, kind := range Kinds {
		if _, err := s.download(ctx, kind); err != nil {
			s.log.WithError(err).WithField("registry", kind).Warn("bootstrap refresh failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// RunRefresher fetches all registries immediately and then keeps them warm
// until ctx is canceled, re-checking freshness every interval.
func (s *Store) RunRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	refresh := func() {
		for _, kind := range Kinds {
			if _, err := s.Fetch(ctx, kind); err != nil {
				s.log.WithError(err).WithField("registry", kind).Warn("bootstrap refresh failed")
			}
		}
	}
	refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			refresh()
		}
	}
}
