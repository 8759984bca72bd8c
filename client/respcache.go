package client

import (
	"container/list"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// respCache is an LRU response cache keyed by final URL. Entries carry
// validators (ETag, Last-Modified) so stale bodies can be revalidated with
// a conditional request, and a negative window for recent 404s. TTLs come
// from Cache-Control/Expires, bounded by a hard maximum.
type respCache struct {
	mu     sync.Mutex
	cap    int
	ll     *list.List
	tab    map[string]*list.Element
	defTTL time.Duration
	maxTTL time.Duration
	now    func() time.Time
}

type cacheMeta struct {
	ETag         string
	LastModified time.Time
	expiresAt    time.Time
	negUntil     time.Time
}

type cacheEntry struct {
	url  string
	body []byte
	// hdr is the replay subset of the original response headers, so a
	// cache hit reports the same exchange metadata as the fetch that
	// filled it.
	hdr  http.Header
	meta cacheMeta
}

// replayHeaders are the response headers a cache hit reproduces.
var replayHeaders = []string{
	"Content-Type",
	"Access-Control-Allow-Origin",
	"Access-Control-Allow-Credentials",
}

func replaySubset(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	out := make(http.Header, len(replayHeaders))
	for _, k := range replayHeaders {
		if v := h.Get(k); v != "" {
			out.Set(k, v)
		}
	}
	return out
}

func newRespCache(capacity int, defaultTTL, maxTTL time.Duration) *respCache {
	return &respCache{
		cap:    capacity,
		ll:     list.New(),
		tab:    make(map[string]*list.Element),
		defTTL: defaultTTL,
		maxTTL: maxTTL,
		now:    time.Now,
	}
}

// Get returns a fresh body with the stored replay headers, or a miss for
// stale, negative, or absent entries.
func (c *respCache) Get(u string) ([]byte, http.Header, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.tab[u]
	if !ok {
		return nil, nil, false
	}
	it := el.Value.(cacheEntry)
	if !it.meta.negUntil.IsZero() && c.now().Before(it.meta.negUntil) {
		return nil, nil, false
	}
	if c.now().Before(it.meta.expiresAt) && len(it.body) > 0 {
		c.ll.MoveToFront(el)
		return it.body, it.hdr, true
	}
	return nil, nil, false
}

// Body returns the stored body regardless of freshness, for use after a
// 304 revalidation.
func (c *respCache) Body(u string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.tab[u]; ok {
		return el.Value.(cacheEntry).body
	}
	return nil
}

// Meta returns the validators for a URL.
func (c *respCache) Meta(u string) (cacheMeta, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.tab[u]; ok {
		return el.Value.(cacheEntry).meta, true
	}
	return cacheMeta{}, false
}

// Store inserts or replaces an entry, evicting from the LRU tail.
func (c *respCache) Store(u string, body []byte, hdr http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{
		url:  u,
		body: append([]byte(nil), body...),
		hdr:  replaySubset(hdr),
		meta: c.metaFrom(hdr),
	}
	if el, ok := c.tab[u]; ok {
		el.Value = entry
		c.ll.MoveToFront(el)
		return
	}
	c.tab[u] = c.ll.PushFront(entry)
	for c.ll.Len() > c.cap {
		back := c.ll.Back()
		delete(c.tab, back.Value.(cacheEntry).url)
		c.ll.Remove(back)
	}
}

// Renew extends the freshness window after a 304, merging any refreshed
// validators and clearing the negative state.
func (c *respCache) Renew(u string, hdr http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.tab[u]
	if !ok {
		return
	}
	it := el.Value.(cacheEntry)
	m := c.metaFrom(hdr)
	if m.ETag == "" {
		m.ETag = it.meta.ETag
	}
	if m.LastModified.IsZero() {
		m.LastModified = it.meta.LastModified
	}
	it.meta = m
	for _, k := range replayHeaders {
		if v := hdr.Get(k); v != "" {
			if it.hdr == nil {
				it.hdr = make(http.Header)
			}
			it.hdr.Set(k, v)
		}
	}
	el.Value = it
	c.ll.MoveToFront(el)
}

// StoreNegative records a recent not-found so repeated lookups short out.
func (c *respCache) StoreNegative(u string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.tab[u]; ok {
		it := el.Value.(cacheEntry)
		it.meta.negUntil = c.now().Add(d)
		el.Value = it
		c.ll.MoveToFront(el)
		return
	}
	c.tab[u] = c.ll.PushFront(cacheEntry{url: u, meta: cacheMeta{negUntil: c.now().Add(d)}})
	for c.ll.Len() > c.cap {
		back := c.ll.Back()
		delete(c.tab, back.Value.(cacheEntry).url)
		c.ll.Remove(back)
	}
}

func (c *respCache) metaFrom(h http.Header) cacheMeta {
	m := cacheMeta{}
	ttl := c.defTTL
	if h != nil {
		m.ETag = h.Get("ETag")
		if lm := h.Get("Last-Modified"); lm != "" {
			if t, err := time.Parse(http.TimeFormat, lm); err == nil {
				m.LastModified = t
			}
		}
		ttl = headerTTL(h, c.defTTL, c.now())
	}
	if c.maxTTL > 0 && ttl > c.maxTTL {
		ttl = c.maxTTL
	}
	m.expiresAt = c.now().Add(ttl)
	return m
}

// headerTTL derives an advisory TTL from Cache-Control/Expires.
func headerTTL(h http.Header, def time.Duration, now time.Time) time.Duration {
	if cc := h.Get("Cache-Control"); cc != "" {
		lcc := strings.ToLower(cc)
		if strings.Contains(lcc, "no-store") || strings.Contains(lcc, "no-cache") {
			return 0
		}
		for _, p := range strings.Split(lcc, ",") {
			p = strings.TrimSpace(p)
			if v, ok := strings.CutPrefix(p, "max-age="); ok {
				if n, err := strconv.Atoi(v); err == nil && n >= 0 {
					return time.Duration(n) * time.Second
				}
			}
		}
	}
	if exp := h.Get("Expires"); exp != "" {
		if t, err := time.Parse(http.TimeFormat, exp); err == nil {
			if d := t.Sub(now); d > 0 {
				return d
			}
			return 0
		}
	}
	return def
}
