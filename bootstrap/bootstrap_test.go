package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dnsRegistry = `{
	"version": "1.0",
	"publication": "2024-01-07T10:11:12Z",
	"description": "RDAP bootstrap file for Domain Name System registrations",
	"services": [
		[["net", "com"], ["https://registry.example.com/myrdap/"]],
		[["org", "mytld"], ["https://example.org/"]],
		[["co.uk"], ["https://rdap.example.co.uk/"]]
	]
}`

const ipv4Registry = `{
	"version": "1.0",
	"publication": "2024-01-07T10:11:12Z",
	"services": [
		[["198.51.100.0/24", "192.0.0.0/8"], ["https://rir1.example.com/myrdap/"]],
		[["203.0.113.0/24", "192.0.2.0/24"], ["https://example.org/"]]
	]
}`

const asnRegistry = `{
	"version": "1.0",
	"publication": "2024-01-07T10:11:12Z",
	"services": [
		[["64496-64496"], ["https://rir3.example.com/myrdap/"]],
		[["64497-64510", "65536-65551"], ["https://example.org/"]]
	]
}`

const tagRegistry = `{
	"version": "1.0",
	"publication": "2024-01-07T10:11:12Z",
	"services": [
		[["contact@example.com"], ["YYYY"], ["https://example.com/rdap/"]],
		[["contact@example.org"], ["ZZ54"], ["https://rdap.example.org/rdap/"]]
	]
}`

func TestRegistry_DNSLongestSuffix(t *testing.T) {
	r, err := ParseRegistry(KindDNS, []byte(dnsRegistry))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://registry.example.com/myrdap/"}, r.LookupDNS("example.com"))
	assert.Equal(t, []string{"https://example.org/"}, r.LookupDNS("www.example.mytld"))
	// co.uk must win over a hypothetical uk entry by suffix length
	assert.Equal(t, []string{"https://rdap.example.co.uk/"}, r.LookupDNS("deep.sub.example.co.uk"))
	// trailing dot and case are ignored
	assert.Equal(t, []string{"https://registry.example.com/myrdap/"}, r.LookupDNS("Example.COM."))
	assert.Nil(t, r.LookupDNS("example.unknown"))
}

func TestRegistry_IPLongestPrefix(t *testing.T) {
	r, err := ParseRegistry(KindIPv4, []byte(ipv4Registry))
	require.NoError(t, err)

	// 192.0.2.1 is inside both 192.0.0.0/8 and 192.0.2.0/24
	assert.Equal(t, []string{"https://example.org/"}, r.LookupIP(netip.MustParseAddr("192.0.2.1")))
	assert.Equal(t, []string{"https://rir1.example.com/myrdap/"}, r.LookupIP(netip.MustParseAddr("192.1.0.1")))
	assert.Equal(t, []string{"https://example.org/"}, r.LookupPrefix(netip.MustParsePrefix("203.0.113.0/24")))
	assert.Nil(t, r.LookupIP(netip.MustParseAddr("198.18.0.1")))
}

func TestRegistry_ASNRanges(t *testing.T) {
	r, err := ParseRegistry(KindASN, []byte(asnRegistry))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://rir3.example.com/myrdap/"}, r.LookupASN(64496))
	assert.Equal(t, []string{"https://example.org/"}, r.LookupASN(64499))
	assert.Equal(t, []string{"https://example.org/"}, r.LookupASN(65551))
	assert.Nil(t, r.LookupASN(64511))
}

func TestRegistry_ObjectTags(t *testing.T) {
	r, err := ParseRegistry(KindObjectTags, []byte(tagRegistry))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/rdap/"}, r.LookupTag("ABC123-YYYY"))
	assert.Equal(t, []string{"https://rdap.example.org/rdap/"}, r.LookupTag("ABC123-zz54"))
	assert.Equal(t, []string{"https://example.com/rdap/"}, r.LookupTagValue("yyyy"))
	assert.Nil(t, r.LookupTag("NOTAG"))
	assert.Nil(t, r.LookupTag("trailing-"))
}

func TestRegistry_MalformedService(t *testing.T) {
	_, err := ParseRegistry(KindDNS, []byte(`{"version":"1.0","services":[[["com"]]]}`))
	assert.Error(t, err)
}

// fakeIANA serves a fixed body per path and counts hits.
type fakeIANA struct {
	body map[string]string
	hits map[string]int
}

func (f *fakeIANA) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.hits[r.URL.Path]++
		body, ok := f.body[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(body))
	}
}

// rewriteDoer points IANA URLs at the test server.
type rewriteDoer struct {
	base string
	hc   *http.Client
}

func (d *rewriteDoer) Do(req *http.Request) (*http.Response, error) {
	u := *req.URL
	target, _ := req.URL.Parse(d.base)
	u.Scheme = target.Scheme
	u.Host = target.Host
	clone := req.Clone(req.Context())
	clone.URL = &u
	clone.Host = u.Host
	return d.hc.Do(clone)
}

func TestStore_FetchCachesOnDisk(t *testing.T) {
	fake := &fakeIANA{
		body: map[string]string{"/rdap/dns.json": dnsRegistry},
		hits: map[string]int{},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	cacheDir := t.TempDir()
	s := NewStore(
		WithHTTPDoer(&rewriteDoer{base: srv.URL, hc: srv.Client()}),
		WithCacheDir(cacheDir),
	)

	reg, err := s.Fetch(context.Background(), KindDNS)
	require.NoError(t, err)
	assert.Equal(t, "1.0", reg.Version)
	assert.Equal(t, 1, fake.hits["/rdap/dns.json"])

	// cache file and etag sidecar are written
	_, err = os.Stat(filepath.Join(cacheDir, "iana-dns.json"))
	require.NoError(t, err)
	etag, err := os.ReadFile(filepath.Join(cacheDir, "iana-dns.etag"))
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, string(etag))

	// a second fetch is served from the snapshot
	_, err = s.Fetch(context.Background(), KindDNS)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.hits["/rdap/dns.json"])
}

func TestStore_DiskCacheSurvivesRestart(t *testing.T) {
	fake := &fakeIANA{
		body: map[string]string{"/rdap/dns.json": dnsRegistry},
		hits: map[string]int{},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	cacheDir := t.TempDir()
	doer := &rewriteDoer{base: srv.URL, hc: srv.Client()}

	s1 := NewStore(WithHTTPDoer(doer), WithCacheDir(cacheDir))
	_, err := s1.Fetch(context.Background(), KindDNS)
	require.NoError(t, err)

	// a fresh store with the same cache dir must not hit the network
	s2 := NewStore(WithHTTPDoer(doer), WithCacheDir(cacheDir))
	reg, err := s2.Fetch(context.Background(), KindDNS)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://registry.example.com/myrdap/"}, reg.LookupDNS("example.com"))
	assert.Equal(t, 1, fake.hits["/rdap/dns.json"])
}

func TestStore_TTLExpiryRefetches(t *testing.T) {
	fake := &fakeIANA{
		body: map[string]string{"/rdap/dns.json": dnsRegistry},
		hits: map[string]int{},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	clock := time.Now()
	s := NewStore(
		WithHTTPDoer(&rewriteDoer{base: srv.URL, hc: srv.Client()}),
		WithCacheDir(t.TempDir()),
		WithTTL(time.Hour),
		WithClock(func() time.Time { return clock }),
	)

	_, err := s.Fetch(context.Background(), KindDNS)
	require.NoError(t, err)
	require.Equal(t, 1, fake.hits["/rdap/dns.json"])

	clock = clock.Add(2 * time.Hour)
	_, err = s.Fetch(context.Background(), KindDNS)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.hits["/rdap/dns.json"])
}

func TestStore_OverrideShadowsEverything(t *testing.T) {
	fake := &fakeIANA{
		body: map[string]string{"/rdap/dns.json": dnsRegistry},
		hits: map[string]int{},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	configDir := t.TempDir()
	override := `{"version":"1.0","publication":"2024-01-07T10:11:12Z","services":[[["com"],["https://override.example/"]]]}`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "dns.json"), []byte(override), 0o644))

	s := NewStore(
		WithHTTPDoer(&rewriteDoer{base: srv.URL, hc: srv.Client()}),
		WithCacheDir(t.TempDir()),
		WithConfigDir(configDir),
	)

	reg, err := s.Fetch(context.Background(), KindDNS)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://override.example/"}, reg.LookupDNS("example.com"))
	assert.Equal(t, 0, fake.hits["/rdap/dns.json"])
}
