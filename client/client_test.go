package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/datum-labs/rdapkit/bootstrap"
	"github.com/datum-labs/rdapkit/query"
	"github.com/datum-labs/rdapkit/rdap"
)

func TestExponentialBackoff_DefaultsAndClamping(t *testing.T) {
	b := ExponentialBackoff(0, 0, 0)
	if got := b(1); got != 100*time.Millisecond {
		t.Fatalf("attempt 1: want 100ms, got %v", got)
	}
	if got := b(10); got > 2*time.Second {
		t.Fatalf("clamp: want <= 2s, got %v", got)
	}

	b = ExponentialBackoff(200*time.Millisecond, 2.0, time.Second)
	wants := []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second}
	for i, w := range wants {
		if got := b(i + 1); got != w {
			t.Fatalf("attempt %d: want %v, got %v", i+1, w, got)
		}
	}
}

func TestRespCache_StoreGetNegative(t *testing.T) {
	rc := newRespCache(2, 30*time.Second, time.Hour)
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rc.now = func() time.Time { return base }

	h := make(http.Header)
	h.Set("Cache-Control", "max-age=60")
	h.Set("ETag", `"v1"`)
	h.Set("Access-Control-Allow-Origin", "*")
	rc.Store("https://x", []byte(`{"ok":true}`), h)

	b, hdr, ok := rc.Get("https://x")
	if !ok || !strings.Contains(string(b), "ok") {
		t.Fatalf("fresh get failed: %v %q", ok, b)
	}
	if hdr.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("replay headers not stored: %v", hdr)
	}

	// stale after max-age
	rc.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, _, ok := rc.Get("https://x"); ok {
		t.Fatalf("stale entry must miss")
	}
	// but the body survives for revalidation
	if body := rc.Body("https://x"); body == nil {
		t.Fatalf("body should survive staleness")
	}

	// Renew extends freshness
	h2 := make(http.Header)
	h2.Set("Cache-Control", "max-age=120")
	rc.Renew("https://x", h2)
	if _, hdr, ok := rc.Get("https://x"); !ok || hdr.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("renewed entry should be fresh and keep replay headers: %v %v", ok, hdr)
	}
	if m, ok := rc.Meta("https://x"); !ok || m.ETag != `"v1"` {
		t.Fatalf("renew must keep the old ETag: %+v", m)
	}

	// negative entries miss until the window passes
	rc.StoreNegative("https://neg", time.Hour)
	if _, _, ok := rc.Get("https://neg"); ok {
		t.Fatalf("negative cache should miss while active")
	}

	// eviction by URL key
	rc2 := newRespCache(1, 10*time.Second, time.Hour)
	rc2.Store("u1", []byte("1"), nil)
	rc2.Store("u2", []byte("2"), nil)
	if _, _, ok := rc2.Get("u1"); ok {
		t.Fatalf("u1 should be evicted")
	}
}

func TestRetryAfter_CapsAndFallback(t *testing.T) {
	h := make(http.Header)
	h.Set("Retry-After", "3")
	if d := retryAfter(h, 10*time.Second, 10*time.Second, time.Second); d != 3*time.Second {
		t.Fatalf("seconds form: want 3s, got %v", d)
	}
	// beyond the cap -> fallback
	h.Set("Retry-After", "999")
	if d := retryAfter(h, 7*time.Second, 10*time.Second, time.Second); d != 7*time.Second {
		t.Fatalf("cap: want fallback 7s, got %v", d)
	}
	// absent -> fallback, zero fallback -> default
	if d := retryAfter(make(http.Header), 0, 10*time.Second, time.Second); d != time.Second {
		t.Fatalf("default: want 1s, got %v", d)
	}
}

func rdapHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rdap+json")
		_, _ = io.WriteString(w, body)
	}
}

func TestGet_ParsesDomain(t *testing.T) {
	ts := httptest.NewServer(rdapHandler(`{"objectClassName":"domain","ldhName":"example.com"}`))
	defer ts.Close()

	c := New(WithAllowHTTP())
	r, err := c.Get(context.Background(), ts.URL+"/domain/example.com")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if r.Class != rdap.ClassDomain || r.Domain().LDHName != "example.com" {
		t.Fatalf("unexpected response: %+v", r)
	}
	if r.HTTPData == nil || r.HTTPData.StatusCode != 200 {
		t.Fatalf("missing http data: %+v", r.HTTPData)
	}
}

func TestGet_WrongMediaType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `{"objectClassName":"domain"}`)
	}))
	defer ts.Close()

	c := New(WithAllowHTTP())
	if _, err := c.Get(context.Background(), ts.URL); !errors.Is(err, ErrWrongMediaType) {
		t.Fatalf("want ErrWrongMediaType, got %v", err)
	}

	relaxed := New(WithAllowHTTP(), WithRelaxedMediaType())
	if _, err := relaxed.Get(context.Background(), ts.URL); err != nil {
		t.Fatalf("relaxed mode should accept: %v", err)
	}
}

func TestGet_PlaintextBlocked(t *testing.T) {
	c := New()
	if _, err := c.Get(context.Background(), "http://rdap.example/ip/192.0.2.1"); !errors.Is(err, ErrPlaintextBlocked) {
		t.Fatalf("want ErrPlaintextBlocked, got %v", err)
	}
}

func TestGet_RDAPErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rdap+json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"errorCode":404,"title":"Not Found","rdapConformance":["rdap_level_0"]}`)
	}))
	defer ts.Close()

	c := New(WithAllowHTTP())
	r, err := c.Get(context.Background(), ts.URL+"/domain/nope.example")
	if err != nil {
		t.Fatalf("RDAP error body should not fail: %v", err)
	}
	if r.Class != rdap.ClassError || *r.Err().ErrorCode != 404 {
		t.Fatalf("unexpected response: %+v", r)
	}
	if r.HTTPData.StatusCode != 404 {
		t.Fatalf("status not preserved: %+v", r.HTTPData)
	}
}

func TestGet_RetryOn5xxThenSuccess(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/rdap+json")
		_, _ = io.WriteString(w, `{"objectClassName":"domain","ldhName":"ok.example"}`)
	}))
	defer ts.Close()

	c := New(WithAllowHTTP(), WithMaxRetries(3), WithBackoff(func(int) time.Duration { return 0 }))
	r, err := c.Get(context.Background(), ts.URL+"/x")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if hits != 3 {
		t.Fatalf("expected 3 hits, got %d", hits)
	}
	if r.HTTPData.Retries != 2 {
		t.Fatalf("retry count not recorded: %+v", r.HTTPData)
	}
}

func TestGet_RetryExhaustsThenError(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := New(WithAllowHTTP(), WithMaxRetries(2), WithBackoff(func(int) time.Duration { return 0 }))
	_, err := c.Get(context.Background(), ts.URL+"/x")
	var he *HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusBadGateway {
		t.Fatalf("want HTTPError 502, got %v", err)
	}
	if hits != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits)
	}
}

func TestGet_ServesFromCache(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/rdap+json")
		w.Header().Set("Cache-Control", "max-age=60")
		_, _ = io.WriteString(w, `{"objectClassName":"domain","ldhName":"example.com"}`)
	}))
	defer ts.Close()

	c := New(WithAllowHTTP())
	u := ts.URL + "/domain/example.com"
	if _, err := c.Get(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	if hits != 1 {
		t.Fatalf("second get should hit the cache, hits=%d", hits)
	}

	nc := New(WithAllowHTTP(), WithNoCache())
	if _, err := nc.Get(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	if _, err := nc.Get(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	if hits != 3 {
		t.Fatalf("no-cache client must always fetch, hits=%d", hits)
	}
}

func TestGet_CacheHitKeepsExchangeHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rdap+json")
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_, _ = io.WriteString(w, `{"objectClassName":"domain","ldhName":"example.com","rdapConformance":["rdap_level_0"]}`)
	}))
	defer ts.Close()

	c := New(WithAllowHTTP())
	u := ts.URL + "/domain/example.com"
	if _, err := c.Get(context.Background(), u); err != nil {
		t.Fatal(err)
	}

	r, err := c.Get(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	hd := r.HTTPData
	if hd == nil || hd.StatusCode != 200 {
		t.Fatalf("cache hit lost exchange metadata: %+v", hd)
	}
	if hd.AccessControlOrigin != "*" {
		t.Fatalf("cache hit must replay the CORS headers: %+v", hd)
	}
	if hd.Scheme != "http" || hd.Host == "" {
		t.Fatalf("cache hit must carry the request scheme and host: %+v", hd)
	}
}

func TestGet_CoalescesConcurrentMisses(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Header().Set("Content-Type", "application/rdap+json")
		_, _ = io.WriteString(w, `{"objectClassName":"domain","ldhName":"example.com"}`)
	}))
	defer ts.Close()

	c := New(WithAllowHTTP())
	u := ts.URL + "/domain/example.com"

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	resps := make([]*rdap.Response, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resps[i], errs[i] = c.Get(context.Background(), u)
		}(i)
	}

	// let every caller reach the in-flight request before it answers
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if resps[i].Domain().LDHName != "example.com" {
			t.Fatalf("caller %d got %+v", i, resps[i])
		}
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("concurrent misses must coalesce into one fetch, got %d", n)
	}
}

// ianaDoer redirects data.iana.org requests at a fake registry server and
// passes everything else through.
type ianaDoer struct {
	ianaBase string
	hc       *http.Client
}

func (d *ianaDoer) Do(req *http.Request) (*http.Response, error) {
	if req.URL.Host == "data.iana.org" {
		u := *req.URL
		target, _ := req.URL.Parse(d.ianaBase)
		u.Scheme = target.Scheme
		u.Host = target.Host
		clone := req.Clone(req.Context())
		clone.URL = &u
		clone.Host = u.Host
		return d.hc.Do(clone)
	}
	return d.hc.Do(req)
}

func newTestStack(t *testing.T, rdapSrv *httptest.Server) *Client {
	t.Helper()
	dns := fmt.Sprintf(`{"version":"1.0","publication":"2026-01-01T00:00:00Z",
		"services":[[["example"],["%s/"]]]}`, rdapSrv.URL)
	iana := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/dns.json") {
			_, _ = io.WriteString(w, dns)
			return
		}
		_, _ = io.WriteString(w, `{"version":"1.0","publication":"2026-01-01T00:00:00Z","services":[]}`)
	}))
	t.Cleanup(iana.Close)

	doer := &ianaDoer{ianaBase: iana.URL, hc: newTestHTTPClient()}
	boot := bootstrap.NewStore(bootstrap.WithHTTPDoer(doer), bootstrap.WithCacheDir(t.TempDir()))
	return New(WithAllowHTTP(), WithHTTPDoer(doer), WithBootstrap(boot))
}

func newTestHTTPClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestDo_BootstrapLookupAndRedirect(t *testing.T) {
	var registrar *httptest.Server
	registrar = httptest.NewServer(rdapHandler(`{"objectClassName":"domain","ldhName":"test.example","handle":"REGR"}`))
	defer registrar.Close()

	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// registry answers with a referral to the registrar
		w.Header().Set("Location", registrar.URL+r.URL.Path)
		w.WriteHeader(http.StatusTemporaryRedirect)
	}))
	defer registry.Close()

	c := newTestStack(t, registry)

	q, err := query.Classify("test.example", query.HintNone)
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Do(context.Background(), q, Policy{})
	if err != nil {
		t.Fatalf("Do err: %v", err)
	}
	if res.Response.Class != rdap.ClassDomain {
		t.Fatalf("unexpected class: %v", res.Response.Class)
	}
	if !strings.HasPrefix(res.URL, registrar.URL) {
		t.Fatalf("result URL should be the redirect target, got %s", res.URL)
	}
}

func TestDo_RedirectLoopBounded(t *testing.T) {
	var loop *httptest.Server
	loop = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", loop.URL+"/domain/test.example/next")
		w.WriteHeader(http.StatusTemporaryRedirect)
	}))
	defer loop.Close()

	c := newTestStack(t, loop)
	q, _ := query.Classify("test.example", query.HintNone)
	_, err := c.Do(context.Background(), q, Policy{})
	if !errors.Is(err, ErrTooManyRedirects) {
		t.Fatalf("want ErrTooManyRedirects, got %v", err)
	}
}

func TestDo_LinkTraversalWithLoopDetection(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rdap+json")
		switch r.URL.Path {
		case "/domain/test.example":
			fmt.Fprintf(w, `{"objectClassName":"domain","ldhName":"test.example",
				"links":[{"rel":"related","href":"%s/related/1"}]}`, srv.URL)
		case "/related/1":
			// links back to the root: must be reported as a loop, not refetched
			fmt.Fprintf(w, `{"objectClassName":"domain","ldhName":"test.example","handle":"R1",
				"links":[{"rel":"related","href":"%s/domain/test.example"}]}`, srv.URL)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestStack(t, srv)
	q, _ := query.Classify("test.example", query.HintNone)
	lp := LinkPolicy{Targets: []string{"related"}, MinDepth: 1, MaxDepth: 2}
	res, err := c.Do(context.Background(), q, Policy{Links: lp})
	if err != nil {
		t.Fatalf("Do err: %v", err)
	}
	if len(res.Children) != 1 {
		t.Fatalf("want 1 child, got %d", len(res.Children))
	}
	child := res.Children[0]
	if child.Depth != 1 || child.Response.Domain().Handle != "R1" {
		t.Fatalf("unexpected child: %+v", child)
	}
	if len(child.Loops) != 1 {
		t.Fatalf("loop not detected: %+v", child.Loops)
	}
	if got := len(res.Flatten()); got != 2 {
		t.Fatalf("flatten: want 2 nodes, got %d", got)
	}
}

func TestDo_BaseURLOverride(t *testing.T) {
	ts := httptest.NewServer(rdapHandler(`{"objectClassName":"entity","handle":"XYZ"}`))
	defer ts.Close()

	c := New(WithAllowHTTP())
	res, err := c.Do(context.Background(), query.Entity("XYZ"), Policy{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("Do err: %v", err)
	}
	if res.Response.Entity().Handle != "XYZ" {
		t.Fatalf("unexpected entity: %+v", res.Response.Entity())
	}
}

func TestDo_SearchNeedsBaseURL(t *testing.T) {
	c := New(WithAllowHTTP())
	_, err := c.Do(context.Background(), query.DomainNameSearch("example*"), Policy{})
	if !errors.Is(err, ErrBaseURLRequired) {
		t.Fatalf("want ErrBaseURLRequired, got %v", err)
	}
}

func TestPreset(t *testing.T) {
	lp, ok := Preset("registrar")
	if !ok || len(lp.Targets) != 1 || lp.Targets[0] != "related" || !lp.OnlyShowTargets {
		t.Fatalf("registrar preset: %+v ok=%v", lp, ok)
	}
	if lp, ok := Preset("registry"); !ok || len(lp.Targets) != 0 {
		t.Fatalf("registry preset should not traverse: %+v", lp)
	}
	if _, ok := Preset("sideways"); ok {
		t.Fatal("unknown preset must not resolve")
	}
}

func TestHTTPSFirst(t *testing.T) {
	in := []string{"http://a", "https://b", "http://c", "https://d"}
	got := httpsFirst(in)
	want := []string{"https://b", "https://d", "http://a", "http://c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: %v", got)
		}
	}
}
