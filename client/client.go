// Package client issues typed RDAP queries: it locates the authoritative
// server through the IANA bootstrap registries, fetches over HTTPS with
// retries and caching, and chases referrals and link targets.
package client

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/datum-labs/rdapkit/bootstrap"
)

// Doer is the minimal http.Client interface we depend on (handy for
// tests/mocks).
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is a concurrency-safe RDAP client with bootstrap and caching.
type Client struct {
	hc          Doer
	ua          string
	baseTimeout time.Duration
	headerExtra http.Header

	boot *bootstrap.Store

	respCache *respCache
	noCache   bool
	// coalesces concurrent fetches of the same URL
	flight singleflight.Group

	maxRetries   int
	maxRetryWait time.Duration
	defRetryWait time.Duration
	backoff      Backoff

	maxRedirects int
	relaxedMedia bool
	allowHTTP    bool

	tldLookupURL string
	inrBackupURL string

	log *logrus.Logger
	now func() time.Time
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPDoer(d Doer) Option                 { return func(c *Client) { c.hc = d } }
func WithUserAgent(ua string) Option             { return func(c *Client) { c.ua = ua } }
func WithTimeout(d time.Duration) Option         { return func(c *Client) { c.baseTimeout = d } }
func WithBootstrap(s *bootstrap.Store) Option    { return func(c *Client) { c.boot = s } }
func WithMaxRetries(n int) Option                { return func(c *Client) { c.maxRetries = n } }
func WithMaxRetryWait(d time.Duration) Option    { return func(c *Client) { c.maxRetryWait = d } }
func WithDefRetryWait(d time.Duration) Option    { return func(c *Client) { c.defRetryWait = d } }
func WithBackoff(b Backoff) Option               { return func(c *Client) { c.backoff = b } }
func WithHeader(k, v string) Option              { return func(c *Client) { c.headerExtra.Add(k, v) } }
func WithLogger(l *logrus.Logger) Option         { return func(c *Client) { c.log = l } }
func WithNoCache() Option                        { return func(c *Client) { c.noCache = true } }
func WithRelaxedMediaType() Option               { return func(c *Client) { c.relaxedMedia = true } }
func WithAllowHTTP() Option                      { return func(c *Client) { c.allowHTTP = true } }
func WithMaxRedirects(n int) Option              { return func(c *Client) { c.maxRedirects = n } }
func WithTLDLookupURL(u string) Option           { return func(c *Client) { c.tldLookupURL = u } }
func WithINRBackupURL(u string) Option           { return func(c *Client) { c.inrBackupURL = u } }
func WithCacheSize(capacity int) Option {
	return func(c *Client) {
		if capacity > 0 {
			c.respCache = newRespCache(capacity, 10*time.Minute, time.Hour)
		}
	}
}

// New returns a ready Client with good defaults.
func New(opts ...Option) *Client {
	c := &Client{
		hc:          defaultHTTPClient(TransportPolicy{}),
		ua:          "rdapkit/0.1 (+https://github.com/datum-labs/rdapkit)",
		baseTimeout: 10 * time.Second,
		headerExtra: make(http.Header),

		respCache: newRespCache(512, 10*time.Minute, time.Hour),

		maxRetries:   2,
		maxRetryWait: 10 * time.Second,
		defRetryWait: time.Second,
		backoff:      ExponentialBackoff(200*time.Millisecond, 2.0, 2*time.Second),

		maxRedirects: 5,
		tldLookupURL: "https://rdap.iana.org",
		inrBackupURL: "https://rdap.org",

		log: logrus.StandardLogger(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.boot == nil {
		c.boot = bootstrap.NewStore(bootstrap.WithHTTPDoer(c.hc), bootstrap.WithUserAgent(c.ua))
	}
	return c
}

// TransportPolicy holds the transport security relaxations.
type TransportPolicy struct {
	AllowInvalidHostNames    bool
	AllowInvalidCertificates bool
}

// NewHTTPClient builds an *http.Client honoring the policy. Redirects are
// never followed automatically so the resolver can bound and inspect them.
func NewHTTPClient(policy TransportPolicy) *http.Client {
	return defaultHTTPClient(policy)
}

func defaultHTTPClient(policy TransportPolicy) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	switch {
	case policy.AllowInvalidCertificates:
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	case policy.AllowInvalidHostNames:
		cfg := &tls.Config{InsecureSkipVerify: true}
		// verify the chain but not the name
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return nil
			}
			opts := x509.VerifyOptions{Intermediates: x509.NewCertPool()}
			for _, cert := range cs.PeerCertificates[1:] {
				opts.Intermediates.AddCert(cert)
			}
			_, err := cs.PeerCertificates[0].Verify(opts)
			return err
		}
		tr.TLSClientConfig = cfg
	}
	return &http.Client{
		Timeout:   15 * time.Second,
		Transport: tr,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
