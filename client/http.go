package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/datum-labs/rdapkit/rdap"
)

const rdapMediaType = "application/rdap+json"

// Get fetches one RDAP URL with validators, caching, retries, and
// rate-limit handling. A 3xx is returned as a response whose HTTPData
// carries the Location; the resolver decides whether to follow it. RDAP
// error bodies on 4xx parse as ClassError responses rather than failing.
func (c *Client) Get(ctx context.Context, u string) (*rdap.Response, error) {
	if strings.HasPrefix(u, "http://") && !c.allowHTTP {
		return nil, fmt.Errorf("%w: %s", ErrPlaintextBlocked, u)
	}

	if !c.noCache {
		if body, hdr, ok := c.respCache.Get(u); ok {
			r, err := rdap.Parse(body)
			if err == nil {
				r.HTTPData = cachedHTTPData(u, hdr)
				return r, nil
			}
		}
	}

	// concurrent misses for the same URL coalesce into one upstream
	// fetch; followers share the leader's body bytes and decode their
	// own response from them
	v, err, _ := c.flight.Do(u, func() (any, error) {
		return c.fetch(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	fr := v.(*fetchResult)

	hd := *fr.hd
	switch {
	case hd.StatusCode >= 300 && hd.StatusCode < 400:
		return &rdap.Response{Class: rdap.ClassUnknown, HTTPData: &hd}, nil

	case hd.StatusCode == http.StatusOK:
		r, err := rdap.Parse(fr.body)
		if err != nil {
			return nil, fmt.Errorf("client: GET %s: %w", u, err)
		}
		r.HTTPData = &hd
		return r, nil

	default:
		// RDAP servers return structured error bodies on 4xx
		if r, err := rdap.Parse(fr.body); err == nil && r.Class == rdap.ClassError {
			r.HTTPData = &hd
			return r, nil
		}
		return nil, &HTTPError{URL: u, Status: hd.StatusCode}
	}
}

// fetchResult carries one upstream exchange so coalesced callers can each
// build their own response from it.
type fetchResult struct {
	body []byte
	hd   *rdap.HTTPData
}

// fetch performs the upstream exchange for u: conditional requests against
// the cached validators, retries on 429/5xx, and cache fills on 200.
func (c *Client) fetch(ctx context.Context, u string) (*fetchResult, error) {
	useValidators := true
	didUnconditional := false
	retries := 0

	for attempt := 1; ; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, c.baseTimeout)

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
		if err != nil {
			cancel()
			return nil, err
		}
		req.Header.Set("Accept", rdapMediaType+", application/json;q=0.9")
		req.Header.Set("User-Agent", c.ua)
		copyHeaders(req.Header, c.headerExtra)

		if useValidators && !c.noCache {
			if meta, ok := c.respCache.Meta(u); ok {
				if meta.ETag != "" {
					req.Header.Set("If-None-Match", meta.ETag)
				}
				if !meta.LastModified.IsZero() {
					req.Header.Set("If-Modified-Since", meta.LastModified.Format(http.TimeFormat))
				}
			}
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			cancel()
			if attempt <= c.maxRetries && isRetryableNetErr(err) {
				retries++
				select {
				case <-time.After(c.backoff(attempt)):
					continue
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusNotModified:
			drain(resp)
			cancel()
			if body := c.respCache.Body(u); body != nil {
				if _, err := rdap.Parse(body); err == nil {
					c.respCache.Renew(u, resp.Header)
					hd := httpData(resp, retries)
					hd.StatusCode = http.StatusOK
					return &fetchResult{body: body, hd: hd}, nil
				}
			}
			if !didUnconditional {
				didUnconditional = true
				useValidators = false
				continue
			}
			return nil, fmt.Errorf("%w: GET %s", ErrStaleAfterRevalidate, u)

		case resp.StatusCode >= 300 && resp.StatusCode < 400:
			drain(resp)
			cancel()
			return &fetchResult{hd: httpData(resp, retries)}, nil

		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
			resp.Body.Close()
			cancel()
			if err != nil {
				return nil, err
			}
			ct := resp.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, rdapMediaType) && !c.relaxedMedia {
				return nil, fmt.Errorf("%w: GET %s returned %q", ErrWrongMediaType, u, ct)
			}
			if _, err := rdap.Parse(body); err != nil {
				return nil, fmt.Errorf("client: GET %s: %w", u, err)
			}
			if !c.noCache {
				c.respCache.Store(u, body, resp.Header)
			}
			return &fetchResult{body: body, hd: httpData(resp, retries)}, nil

		case resp.StatusCode == http.StatusTooManyRequests || isRetryable5xx(resp.StatusCode):
			wait := retryAfter(resp.Header, c.backoff(attempt), c.maxRetryWait, c.defRetryWait)
			drain(resp)
			cancel()
			if attempt <= c.maxRetries {
				retries++
				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return nil, &HTTPError{URL: u, Status: resp.StatusCode}

		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
			resp.Body.Close()
			cancel()
			if resp.StatusCode == http.StatusNotFound && !c.noCache {
				c.respCache.StoreNegative(u, 5*time.Minute)
			}
			return &fetchResult{body: body, hd: httpData(resp, retries)}, nil
		}
	}
}

// cachedHTTPData rebuilds exchange metadata for a cache hit from the
// entry's stored replay headers, so checks on a cached response see the
// same CORS and media-type data as the fetch that filled it.
func cachedHTTPData(u string, hdr http.Header) *rdap.HTTPData {
	hd := &rdap.HTTPData{StatusCode: http.StatusOK, ContentType: rdapMediaType}
	if ct := hdr.Get("Content-Type"); ct != "" {
		hd.ContentType = ct
	}
	hd.AccessControlOrigin = hdr.Get("Access-Control-Allow-Origin")
	hd.AccessControlAllowCrd = hdr.Get("Access-Control-Allow-Credentials")
	if parsed, err := url.Parse(u); err == nil {
		hd.Scheme = parsed.Scheme
		hd.Host = parsed.Host
	}
	return hd
}

func httpData(resp *http.Response, retries int) *rdap.HTTPData {
	hd := rdap.HTTPDataFromResponse(resp)
	hd.Retries = retries
	return hd
}

func isRetryable5xx(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// retryAfter honors a Retry-After header in seconds or HTTP-date form,
// capped at max; absent or over-cap values fall back to the backoff
// duration (or def when that is zero).
func retryAfter(h http.Header, fallback, max, def time.Duration) time.Duration {
	if fallback <= 0 {
		fallback = def
	}
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return fallback
	}
	if secs, err := time.ParseDuration(v + "s"); err == nil {
		if secs > 0 && secs <= max {
			return secs
		}
		return fallback
	}
	if t, err := time.Parse(time.RFC1123, v); err == nil {
		if d := time.Until(t); d > 0 && d <= max {
			return d
		}
	}
	return fallback
}

func isRetryableNetErr(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection reset", "connection refused", "broken pipe", "unexpected eof", "no such host"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
