package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/datum-labs/rdapkit/bootstrap"
	"github.com/datum-labs/rdapkit/query"
	"github.com/datum-labs/rdapkit/rdap"
)

// LinkPolicy drives traversal of links[] targets after a lookup.
type LinkPolicy struct {
	Targets         []string
	MinDepth        int
	MaxDepth        int
	OnlyShowTargets bool
}

// Preset expands the named traversal preset.
func Preset(name string) (LinkPolicy, bool) {
	switch strings.ToLower(name) {
	case "registry":
		return LinkPolicy{}, true
	case "registrar":
		return LinkPolicy{Targets: []string{"related"}, MinDepth: 1, MaxDepth: 1, OnlyShowTargets: true}, true
	case "up":
		return LinkPolicy{Targets: []string{"up"}, MinDepth: 1, MaxDepth: 1}, true
	case "down":
		return LinkPolicy{Targets: []string{"down"}, MinDepth: 1, MaxDepth: 1}, true
	case "top":
		return LinkPolicy{Targets: []string{"up"}, MinDepth: 1, MaxDepth: 10, OnlyShowTargets: true}, true
	case "bottom":
		return LinkPolicy{Targets: []string{"down"}, MinDepth: 1, MaxDepth: 10, OnlyShowTargets: true}, true
	}
	return LinkPolicy{}, false
}

// Policy configures resolution for one query.
type Policy struct {
	// BaseURL short-circuits bootstrap with an explicit server.
	BaseURL string
	// ObjectTag resolves the base through the object-tag registry.
	ObjectTag string
	Links     LinkPolicy
}

// Result is one node of the traversal tree.
type Result struct {
	Query    query.Query
	URL      string
	Response *rdap.Response
	Depth    int
	Children []*Result
	// Loops lists link hrefs that were skipped because the traversal had
	// already visited them.
	Loops []string
}

// Flatten returns the tree in breadth-first order.
func (r *Result) Flatten() []*Result {
	out := []*Result{r}
	for i := 0; i < len(out); i++ {
		out = append(out, out[i].Children...)
	}
	return out
}

// Do resolves a query to a base URL, fetches it following referrals, and
// walks link targets per the policy.
func (c *Client) Do(ctx context.Context, q query.Query, policy Policy) (*Result, error) {
	bases, err := c.baseURLs(ctx, q, policy)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{}
	root, err := c.attempt(ctx, q, bases, visited)
	if err != nil {
		return nil, err
	}
	if len(policy.Links.Targets) > 0 {
		c.traverse(ctx, root, policy.Links, visited)
	}
	return root, nil
}

// attempt tries each base in order, following redirects up to the hop
// bound; connection failures and final 5xx move on to the next base.
func (c *Client) attempt(ctx context.Context, q query.Query, bases []string, visited map[string]bool) (*Result, error) {
	var lastErr error
	for _, base := range bases {
		u := q.URL(base)
		res, err := c.fetchFollowing(ctx, q, u, visited)
		if err != nil {
			if isServerUnusable(err) {
				c.log.WithError(err).WithField("url", u).Debug("trying next bootstrap url")
				lastErr = err
				continue
			}
			return nil, err
		}
		return res, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoRegistryMatch
}

// fetchFollowing fetches u, following 3xx Location referrals.
func (c *Client) fetchFollowing(ctx context.Context, q query.Query, u string, visited map[string]bool) (*Result, error) {
	for hop := 0; hop <= c.maxRedirects; hop++ {
		visited[u] = true
		r, err := c.Get(ctx, u)
		if err != nil {
			return nil, err
		}
		hd := r.HTTPData
		if hd != nil && hd.StatusCode >= 300 && hd.StatusCode < 400 {
			loc := hd.Location
			if loc == "" {
				return nil, &HTTPError{URL: u, Status: hd.StatusCode}
			}
			next, err := resolveRef(u, loc)
			if err != nil {
				return nil, fmt.Errorf("client: bad redirect from %s: %w", u, err)
			}
			if visited[next] {
				return nil, fmt.Errorf("%w: redirect loop at %s", ErrTooManyRedirects, next)
			}
			u = next
			continue
		}
		return &Result{Query: q, URL: u, Response: r}, nil
	}
	return nil, fmt.Errorf("%w: GET %s", ErrTooManyRedirects, u)
}

// traverse walks links[] whose rel is in the policy targets, breadth
// first, refusing to re-request a visited URL.
func (c *Client) traverse(ctx context.Context, root *Result, lp LinkPolicy, visited map[string]bool) {
	queue := []*Result{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node.Depth >= lp.MaxDepth {
			continue
		}
		for _, href := range targetLinks(node.Response, lp.Targets) {
			if visited[href] {
				node.Loops = append(node.Loops, href)
				continue
			}
			child, err := c.fetchFollowing(ctx, query.URLQuery(href), href, visited)
			if err != nil {
				c.log.WithError(err).WithField("url", href).Warn("link target fetch failed")
				continue
			}
			child.Depth = node.Depth + 1
			node.Children = append(node.Children, child)
			queue = append(queue, child)
		}
	}
}

func targetLinks(r *rdap.Response, targets []string) []string {
	if r == nil {
		return nil
	}
	common := r.Common()
	if common == nil {
		return nil
	}
	var out []string
	for _, link := range common.Links {
		for _, rel := range targets {
			if strings.EqualFold(link.Rel, rel) && link.Href != "" {
				out = append(out, link.Href)
			}
		}
	}
	return out
}

// baseURLs produces the ordered base-URL attempts for a query.
func (c *Client) baseURLs(ctx context.Context, q query.Query, policy Policy) ([]string, error) {
	if q.Type == query.TypeURL {
		return []string{""}, nil
	}
	if policy.BaseURL != "" {
		return []string{policy.BaseURL}, nil
	}
	if policy.ObjectTag != "" {
		reg, err := c.boot.Fetch(ctx, bootstrap.KindObjectTags)
		if err != nil {
			return nil, err
		}
		urls := reg.LookupTagValue(policy.ObjectTag)
		if len(urls) == 0 {
			return nil, fmt.Errorf("%w: object tag %q", ErrNoRegistryMatch, policy.ObjectTag)
		}
		return httpsFirst(urls), nil
	}

	switch q.Type {
	case query.TypeDomain, query.TypeALabel, query.TypeNameserver:
		if !strings.Contains(q.Value, ".") {
			// TLDs are served by the IANA registry itself
			return []string{c.tldLookupURL}, nil
		}
		reg, err := c.boot.Fetch(ctx, bootstrap.KindDNS)
		if err != nil {
			return nil, err
		}
		urls := reg.LookupDNS(q.Value)
		if len(urls) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoRegistryMatch, q.Value)
		}
		return httpsFirst(urls), nil

	case query.TypeIPv4Addr, query.TypeIPv4Cidr, query.TypeIPv6Addr, query.TypeIPv6Cidr, query.TypeReverseDNS:
		kind := bootstrap.KindIPv4
		switch q.Type {
		case query.TypeIPv6Addr, query.TypeIPv6Cidr:
			kind = bootstrap.KindIPv6
		case query.TypeReverseDNS:
			if !q.Prefix.Addr().Is4() {
				kind = bootstrap.KindIPv6
			}
		}
		reg, err := c.boot.Fetch(ctx, kind)
		if err != nil {
			return nil, err
		}
		var urls []string
		if q.Addr.IsValid() {
			urls = reg.LookupIP(q.Addr)
		} else {
			urls = reg.LookupPrefix(q.Prefix)
		}
		if len(urls) == 0 {
			return []string{c.inrBackupURL}, nil
		}
		return httpsFirst(urls), nil

	case query.TypeAutnum:
		reg, err := c.boot.Fetch(ctx, bootstrap.KindASN)
		if err != nil {
			return nil, err
		}
		urls := reg.LookupASN(q.ASN)
		if len(urls) == 0 {
			return []string{c.inrBackupURL}, nil
		}
		return httpsFirst(urls), nil

	case query.TypeEntity:
		reg, err := c.boot.Fetch(ctx, bootstrap.KindObjectTags)
		if err == nil {
			if urls := reg.LookupTag(q.Value); len(urls) > 0 {
				return httpsFirst(urls), nil
			}
		}
		return nil, fmt.Errorf("%w: entity %q has no object tag", ErrBaseURLRequired, q.Value)

	default:
		// help and the search forms have no bootstrap registry
		return nil, fmt.Errorf("%w: %s", ErrBaseURLRequired, q.Type)
	}
}

// httpsFirst orders https URLs before http, preserving relative order.
func httpsFirst(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if strings.HasPrefix(u, "https://") {
			out = append(out, u)
		}
	}
	for _, u := range urls {
		if !strings.HasPrefix(u, "https://") {
			out = append(out, u)
		}
	}
	return out
}

// isServerUnusable reports errors that justify moving to the next base
// URL rather than failing the query.
func isServerUnusable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status >= 500
	}
	return isRetryableNetErr(err)
}

func resolveRef(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
