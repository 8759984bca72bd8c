package store

import (
	"net/netip"
	"regexp"
	"sort"
	"strings"

	"github.com/datum-labs/rdapkit/rdap"
)

// compileGlob turns a search pattern into an anchored case-insensitive
// regexp. Only * and ? are special.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// SearchDomainsByName returns domains whose ldhName or unicodeName matches
// the glob pattern, ordered by ldhName.
func (s *Store) SearchDomainsByName(pattern string) ([]*rdap.Response, error) {
	re, err := compileGlob(pattern)
	if err != nil {
		return nil, err
	}
	snap := s.snap.Load()
	var out []*rdap.Response
	for _, r := range snap.domains {
		d := r.Domain()
		if d == nil {
			continue
		}
		if re.MatchString(d.LDHName) || (d.UnicodeName != "" && re.MatchString(d.UnicodeName)) {
			out = append(out, r)
		}
	}
	sortByName(out, func(r *rdap.Response) string { return r.Domain().LDHName })
	return out, nil
}

// SearchNameserversByName returns nameservers whose ldhName or unicodeName
// matches the glob pattern, ordered by ldhName.
func (s *Store) SearchNameserversByName(pattern string) ([]*rdap.Response, error) {
	re, err := compileGlob(pattern)
	if err != nil {
		return nil, err
	}
	snap := s.snap.Load()
	var out []*rdap.Response
	for _, r := range snap.nameservers {
		ns := r.Nameserver()
		if ns == nil {
			continue
		}
		if re.MatchString(ns.LDHName) || (ns.UnicodeName != "" && re.MatchString(ns.UnicodeName)) {
			out = append(out, r)
		}
	}
	sortByName(out, func(r *rdap.Response) string { return r.Nameserver().LDHName })
	return out, nil
}

// SearchNameserversByIP returns nameservers whose ipAddresses contain the
// address, ordered by ldhName.
func (s *Store) SearchNameserversByIP(addr netip.Addr) []*rdap.Response {
	snap := s.snap.Load()
	var out []*rdap.Response
	for _, r := range snap.nameservers {
		ns := r.Nameserver()
		if ns == nil || ns.IPAddresses == nil {
			continue
		}
		if addrListContains(ns.IPAddresses.V4, addr) || addrListContains(ns.IPAddresses.V6, addr) {
			out = append(out, r)
		}
	}
	sortByName(out, func(r *rdap.Response) string { return r.Nameserver().LDHName })
	return out
}

// SearchEntitiesByFN returns entities whose contact full name matches the
// glob pattern, ordered by handle.
func (s *Store) SearchEntitiesByFN(pattern string) ([]*rdap.Response, error) {
	re, err := compileGlob(pattern)
	if err != nil {
		return nil, err
	}
	snap := s.snap.Load()
	var out []*rdap.Response
	for _, r := range snap.entities {
		e := r.Entity()
		if e == nil || len(e.VCardArray) == 0 {
			continue
		}
		contact, err := rdap.FromVcard(e.VCardArray)
		if err != nil || contact.FullName == "" {
			continue
		}
		if re.MatchString(contact.FullName) {
			out = append(out, r)
		}
	}
	sortByName(out, func(r *rdap.Response) string { return r.Entity().Handle })
	return out, nil
}

func addrListContains(list []string, addr netip.Addr) bool {
	for _, s := range list {
		a, err := netip.ParseAddr(s)
		if err == nil && a == addr {
			return true
		}
	}
	return false
}

func sortByName(rs []*rdap.Response, key func(*rdap.Response) string) {
	sort.Slice(rs, func(i, j int) bool {
		return foldKey(key(rs[i])) < foldKey(key(rs[j]))
	})
}
