// Package bootstrap models the IANA RDAP bootstrap registries (RFC 9224)
// and maintains cached copies of them on disk.
package bootstrap

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/yl2chen/cidranger"
)

// Kind names a bootstrap registry.
type Kind string

const (
	KindDNS        Kind = "dns"
	KindIPv4       Kind = "ipv4"
	KindIPv6       Kind = "ipv6"
	KindASN        Kind = "asn"
	KindObjectTags Kind = "object-tags"
)

// Kinds lists every registry kind.
var Kinds = []Kind{KindDNS, KindIPv4, KindIPv6, KindASN, KindObjectTags}

// IANAURL returns the data.iana.org URL for the registry kind.
func (k Kind) IANAURL() string {
	return "https://data.iana.org/rdap/" + string(k) + ".json"
}

var errBadService = errors.New("bootstrap: malformed service entry")

// Service is one service entry: a key set mapped to an ordered URL list.
// Object-tag registries carry a leading contact array.
type Service struct {
	Contact []string
	Keys    []string
	URLs    []string
}

func (s *Service) UnmarshalJSON(b []byte) error {
	var arr [][]string
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	switch len(arr) {
	case 2:
		s.Keys, s.URLs = arr[0], arr[1]
	case 3:
		s.Contact, s.Keys, s.URLs = arr[0], arr[1], arr[2]
	default:
		return errBadService
	}
	return nil
}

func (s Service) MarshalJSON() ([]byte, error) {
	if s.Contact != nil {
		return json.Marshal([][]string{s.Contact, s.Keys, s.URLs})
	}
	return json.Marshal([][]string{s.Keys, s.URLs})
}

// Registry is a parsed bootstrap registry with its lookup indexes.
type Registry struct {
	Version     string    `json:"version"`
	Publication string    `json:"publication"`
	Description string    `json:"description,omitempty"`
	Services    []Service `json:"services"`

	dnsIndex map[string]svcRef
	ranger   cidranger.Ranger
	asnIndex []asnRange
	tagIndex map[string]svcRef
}

type svcRef struct {
	urls  []string
	order int
}

type asnRange struct {
	lo, hi uint32
	svcRef
}

type cidrEntry struct {
	ipNet net.IPNet
	svcRef
}

func (e *cidrEntry) Network() net.IPNet { return e.ipNet }

// ParseRegistry decodes a registry document and builds the lookup indexes
// for the given kind.
func ParseRegistry(kind Kind, data []byte) (*Registry, error) {
	var r Registry
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("bootstrap: parsing %s registry: %w", kind, err)
	}
	if err := r.index(kind); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Registry) index(kind Kind) error {
	switch kind {
	case KindDNS:
		r.dnsIndex = make(map[string]svcRef, len(r.Services))
		for i, svc := range r.Services {
			for _, key := range svc.Keys {
				key = strings.ToLower(strings.Trim(key, "."))
				if _, dup := r.dnsIndex[key]; !dup {
					r.dnsIndex[key] = svcRef{urls: svc.URLs, order: i}
				}
			}
		}
	case KindIPv4, KindIPv6:
		r.ranger = cidranger.NewPCTrieRanger()
		for i, svc := range r.Services {
			for _, key := range svc.Keys {
				_, ipNet, err := net.ParseCIDR(strings.TrimSpace(key))
				if err != nil {
					continue
				}
				if err := r.ranger.Insert(&cidrEntry{ipNet: *ipNet, svcRef: svcRef{urls: svc.URLs, order: i}}); err != nil {
					return fmt.Errorf("bootstrap: indexing %s: %w", key, err)
				}
			}
		}
	case KindASN:
		for i, svc := range r.Services {
			for _, key := range svc.Keys {
				lo, hi, ok := parseASNRange(key)
				if !ok {
					continue
				}
				r.asnIndex = append(r.asnIndex, asnRange{lo: lo, hi: hi, svcRef: svcRef{urls: svc.URLs, order: i}})
			}
		}
	case KindObjectTags:
		r.tagIndex = make(map[string]svcRef, len(r.Services))
		for i, svc := range r.Services {
			for _, key := range svc.Keys {
				key = strings.ToUpper(key)
				if _, dup := r.tagIndex[key]; !dup {
					r.tagIndex[key] = svcRef{urls: svc.URLs, order: i}
				}
			}
		}
	}
	return nil
}

func parseASNRange(s string) (uint32, uint32, bool) {
	s = strings.TrimSpace(s)
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		l, err1 := strconv.ParseUint(strings.TrimSpace(lo), 10, 32)
		h, err2 := strconv.ParseUint(strings.TrimSpace(hi), 10, 32)
		if err1 != nil || err2 != nil || h < l {
			return 0, 0, false
		}
		return uint32(l), uint32(h), true
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, 0, false
	}
	return uint32(n), uint32(n), true
}

// LookupDNS walks the name's labels right to left and returns the URLs of
// the longest matching suffix.
func (r *Registry) LookupDNS(fqdn string) []string {
	name := strings.ToLower(strings.Trim(fqdn, "."))
	for {
		if ref, ok := r.dnsIndex[name]; ok {
			return ref.urls
		}
		_, rest, ok := strings.Cut(name, ".")
		if !ok {
			break
		}
		name = rest
	}
	// a registry may carry a catch-all empty key
	if ref, ok := r.dnsIndex[""]; ok {
		return ref.urls
	}
	return nil
}

// LookupIP returns the URLs of the most specific CIDR containing the
// address, breaking prefix-length ties by registry listing order.
func (r *Registry) LookupIP(addr netip.Addr) []string {
	if r.ranger == nil {
		return nil
	}
	entries, err := r.ranger.ContainingNetworks(addrToNetIP(addr))
	if err != nil {
		return nil
	}
	var best *cidrEntry
	bestBits := -1
	for _, e := range entries {
		ce, ok := e.(*cidrEntry)
		if !ok {
			continue
		}
		bits, _ := ce.ipNet.Mask.Size()
		if bits > bestBits || (bits == bestBits && best != nil && ce.order < best.order) {
			best, bestBits = ce, bits
		}
	}
	if best == nil {
		return nil
	}
	return best.urls
}

// LookupPrefix matches a CIDR query by its network address.
func (r *Registry) LookupPrefix(p netip.Prefix) []string {
	return r.LookupIP(p.Masked().Addr())
}

// LookupASN returns the URLs of the first listed range containing the
// number.
func (r *Registry) LookupASN(asn uint32) []string {
	var best *asnRange
	for i := range r.asnIndex {
		rng := &r.asnIndex[i]
		if asn < rng.lo || asn > rng.hi {
			continue
		}
		if best == nil || rng.order < best.order {
			best = rng
		}
	}
	if best == nil {
		return nil
	}
	return best.urls
}

// LookupTag matches the tag portion of an entity handle ("HANDLE-TAG")
// against the object-tag registry.
func (r *Registry) LookupTag(handle string) []string {
	i := strings.LastIndex(handle, "-")
	if i < 0 || i == len(handle)-1 {
		return nil
	}
	return r.LookupTagValue(handle[i+1:])
}

// LookupTagValue matches an object tag directly.
func (r *Registry) LookupTagValue(tag string) []string {
	if ref, ok := r.tagIndex[strings.ToUpper(tag)]; ok {
		return ref.urls
	}
	return nil
}

func addrToNetIP(a netip.Addr) net.IP {
	if a.Is4() {
		b := a.As4()
		return net.IPv4(b[0], b[1], b[2], b[3])
	}
	b := a.As16()
	return net.IP(b[:])
}
