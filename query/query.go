// Package query classifies raw lookup tokens into typed RDAP queries and
// forms the request URLs for them.
package query

import (
	"errors"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
)

// Type enumerates the RDAP lookup and search forms.
type Type int

const (
	TypeIPv4Addr Type = iota
	TypeIPv6Addr
	TypeIPv4Cidr
	TypeIPv6Cidr
	TypeAutnum
	TypeDomain
	TypeALabel
	TypeReverseDNS
	TypeEntity
	TypeNameserver
	TypeEntityNameSearch
	TypeEntityHandleSearch
	TypeDomainNameSearch
	TypeDomainNsNameSearch
	TypeDomainNsIPSearch
	TypeNsNameSearch
	TypeNsIPSearch
	TypeHelp
	TypeURL
)

func (t Type) String() string {
	switch t {
	case TypeIPv4Addr:
		return "IPv4 Address Lookup"
	case TypeIPv6Addr:
		return "IPv6 Address Lookup"
	case TypeIPv4Cidr:
		return "IPv4 CIDR Lookup"
	case TypeIPv6Cidr:
		return "IPv6 CIDR Lookup"
	case TypeAutnum:
		return "Autonomous System Number Lookup"
	case TypeDomain:
		return "Domain Lookup"
	case TypeALabel:
		return "A-Label Domain Lookup"
	case TypeReverseDNS:
		return "Reverse DNS Domain Lookup"
	case TypeEntity:
		return "Entity Lookup"
	case TypeNameserver:
		return "Nameserver Lookup"
	case TypeEntityNameSearch:
		return "Entity Name Search"
	case TypeEntityHandleSearch:
		return "Entity Handle Search"
	case TypeDomainNameSearch:
		return "Domain Name Search"
	case TypeDomainNsNameSearch:
		return "Domain Nameserver Name Search"
	case TypeDomainNsIPSearch:
		return "Domain Nameserver IP Address Search"
	case TypeNsNameSearch:
		return "Nameserver Name Search"
	case TypeNsIPSearch:
		return "Nameserver IP Address Search"
	case TypeHelp:
		return "Server Help Lookup"
	case TypeURL:
		return "Explicit URL"
	default:
		return "Unknown Query"
	}
}

// Classification errors.
var (
	ErrInvalidValue = errors.New("query: invalid query value")
	ErrTypeMismatch = errors.New("query: token does not satisfy the forced type")
	ErrAmbiguous    = errors.New("query: ambiguous query type")
)

// Query is a classified lookup token with its normalized payload. Value is
// the normalized token; the typed fields are populated per Type.
type Query struct {
	Type  Type
	Value string

	// Addr is set for address lookups, IP searches, and full-length
	// reverse DNS queries.
	Addr netip.Addr
	// Prefix is set for CIDR lookups and reverse DNS queries, reduced to
	// the network address.
	Prefix netip.Prefix
	// ASN is set for autnum lookups.
	ASN uint32
	// ULabel carries the original Unicode form of an IDN domain whose
	// Value has been converted to A-labels.
	ULabel string
}

// Help is the server help query.
func Help() Query { return Query{Type: TypeHelp, Value: "help"} }

// URLQuery wraps an explicit RDAP URL.
func URLQuery(raw string) Query { return Query{Type: TypeURL, Value: raw} }

// IPv4 builds an IPv4 address lookup.
func IPv4(s string) (Query, error) {
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is4() {
		return Query{}, ErrInvalidValue
	}
	return Query{Type: TypeIPv4Addr, Value: a.String(), Addr: a}, nil
}

// IPv6 builds an IPv6 address lookup.
func IPv6(s string) (Query, error) {
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is6() || a.Is4In6() {
		return Query{}, ErrInvalidValue
	}
	return Query{Type: TypeIPv6Addr, Value: a.String(), Addr: a}, nil
}

// IPv4Cidr builds an IPv4 CIDR lookup. Short prefixes are expanded
// ("10/8" means 10.0.0.0/8) and host bits are masked off.
func IPv4Cidr(s string) (Query, error) {
	p, err := parseCidr(s)
	if err != nil {
		return Query{}, err
	}
	if !p.Addr().Is4() {
		return Query{}, ErrTypeMismatch
	}
	return Query{Type: TypeIPv4Cidr, Value: p.String(), Prefix: p}, nil
}

// IPv6Cidr builds an IPv6 CIDR lookup, with the same short-form handling
// as IPv4Cidr ("2001:db8/32" means 2001:db8::/32).
func IPv6Cidr(s string) (Query, error) {
	p, err := parseCidr(s)
	if err != nil {
		return Query{}, err
	}
	if p.Addr().Is4() {
		return Query{}, ErrTypeMismatch
	}
	return Query{Type: TypeIPv6Cidr, Value: p.String(), Prefix: p}, nil
}

// Autnum builds an AS number lookup from "AS15169", "as15169", or "15169".
func Autnum(s string) (Query, error) {
	t := strings.TrimLeft(s, "asAS")
	n, err := strconv.ParseUint(t, 10, 32)
	if err != nil {
		return Query{}, ErrInvalidValue
	}
	return Query{Type: TypeAutnum, Value: strconv.FormatUint(n, 10), ASN: uint32(n)}, nil
}

// Domain builds a domain lookup. U-labels are converted to A-labels with
// the Unicode form retained on ULabel.
func Domain(s string) (Query, error) {
	ascii, ulabel, err := toALabel(s)
	if err != nil {
		return Query{}, err
	}
	return Query{Type: TypeDomain, Value: ascii, ULabel: ulabel}, nil
}

// ALabel builds a domain lookup that asserts the token is already valid
// Punycode.
func ALabel(s string) (Query, error) {
	for _, r := range s {
		if r >= 0x80 {
			return Query{}, ErrInvalidValue
		}
	}
	ascii, _, err := toALabel(s)
	if err != nil {
		return Query{}, err
	}
	return Query{Type: TypeALabel, Value: ascii}, nil
}

// Nameserver builds a nameserver lookup.
func Nameserver(s string) (Query, error) {
	ascii, ulabel, err := toALabel(s)
	if err != nil {
		return Query{}, err
	}
	return Query{Type: TypeNameserver, Value: ascii, ULabel: ulabel}, nil
}

// Entity builds an entity handle lookup.
func Entity(handle string) Query {
	return Query{Type: TypeEntity, Value: handle}
}

// ReverseDNS builds a reverse DNS lookup from an .arpa name; the embedded
// prefix is decoded to a CIDR.
func ReverseDNS(arpa string) (Query, error) {
	p, ok := ReverseToPrefix(arpa)
	if !ok {
		return Query{}, ErrInvalidValue
	}
	q := Query{Type: TypeReverseDNS, Value: strings.ToLower(strings.TrimSuffix(arpa, ".")), Prefix: p}
	if p.IsSingleIP() {
		q.Addr = p.Addr()
	}
	return q, nil
}

// ReverseDNSFromIP builds a reverse DNS lookup from an IP literal.
func ReverseDNSFromIP(ip string) (Query, error) {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return Query{}, ErrInvalidValue
	}
	return ReverseDNS(PrefixToReverse(netip.PrefixFrom(a, a.BitLen())))
}

// EntityNameSearch searches entities by full name; * and ? wildcards pass
// through to the server.
func EntityNameSearch(s string) Query {
	return Query{Type: TypeEntityNameSearch, Value: s}
}

// EntityHandleSearch searches entities by handle.
func EntityHandleSearch(s string) Query {
	return Query{Type: TypeEntityHandleSearch, Value: s}
}

// DomainNameSearch searches domains by LDH name.
func DomainNameSearch(s string) Query {
	return Query{Type: TypeDomainNameSearch, Value: s}
}

// DomainNsNameSearch searches domains by nameserver name.
func DomainNsNameSearch(s string) Query {
	return Query{Type: TypeDomainNsNameSearch, Value: s}
}

// DomainNsIPSearch searches domains by nameserver IP address.
func DomainNsIPSearch(ip string) (Query, error) {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return Query{}, ErrInvalidValue
	}
	return Query{Type: TypeDomainNsIPSearch, Value: a.String(), Addr: a}, nil
}

// NsNameSearch searches nameservers by name.
func NsNameSearch(s string) Query {
	return Query{Type: TypeNsNameSearch, Value: s}
}

// NsIPSearch searches nameservers by IP address.
func NsIPSearch(ip string) (Query, error) {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return Query{}, ErrInvalidValue
	}
	return Query{Type: TypeNsIPSearch, Value: a.String(), Addr: a}, nil
}

// URL forms the request URL for the query against a base service URL.
func (q Query) URL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	switch q.Type {
	case TypeIPv4Addr, TypeIPv6Addr:
		return base + "/ip/" + url.PathEscape(q.Value)
	case TypeIPv4Cidr, TypeIPv6Cidr:
		return base + "/ip/" + url.PathEscape(q.Prefix.Addr().String()) +
			"/" + strconv.Itoa(q.Prefix.Bits())
	case TypeAutnum:
		return base + "/autnum/" + url.PathEscape(q.Value)
	case TypeDomain, TypeALabel, TypeReverseDNS:
		return base + "/domain/" + url.PathEscape(strings.TrimPrefix(q.Value, "."))
	case TypeNameserver:
		return base + "/nameserver/" + url.PathEscape(q.Value)
	case TypeEntity:
		return base + "/entity/" + url.PathEscape(q.Value)
	case TypeEntityNameSearch:
		return base + "/entities?fn=" + url.QueryEscape(q.Value)
	case TypeEntityHandleSearch:
		return base + "/entities?handle=" + url.QueryEscape(q.Value)
	case TypeDomainNameSearch:
		return base + "/domains?name=" + url.QueryEscape(q.Value)
	case TypeDomainNsNameSearch:
		return base + "/domains?nsLdhName=" + url.QueryEscape(q.Value)
	case TypeDomainNsIPSearch:
		return base + "/domains?nsIp=" + url.QueryEscape(q.Value)
	case TypeNsNameSearch:
		return base + "/nameservers?name=" + url.QueryEscape(q.Value)
	case TypeNsIPSearch:
		return base + "/nameservers?ip=" + url.QueryEscape(q.Value)
	case TypeHelp:
		return base + "/help"
	case TypeURL:
		return q.Value
	default:
		return base
	}
}

// IsSearch reports whether the query is one of the search forms.
func (q Query) IsSearch() bool {
	switch q.Type {
	case TypeEntityNameSearch, TypeEntityHandleSearch, TypeDomainNameSearch,
		TypeDomainNsNameSearch, TypeDomainNsIPSearch, TypeNsNameSearch, TypeNsIPSearch:
		return true
	}
	return false
}

// IsDNS reports whether the query resolves through the DNS bootstrap
// registry.
func (q Query) IsDNS() bool {
	switch q.Type {
	case TypeDomain, TypeALabel, TypeNameserver:
		return true
	}
	return false
}
