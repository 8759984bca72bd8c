package query

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// Hint forces a classification instead of inferring one.
type Hint int

const (
	HintNone Hint = iota
	HintV4
	HintV6
	HintV4Cidr
	HintV6Cidr
	HintAutnum
	HintDomain
	HintALabel
	HintEntity
	HintNs
	HintEntityName
	HintEntityHandle
	HintDomainName
	HintDomainNsName
	HintDomainNsIP
	HintNsName
	HintNsIP
	HintURL
)

var hintNames = map[string]Hint{
	"v4":             HintV4,
	"v6":             HintV6,
	"v4-cidr":        HintV4Cidr,
	"v6-cidr":        HintV6Cidr,
	"autnum":         HintAutnum,
	"domain":         HintDomain,
	"a-label":        HintALabel,
	"entity":         HintEntity,
	"ns":             HintNs,
	"entity-name":    HintEntityName,
	"entity-handle":  HintEntityHandle,
	"domain-name":    HintDomainName,
	"domain-ns-name": HintDomainNsName,
	"domain-ns-ip":   HintDomainNsIP,
	"ns-name":        HintNsName,
	"ns-ip":          HintNsIP,
	"url":            HintURL,
}

// ParseHint maps the CLI type names onto hints.
func ParseHint(s string) (Hint, bool) {
	if s == "" {
		return HintNone, true
	}
	h, ok := hintNames[strings.ToLower(s)]
	return h, ok
}

var (
	reAutnum = regexp.MustCompile(`^(?i:as)\d+$`)
	reDecNum = regexp.MustCompile(`^\d+$`)
	reLDH    = regexp.MustCompile(`^(?i)(\.?[a-zA-Z0-9-]+)*\.[a-zA-Z0-9-]+\.?$`)
	reNsName = regexp.MustCompile(`^(?i)(ns)[a-zA-Z0-9-]*\.[a-zA-Z0-9-]+\.[a-zA-Z0-9-]+\.?$`)
)

// Classify infers a typed query from a raw token. A hint bypasses
// inference and returns ErrTypeMismatch when the token cannot satisfy it.
// A bare decimal is accepted as an AS number only with a hint; without one
// it is ambiguous with an entity handle.
func Classify(token string, hint Hint) (Query, error) {
	s := strings.TrimSpace(token)
	if s == "" {
		return Query{}, ErrInvalidValue
	}
	if hint != HintNone {
		return classifyHinted(s, hint)
	}

	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return URLQuery(s), nil
	}

	if strings.Contains(s, "/") {
		if p, err := parseCidr(s); err == nil {
			if p.Addr().Is4() {
				return Query{Type: TypeIPv4Cidr, Value: p.String(), Prefix: p}, nil
			}
			return Query{Type: TypeIPv6Cidr, Value: p.String(), Prefix: p}, nil
		}
	}

	if reAutnum.MatchString(s) {
		return Autnum(s)
	}
	if reDecNum.MatchString(s) {
		if _, err := strconv.ParseUint(s, 10, 32); err == nil {
			return Query{}, ErrAmbiguous
		}
		return Entity(s), nil
	}

	if a, err := netip.ParseAddr(s); err == nil {
		if a.Is4() {
			return Query{Type: TypeIPv4Addr, Value: a.String(), Addr: a}, nil
		}
		return Query{Type: TypeIPv6Addr, Value: a.String(), Addr: a}, nil
	}

	if isReverseName(s) {
		return ReverseDNS(s)
	}

	if isDomainName(s) {
		if reNsName.MatchString(s) {
			return Nameserver(s)
		}
		return Domain(s)
	}

	if strings.HasPrefix(s, ".") && !strings.Contains(s[1:], ".") {
		return Domain(s[1:])
	}

	if !strings.ContainsAny(s, " \t\n.,\"") {
		return Entity(s), nil
	}

	return Query{}, ErrAmbiguous
}

func classifyHinted(s string, hint Hint) (Query, error) {
	var q Query
	var err error
	switch hint {
	case HintV4:
		q, err = IPv4(s)
	case HintV6:
		q, err = IPv6(s)
	case HintV4Cidr:
		q, err = IPv4Cidr(s)
	case HintV6Cidr:
		q, err = IPv6Cidr(s)
	case HintAutnum:
		q, err = Autnum(s)
	case HintDomain:
		q, err = Domain(s)
	case HintALabel:
		q, err = ALabel(s)
	case HintEntity:
		return Entity(s), nil
	case HintNs:
		q, err = Nameserver(s)
	case HintEntityName:
		return EntityNameSearch(s), nil
	case HintEntityHandle:
		return EntityHandleSearch(s), nil
	case HintDomainName:
		return DomainNameSearch(s), nil
	case HintDomainNsName:
		return DomainNsNameSearch(s), nil
	case HintDomainNsIP:
		q, err = DomainNsIPSearch(s)
	case HintNsName:
		return NsNameSearch(s), nil
	case HintNsIP:
		q, err = NsIPSearch(s)
	case HintURL:
		return URLQuery(s), nil
	default:
		return Query{}, ErrInvalidValue
	}
	if err != nil {
		return Query{}, ErrTypeMismatch
	}
	return q, nil
}

// parseCidr parses a CIDR token, expanding short prefixes and masking off
// host bits. "10/8" expands to 10.0.0.0/8 and "2001:db8/32" to
// 2001:db8::/32.
func parseCidr(s string) (netip.Prefix, error) {
	ipPart, lenPart, ok := strings.Cut(s, "/")
	if !ok {
		return netip.Prefix{}, ErrInvalidValue
	}
	bits, err := strconv.Atoi(lenPart)
	if err != nil {
		return netip.Prefix{}, ErrInvalidValue
	}
	a, err := netip.ParseAddr(ipPart)
	if err != nil {
		a, err = expandShortIP(ipPart)
		if err != nil {
			return netip.Prefix{}, ErrInvalidValue
		}
	}
	p, err := a.Prefix(bits)
	if err != nil {
		return netip.Prefix{}, ErrInvalidValue
	}
	return p, nil
}

// expandShortIP completes a truncated address: missing IPv4 octets are
// zero-filled and a truncated IPv6 gets a trailing "::".
func expandShortIP(s string) (netip.Addr, error) {
	if strings.Contains(s, ":") {
		if !strings.Contains(s, "::") {
			s += "::"
		}
		return netip.ParseAddr(s)
	}
	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return netip.Addr{}, ErrInvalidValue
	}
	for len(parts) < 4 {
		parts = append(parts, "0")
	}
	return netip.ParseAddr(strings.Join(parts, "."))
}

func isDomainName(s string) bool {
	if !strings.Contains(s, ".") {
		return false
	}
	if reLDH.MatchString(s) {
		return true
	}
	// IDN validation with transitional processing off
	if _, err := idna.Lookup.ToASCII(strings.TrimSuffix(s, ".")); err == nil {
		return true
	}
	return false
}

func isReverseName(s string) bool {
	l := strings.ToLower(strings.TrimSuffix(s, "."))
	return strings.HasSuffix(l, ".in-addr.arpa") || strings.HasSuffix(l, ".ip6.arpa")
}

// toALabel converts a domain token to lowercase A-labels. The second
// return is the original token when conversion changed it, for retaining
// the Unicode form.
func toALabel(s string) (ascii, ulabel string, err error) {
	t := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "."), ".")
	if t == "" {
		return "", "", ErrInvalidValue
	}
	ascii, err = idna.Lookup.ToASCII(t)
	if err != nil {
		// LDH names with underscores or uncommon labels still pass the
		// permissive path many registries accept
		if reLDH.MatchString(t) {
			return strings.ToLower(t), "", nil
		}
		return "", "", ErrInvalidValue
	}
	ascii = strings.ToLower(ascii)
	if !strings.EqualFold(ascii, t) {
		ulabel = t
	}
	return ascii, ulabel, nil
}
