package query

import (
	"net/netip"
	"strconv"
	"strings"
)

// Reverse DNS codec between .arpa names and prefixes. Partial names carry
// a prefix shorter than a full address: "2.0.192.in-addr.arpa" means
// 192.0.2.0/24 and each missing ip6.arpa nibble widens the prefix by 4.

// PrefixToReverse renders a prefix as its reverse DNS name. The prefix
// length is rounded down to whole labels (8 bits for IPv4, 4 for IPv6).
func PrefixToReverse(p netip.Prefix) string {
	p = p.Masked()
	if p.Addr().Is4() {
		octets := p.Addr().As4()
		n := p.Bits() / 8
		labels := make([]string, 0, n+2)
		for i := n - 1; i >= 0; i-- {
			labels = append(labels, strconv.Itoa(int(octets[i])))
		}
		return strings.Join(append(labels, "in-addr", "arpa"), ".")
	}
	bytes := p.Addr().As16()
	n := p.Bits() / 4
	labels := make([]string, 0, n+2)
	for i := n - 1; i >= 0; i-- {
		b := bytes[i/2]
		if i%2 == 0 {
			b >>= 4
		} else {
			b &= 0x0f
		}
		labels = append(labels, strconv.FormatUint(uint64(b), 16))
	}
	return strings.Join(append(labels, "ip6", "arpa"), ".")
}

// ReverseToPrefix decodes a reverse DNS name to the prefix it covers.
func ReverseToPrefix(name string) (netip.Prefix, bool) {
	l := strings.ToLower(strings.TrimSuffix(name, "."))
	switch {
	case strings.HasSuffix(l, ".in-addr.arpa"), l == "in-addr.arpa":
		return v4Reverse(strings.TrimSuffix(strings.TrimSuffix(l, "in-addr.arpa"), "."))
	case strings.HasSuffix(l, ".ip6.arpa"), l == "ip6.arpa":
		return v6Reverse(strings.TrimSuffix(strings.TrimSuffix(l, "ip6.arpa"), "."))
	}
	return netip.Prefix{}, false
}

func v4Reverse(labels string) (netip.Prefix, bool) {
	var octets [4]byte
	n := 0
	if labels != "" {
		parts := strings.Split(labels, ".")
		if len(parts) > 4 {
			return netip.Prefix{}, false
		}
		n = len(parts)
		for i, p := range parts {
			v, err := strconv.ParseUint(p, 10, 8)
			if err != nil {
				return netip.Prefix{}, false
			}
			// first label is the least significant octet
			octets[n-1-i] = byte(v)
		}
	}
	return netip.PrefixFrom(netip.AddrFrom4(octets), n*8), true
}

func v6Reverse(labels string) (netip.Prefix, bool) {
	var bytes [16]byte
	n := 0
	if labels != "" {
		parts := strings.Split(labels, ".")
		if len(parts) > 32 {
			return netip.Prefix{}, false
		}
		n = len(parts)
		for i, p := range parts {
			v, err := strconv.ParseUint(p, 16, 8)
			if err != nil || v > 0xf {
				return netip.Prefix{}, false
			}
			// first label is the least significant nibble
			nib := n - 1 - i
			if nib%2 == 0 {
				bytes[nib/2] |= byte(v) << 4
			} else {
				bytes[nib/2] |= byte(v)
			}
		}
	}
	return netip.PrefixFrom(netip.AddrFrom16(bytes), n*4), true
}
