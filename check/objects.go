package check

import (
	"net/netip"
	"strings"

	"golang.org/x/net/idna"

	"github.com/datum-labs/rdapkit/rdap"
)

func (w *walker) domain(d *rdap.Domain, isRoot bool) Checks {
	out := Checks{Structure: StructDomain}

	if d.LDHName != "" {
		if !isLDHDomainName(d.LDHName) {
			out.Items = append(out.Items, LdhNameInvalid.item())
		}
		if isDocumentationName(d.LDHName) {
			out.Items = append(out.Items, LdhNameDocumentation.item())
		}
	}
	if d.UnicodeName != "" {
		if !isUnicodeDomainName(d.UnicodeName) {
			out.Items = append(out.Items, UnicodeNameInvalidDomain.item())
		}
		ascii, err := idna.Lookup.ToASCII(d.UnicodeName)
		if err != nil {
			out.Items = append(out.Items, UnicodeNameInvalidUnicode.item())
		} else if d.LDHName != "" && !strings.EqualFold(ascii, d.LDHName) {
			out.Items = append(out.Items, LdhNameDoesNotMatchUnicode.item())
		}
	}

	for _, v := range d.Variants {
		if len(v.Relation) == 0 && v.IDNTable == "" && len(v.VariantNames) == 0 {
			out.Items = append(out.Items, VariantEmptyDomain.item())
			break
		}
	}

	if len(d.PublicIDs) > 0 {
		if pids := publicIDChecks(d.PublicIDs); len(pids.Items) > 0 {
			out.Sub = append(out.Sub, pids)
		}
	}
	for i := range d.Nameservers {
		out.Sub = append(out.Sub, w.nameserver(&d.Nameservers[i], false))
	}
	if d.Network != nil {
		out.Sub = append(out.Sub, w.network(d.Network, false))
	}

	out.Sub = append(out.Sub, w.commonSubs(&d.ObjectCommon, isRoot, rdap.ClassDomain)...)
	return out
}

func (w *walker) entity(e *rdap.Entity, isRoot bool) Checks {
	out := Checks{Structure: StructEntity}

	if e.Roles != nil && anyEmptyOrWhitespace(e.Roles) {
		out.Items = append(out.Items, RoleIsEmpty.item())
	}

	if e.VCardArray != nil {
		if items := vcardChecks(e.VCardArray); len(items) > 0 {
			out.Sub = append(out.Sub, Checks{Structure: StructVcard, Items: items})
		}
	}
	if len(e.PublicIDs) > 0 {
		if pids := publicIDChecks(e.PublicIDs); len(pids.Items) > 0 {
			out.Sub = append(out.Sub, pids)
		}
	}
	for i := range e.Networks {
		out.Sub = append(out.Sub, w.network(&e.Networks[i], false))
	}
	for i := range e.Autnums {
		out.Sub = append(out.Sub, w.autnum(&e.Autnums[i], false))
	}

	out.Sub = append(out.Sub, w.commonSubs(&e.ObjectCommon, isRoot, rdap.ClassEntity)...)
	return out
}

// vcardChecks validates the jCard carried by an entity.
func vcardChecks(v []any) []Item {
	props, ok := vcardProperties(v)
	if !ok || len(props) == 0 {
		return []Item{VcardArrayIsEmpty.item()}
	}
	var items []Item
	fn, found := vcardProperty(props, "fn")
	if !found {
		items = append(items, VcardHasNoFn.item())
	} else if s, ok := fn.(string); ok && isWhitespaceOrEmpty(s) {
		items = append(items, VcardFnIsEmpty.item())
	}
	return items
}

func vcardProperties(v []any) ([]any, bool) {
	if len(v) < 2 {
		return nil, false
	}
	tag, ok := v[0].(string)
	if !ok || !strings.EqualFold(tag, "vcard") {
		return nil, false
	}
	props, ok := v[1].([]any)
	return props, ok
}

// vcardProperty returns the value (fourth element) of the first property
// with the given name.
func vcardProperty(props []any, name string) (any, bool) {
	for _, p := range props {
		prop, ok := p.([]any)
		if !ok || len(prop) < 4 {
			continue
		}
		n, ok := prop[0].(string)
		if ok && strings.EqualFold(n, name) {
			return prop[3], true
		}
	}
	return nil, false
}

func (w *walker) nameserver(n *rdap.Nameserver, isRoot bool) Checks {
	out := Checks{Structure: StructNameserver}

	if n.LDHName != "" && !isLDHDomainName(n.LDHName) {
		out.Items = append(out.Items, LdhNameInvalid.item())
	}

	if n.IPAddresses != nil {
		if len(n.IPAddresses.V4)+len(n.IPAddresses.V6) == 0 {
			out.Items = append(out.Items, IPAddressListIsEmpty.item())
		}
		for _, s := range n.IPAddresses.V4 {
			if addr, err := netip.ParseAddr(s); err != nil {
				out.Items = append(out.Items, IPAddressMalformed.item())
			} else if !addr.Is4() {
				out.Items = append(out.Items, IPAddressVersionMismatch.item())
			}
		}
		for _, s := range n.IPAddresses.V6 {
			if addr, err := netip.ParseAddr(s); err != nil {
				out.Items = append(out.Items, IPAddressMalformed.item())
			} else if addr.Is4() {
				out.Items = append(out.Items, IPAddressVersionMismatch.item())
			}
		}
	}

	out.Sub = append(out.Sub, w.commonSubs(&n.ObjectCommon, isRoot, rdap.ClassNameserver)...)
	return out
}

func (w *walker) network(n *rdap.IPNetwork, isRoot bool) Checks {
	out := Checks{Structure: StructIPNetwork}

	if n.StartAddress == "" || n.EndAddress == "" {
		out.Items = append(out.Items, IPAddressMissing.item())
	}

	start, startErr := netip.ParseAddr(n.StartAddress)
	end, endErr := netip.ParseAddr(n.EndAddress)
	if n.StartAddress != "" && startErr != nil {
		out.Items = append(out.Items, IPAddressMalformed.item())
	}
	if n.EndAddress != "" && endErr != nil {
		out.Items = append(out.Items, IPAddressMalformed.item())
	}
	if startErr == nil && endErr == nil {
		if start.Is4() != end.Is4() {
			out.Items = append(out.Items, IPAddressVersionMismatch.item())
		} else if end.Less(start) {
			out.Items = append(out.Items, IPAddressEndBeforeStart.item())
		}
	}

	switch n.IPVersion {
	case "", "v4", "v6":
		if n.IPVersion != "" && startErr == nil {
			if (n.IPVersion == "v4") != start.Is4() {
				out.Items = append(out.Items, IPAddressVersionMismatch.item())
			}
		}
	default:
		out.Items = append(out.Items, IPAddressMalformedVersion.item())
	}

	if startErr == nil {
		out.Items = append(out.Items, specialRangeChecks(start, endErr == nil, end)...)
	}

	if n.Name != "" && isWhitespaceOrEmpty(n.Name) {
		out.Items = append(out.Items, NetworkOrAutnumNameIsEmpty.item())
	}
	if n.Type != "" && isWhitespaceOrEmpty(n.Type) {
		out.Items = append(out.Items, NetworkOrAutnumTypeIsEmpty.item())
	}

	if len(n.Cidr0Cidrs) > 0 {
		if cidr0 := cidr0Checks(n.Cidr0Cidrs); len(cidr0.Items) > 0 {
			out.Sub = append(out.Sub, cidr0)
		}
	}

	out.Sub = append(out.Sub, w.commonSubs(&n.ObjectCommon, isRoot, rdap.ClassIPNetwork)...)
	return out
}

var specialRanges = []struct {
	prefix netip.Prefix
	code   Code
}{
	{netip.MustParsePrefix("0.0.0.0/8"), IPAddressThisNetwork},
	{netip.MustParsePrefix("10.0.0.0/8"), IPAddressPrivateUse},
	{netip.MustParsePrefix("172.16.0.0/12"), IPAddressPrivateUse},
	{netip.MustParsePrefix("192.168.0.0/16"), IPAddressPrivateUse},
	{netip.MustParsePrefix("100.64.0.0/10"), IPAddressSharedNat},
	{netip.MustParsePrefix("127.0.0.0/8"), IPAddressLoopback},
	{netip.MustParsePrefix("::1/128"), IPAddressLoopback},
	{netip.MustParsePrefix("169.254.0.0/16"), IPAddressLinkLocal},
	{netip.MustParsePrefix("fe80::/10"), IPAddressLinkLocal},
	{netip.MustParsePrefix("fc00::/7"), IPAddressUniqueLocal},
	{netip.MustParsePrefix("192.0.2.0/24"), IPAddressDocumentationNet},
	{netip.MustParsePrefix("198.51.100.0/24"), IPAddressDocumentationNet},
	{netip.MustParsePrefix("203.0.113.0/24"), IPAddressDocumentationNet},
	{netip.MustParsePrefix("2001:db8::/32"), IPAddressDocumentationNet},
	{netip.MustParsePrefix("240.0.0.0/4"), IPAddressReservedNet},
}

// specialRangeChecks emits one informational per special range touching
// the start or end address.
func specialRangeChecks(start netip.Addr, haveEnd bool, end netip.Addr) []Item {
	var items []Item
	for _, r := range specialRanges {
		if r.prefix.Contains(start) || (haveEnd && r.prefix.Contains(end)) {
			items = append(items, r.code.item())
		}
	}
	return items
}

func cidr0Checks(cidrs []rdap.Cidr0Cidr) Checks {
	out := Checks{Structure: StructCidr0}
	for _, c := range cidrs {
		switch {
		case c.V6Prefix != "":
			if c.Length == nil {
				out.Items = append(out.Items, Cidr0V6LengthIsAbsent.item())
			}
		case c.V4Prefix != "":
			if c.Length == nil {
				out.Items = append(out.Items, Cidr0V4LengthIsAbsent.item())
			}
		default:
			// neither prefix form present; report both absences so either
			// family's reader sees the defect
			out.Items = append(out.Items, Cidr0V4PrefixIsAbsent.item(), Cidr0V6PrefixIsAbsent.item())
		}
	}
	return out
}

func (w *walker) autnum(a *rdap.Autnum, isRoot bool) Checks {
	out := Checks{Structure: StructAutnum}

	if a.StartAutnum == nil || a.EndAutnum == nil {
		out.Items = append(out.Items, AutnumMissing.item())
	} else {
		start, end := *a.StartAutnum, *a.EndAutnum
		if end < start {
			out.Items = append(out.Items, AutnumEndBeforeStart.item())
		}
		if isAutnumReserved(start) || isAutnumReserved(end) {
			out.Items = append(out.Items, AutnumReserved.item())
		}
		if isAutnumDocumentation(start) || isAutnumDocumentation(end) {
			out.Items = append(out.Items, AutnumDocumentation.item())
		}
		if isAutnumPrivateUse(start) || isAutnumPrivateUse(end) {
			out.Items = append(out.Items, AutnumPrivateUse.item())
		}
	}

	if a.Name != "" && isWhitespaceOrEmpty(a.Name) {
		out.Items = append(out.Items, NetworkOrAutnumNameIsEmpty.item())
	}
	if a.Type != "" && isWhitespaceOrEmpty(a.Type) {
		out.Items = append(out.Items, NetworkOrAutnumTypeIsEmpty.item())
	}

	out.Sub = append(out.Sub, w.commonSubs(&a.ObjectCommon, isRoot, rdap.ClassAutnum)...)
	return out
}

// AS number special ranges per RFC 6996 and RFC 5398.

func isAutnumReserved(asn uint32) bool {
	return asn == 0 || asn == 65535 || asn == 4294967295 ||
		(asn >= 65552 && asn <= 131071)
}

func isAutnumDocumentation(asn uint32) bool {
	return (asn >= 64496 && asn <= 64511) || (asn >= 65536 && asn <= 65551)
}

func isAutnumPrivateUse(asn uint32) bool {
	return (asn >= 64512 && asn <= 65534) || (asn >= 4200000000 && asn <= 4294967294)
}
