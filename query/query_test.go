package query

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Inference(t *testing.T) {
	cases := []struct {
		token string
		want  Type
		value string
	}{
		{"https://rdap.example.com/domain/example.com", TypeURL, "https://rdap.example.com/domain/example.com"},
		{"129.129.1.1", TypeIPv4Addr, "129.129.1.1"},
		{"2001::1", TypeIPv6Addr, "2001::1"},
		{"129.129.1.1/8", TypeIPv4Cidr, "129.0.0.0/8"},
		{"10/8", TypeIPv4Cidr, "10.0.0.0/8"},
		{"10.20/16", TypeIPv4Cidr, "10.20.0.0/16"},
		{"2001:db8::/32", TypeIPv6Cidr, "2001:db8::/32"},
		{"2001:db8/32", TypeIPv6Cidr, "2001:db8::/32"},
		{"as15169", TypeAutnum, "15169"},
		{"AS15169", TypeAutnum, "15169"},
		{"example.com", TypeDomain, "example.com"},
		{"example.com.", TypeDomain, "example.com"},
		{".com", TypeDomain, "com"},
		{"ns1.example.com", TypeNameserver, "ns1.example.com"},
		{"ns.example.com", TypeNameserver, "ns.example.com"},
		{"4.3.2.1.in-addr.arpa", TypeReverseDNS, "4.3.2.1.in-addr.arpa"},
		{"2.0.192.in-addr.arpa", TypeReverseDNS, "2.0.192.in-addr.arpa"},
		{"XXX-RIR", TypeEntity, "XXX-RIR"},
		{"foo", TypeEntity, "foo"},
	}
	for _, tc := range cases {
		t.Run(tc.token, func(t *testing.T) {
			q, err := Classify(tc.token, HintNone)
			require.NoError(t, err)
			assert.Equal(t, tc.want, q.Type)
			assert.Equal(t, tc.value, q.Value)
		})
	}
}

func TestClassify_BareIntegerIsAmbiguous(t *testing.T) {
	_, err := Classify("15169", HintNone)
	assert.ErrorIs(t, err, ErrAmbiguous)

	q, err := Classify("15169", HintAutnum)
	require.NoError(t, err)
	assert.Equal(t, TypeAutnum, q.Type)
	assert.Equal(t, uint32(15169), q.ASN)

	q, err = Classify("15169", HintEntity)
	require.NoError(t, err)
	assert.Equal(t, TypeEntity, q.Type)

	// too large for an ASN, unambiguously a handle
	q, err = Classify("4294967296", HintNone)
	require.NoError(t, err)
	assert.Equal(t, TypeEntity, q.Type)
}

func TestClassify_HintMismatch(t *testing.T) {
	_, err := Classify("example.com", HintV4)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = Classify("2001:db8::/32", HintV4Cidr)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = Classify("not an ip", HintNsIP)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestClassify_IDN(t *testing.T) {
	q, err := Classify("café.example", HintNone)
	require.NoError(t, err)
	assert.Equal(t, TypeDomain, q.Type)
	assert.Equal(t, "xn--caf-dma.example", q.Value)
	assert.Equal(t, "café.example", q.ULabel)
}

func TestClassify_ReverseDNSDecodesPrefix(t *testing.T) {
	q, err := Classify("2.0.192.in-addr.arpa", HintNone)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("192.0.2.0/24"), q.Prefix)

	q, err = Classify("4.3.2.1.in-addr.arpa", HintNone)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("1.2.3.4"), q.Addr)

	q, err = Classify("b.a.9.8.7.6.5.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa", HintNone)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("2001:db8::567:89ab"), q.Addr)

	_, err = Classify("4.3.2.500.in-addr.arpa", HintNone)
	assert.Error(t, err)
}

func TestQueryURL(t *testing.T) {
	cases := []struct {
		q    func() Query
		want string
	}{
		{func() Query { q, _ := IPv4("192.0.2.1"); return q }, "https://rdap.example/ip/192.0.2.1"},
		{func() Query { q, _ := IPv4Cidr("192.0.2.0/24"); return q }, "https://rdap.example/ip/192.0.2.0/24"},
		{func() Query { q, _ := Autnum("AS15169"); return q }, "https://rdap.example/autnum/15169"},
		{func() Query { q, _ := Domain("example.com"); return q }, "https://rdap.example/domain/example.com"},
		{func() Query { q, _ := Nameserver("ns1.example.com"); return q }, "https://rdap.example/nameserver/ns1.example.com"},
		{func() Query { return Entity("XXX-RIR") }, "https://rdap.example/entity/XXX-RIR"},
		{func() Query { return EntityNameSearch("Bob*") }, "https://rdap.example/entities?fn=Bob%2A"},
		{func() Query { return DomainNameSearch("example*.com") }, "https://rdap.example/domains?name=example%2A.com"},
		{func() Query { return Help() }, "https://rdap.example/help"},
	}
	for _, tc := range cases {
		// trailing slash on the base must not double up
		assert.Equal(t, tc.want, tc.q().URL("https://rdap.example/"))
		assert.Equal(t, tc.want, tc.q().URL("https://rdap.example"))
	}
}

func TestReverseRoundTrip(t *testing.T) {
	cases := []string{"1.2.3.4/32", "192.0.2.0/24", "10.0.0.0/8", "2001:db8::/32", "2001:db8::567:89ab/128"}
	for _, c := range cases {
		p := netip.MustParsePrefix(c)
		back, ok := ReverseToPrefix(PrefixToReverse(p))
		require.True(t, ok, c)
		assert.Equal(t, p, back, c)
	}
}

func TestParseHint(t *testing.T) {
	h, ok := ParseHint("domain-ns-ip")
	require.True(t, ok)
	assert.Equal(t, HintDomainNsIP, h)

	_, ok = ParseHint("bogus")
	assert.False(t, ok)

	h, ok = ParseHint("")
	require.True(t, ok)
	assert.Equal(t, HintNone, h)
}
