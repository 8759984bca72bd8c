package check

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datum-labs/rdapkit/rdap"
)

func parse(t *testing.T, body string) *rdap.Response {
	t.Helper()
	r, err := rdap.Parse([]byte(body))
	require.NoError(t, err)
	return r
}

func TestDo_ConformanceMissing(t *testing.T) {
	r := parse(t, `{"objectClassName":"domain","ldhName":"foo.net"}`)
	checks := Do(r, Params{})
	assert.True(t, checks.Has(RdapConformanceMissing))

	r = parse(t, `{"objectClassName":"domain","ldhName":"foo.net","rdapConformance":["rdap_level_0"]}`)
	checks = Do(r, Params{})
	assert.False(t, checks.Has(RdapConformanceMissing))
}

func TestDo_UnknownExtension(t *testing.T) {
	body := `{"objectClassName":"domain","ldhName":"foo.net","rdapConformance":["rdap_level_0","lunarNic"]}`

	checks := Do(parse(t, body), Params{})
	assert.True(t, checks.Has(UnknownExtension))

	checks = Do(parse(t, body), Params{AllowUnregistered: true})
	assert.False(t, checks.Has(UnknownExtension))
}

func TestDo_ConformanceOnEmbeddedObject(t *testing.T) {
	body := `{
		"objectClassName": "domain",
		"ldhName": "foo.net",
		"rdapConformance": ["rdap_level_0"],
		"entities": [
			{"objectClassName": "entity", "handle": "E1", "rdapConformance": ["rdap_level_0"]}
		]
	}`
	checks := Do(parse(t, body), Params{})
	assert.True(t, checks.Has(RdapConformanceInvalidParent))
}

func TestDo_ExpectedExtension(t *testing.T) {
	body := `{"objectClassName":"autnum","startAutnum":700,"endAutnum":700,"rdapConformance":["rdap_level_0"]}`

	checks := Do(parse(t, body), Params{ExpectedExtensions: []string{"nro_rdap_profile_0"}})
	assert.True(t, checks.Has(ExpectedExtensionNotFound))

	// alternation is satisfied by either id
	body = `{"objectClassName":"autnum","startAutnum":700,"endAutnum":700,"rdapConformance":["rdap_level_0","nro_rdap_profile_asn_flat_0"]}`
	checks = Do(parse(t, body), Params{ExpectedExtensions: []string{"nro_rdap_profile_asn_flat_0|nro_rdap_profile_asn_hierarchical_0"}})
	assert.False(t, checks.Has(ExpectedExtensionNotFound))
}

func TestDo_LinkChecks(t *testing.T) {
	body := `{
		"objectClassName": "domain",
		"ldhName": "foo.net",
		"rdapConformance": ["rdap_level_0"],
		"links": [
			{"href": "https://reg.example/domain/foo.net"},
			{"value": "https://x", "href": "https://rdap.example/domain/foo.net", "rel": "related"},
			{"value": "https://x", "href": "https://web.example/whois", "rel": "related", "type": "application/rdap+json"},
			{"value": "https://x", "href": "https://rdap.example/domain/foo.net", "rel": "self", "type": "text/html"}
		]
	}`
	checks := Do(parse(t, body), Params{})

	assert.True(t, checks.Has(LinkMissingValueProperty))
	assert.True(t, checks.Has(LinkMissingRelProperty))
	assert.True(t, checks.Has(LinkRelatedHasNoType))
	assert.True(t, checks.Has(LinkRelatedNotToRdap))
	assert.True(t, checks.Has(LinkSelfIsNotRdap))
	assert.False(t, checks.Has(LinkMissingHrefProperty))
	// a self link exists, broken as it is
	assert.False(t, checks.Has(LinkObjectClassHasNoSelf))
}

func TestDo_MissingSelfLink(t *testing.T) {
	body := `{"objectClassName":"entity","handle":"E1","rdapConformance":["rdap_level_0"]}`
	checks := Do(parse(t, body), Params{})
	assert.True(t, checks.Has(LinkObjectClassHasNoSelf))
}

func TestDo_NameserverSelfLinkOnlyWhenTopObject(t *testing.T) {
	embedded := `{
		"objectClassName": "domain",
		"ldhName": "foo.net",
		"rdapConformance": ["rdap_level_0"],
		"links": [{"value":"https://x","href":"https://rdap.example/domain/foo.net","rel":"self","type":"application/rdap+json"}],
		"nameservers": [{"objectClassName": "nameserver", "ldhName": "ns1.foo.net"}]
	}`
	checks := Do(parse(t, embedded), Params{})
	assert.False(t, checks.Has(LinkObjectClassHasNoSelf))

	top := `{"objectClassName":"nameserver","ldhName":"ns1.foo.net","rdapConformance":["rdap_level_0"]}`
	checks = Do(parse(t, top), Params{})
	assert.True(t, checks.Has(LinkObjectClassHasNoSelf))
}

func TestDo_EventChecks(t *testing.T) {
	body := `{
		"objectClassName": "domain",
		"ldhName": "foo.net",
		"rdapConformance": ["rdap_level_0"],
		"events": [
			{"eventAction": "registration", "eventDate": "1990-12-31T23:59:59Z"},
			{"eventAction": "expiration", "eventDate": "next tuesday"},
			{"eventDate": "1990-12-31T23:59:59Z"}
		]
	}`
	checks := Do(parse(t, body), Params{})
	assert.True(t, checks.Has(EventDateIsNotRfc3339))
	assert.True(t, checks.Has(EventActionIsAbsent))
	assert.False(t, checks.Has(EventDateIsAbsent))
}

func TestDo_NoticeDescription(t *testing.T) {
	absent := `{"objectClassName":"domain","ldhName":"foo.net","rdapConformance":["rdap_level_0"],"notices":[{"title":"T"}]}`
	checks := Do(parse(t, absent), Params{})
	assert.True(t, checks.Has(NoticeOrRemarkDescriptionIsAbsent))

	bare := `{"objectClassName":"domain","ldhName":"foo.net","rdapConformance":["rdap_level_0"],"notices":[{"title":"T","description":"just a string"}]}`
	checks = Do(parse(t, bare), Params{})
	assert.True(t, checks.Has(NoticeOrRemarkDescriptionIsString))
}

func TestDo_DomainNames(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Code
	}{
		{"bad ldh", `{"objectClassName":"domain","ldhName":"_not=ldh","rdapConformance":["rdap_level_0"]}`, LdhNameInvalid},
		{"documentation", `{"objectClassName":"domain","ldhName":"foo.example.com","rdapConformance":["rdap_level_0"]}`, LdhNameDocumentation},
		{"unicode mismatch", `{"objectClassName":"domain","ldhName":"xn--caf-dma.net","unicodeName":"kaffee.net","rdapConformance":["rdap_level_0"]}`, LdhNameDoesNotMatchUnicode},
		{"bad unicode name", `{"objectClassName":"domain","ldhName":"foo.net","unicodeName":"not a=domain","rdapConformance":["rdap_level_0"]}`, UnicodeNameInvalidDomain},
		{"empty variant", `{"objectClassName":"domain","ldhName":"foo.net","variants":[{}],"rdapConformance":["rdap_level_0"]}`, VariantEmptyDomain},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checks := Do(parse(t, tc.body), Params{})
			assert.True(t, checks.Has(tc.want))
		})
	}
}

func TestDo_EntityVcard(t *testing.T) {
	noFn := `{
		"objectClassName": "entity",
		"handle": "E1",
		"rdapConformance": ["rdap_level_0"],
		"vcardArray": ["vcard", [["version", {}, "text", "4.0"]]]
	}`
	checks := Do(parse(t, noFn), Params{})
	assert.True(t, checks.Has(VcardHasNoFn))

	emptyFn := `{
		"objectClassName": "entity",
		"handle": "E1",
		"rdapConformance": ["rdap_level_0"],
		"vcardArray": ["vcard", [["version", {}, "text", "4.0"], ["fn", {}, "text", "  "]]]
	}`
	checks = Do(parse(t, emptyFn), Params{})
	assert.True(t, checks.Has(VcardFnIsEmpty))

	notVcard := `{
		"objectClassName": "entity",
		"handle": "E1",
		"rdapConformance": ["rdap_level_0"],
		"vcardArray": ["vcard", []]
	}`
	checks = Do(parse(t, notVcard), Params{})
	assert.True(t, checks.Has(VcardArrayIsEmpty))
}

func TestDo_EntityRoles(t *testing.T) {
	body := `{"objectClassName":"entity","handle":"E1","roles":["registrant",""],"rdapConformance":["rdap_level_0"]}`
	checks := Do(parse(t, body), Params{})
	assert.True(t, checks.Has(RoleIsEmpty))
}

func TestDo_NetworkChecks(t *testing.T) {
	endBeforeStart := `{
		"objectClassName": "ip network",
		"startAddress": "192.0.2.255",
		"endAddress": "192.0.2.0",
		"ipVersion": "v4",
		"rdapConformance": ["rdap_level_0"]
	}`
	checks := Do(parse(t, endBeforeStart), Params{})
	assert.True(t, checks.Has(IPAddressEndBeforeStart))
	// 192.0.2/24 is TEST-NET-1
	assert.True(t, checks.Has(IPAddressDocumentationNet))

	badVersion := `{
		"objectClassName": "ip network",
		"startAddress": "10.0.0.0",
		"endAddress": "10.255.255.255",
		"ipVersion": "ipv4",
		"rdapConformance": ["rdap_level_0"]
	}`
	checks = Do(parse(t, badVersion), Params{})
	assert.True(t, checks.Has(IPAddressMalformedVersion))
	assert.True(t, checks.Has(IPAddressPrivateUse))

	versionMismatch := `{
		"objectClassName": "ip network",
		"startAddress": "2001:db8::",
		"endAddress": "2001:db8::ffff",
		"ipVersion": "v4",
		"rdapConformance": ["rdap_level_0"]
	}`
	checks = Do(parse(t, versionMismatch), Params{})
	assert.True(t, checks.Has(IPAddressVersionMismatch))

	missing := `{"objectClassName":"ip network","rdapConformance":["rdap_level_0"]}`
	checks = Do(parse(t, missing), Params{})
	assert.True(t, checks.Has(IPAddressMissing))
}

func TestDo_Cidr0(t *testing.T) {
	body := `{
		"objectClassName": "ip network",
		"startAddress": "198.51.100.0",
		"endAddress": "198.51.100.255",
		"ipVersion": "v4",
		"rdapConformance": ["rdap_level_0", "cidr0"],
		"cidr0_cidrs": [{"v4prefix": "198.51.100.0"}, {"length": 24}]
	}`
	checks := Do(parse(t, body), Params{})
	assert.True(t, checks.Has(Cidr0V4LengthIsAbsent))
	assert.True(t, checks.Has(Cidr0V4PrefixIsAbsent))
}

func TestDo_AutnumChecks(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Code
	}{
		{"missing", `{"objectClassName":"autnum","rdapConformance":["rdap_level_0"]}`, AutnumMissing},
		{"end before start", `{"objectClassName":"autnum","startAutnum":700,"endAutnum":600,"rdapConformance":["rdap_level_0"]}`, AutnumEndBeforeStart},
		{"private use", `{"objectClassName":"autnum","startAutnum":64512,"endAutnum":64512,"rdapConformance":["rdap_level_0"]}`, AutnumPrivateUse},
		{"documentation", `{"objectClassName":"autnum","startAutnum":64496,"endAutnum":64496,"rdapConformance":["rdap_level_0"]}`, AutnumDocumentation},
		{"reserved", `{"objectClassName":"autnum","startAutnum":0,"endAutnum":0,"rdapConformance":["rdap_level_0"]}`, AutnumReserved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checks := Do(parse(t, tc.body), Params{})
			assert.True(t, checks.Has(tc.want))
		})
	}
}

func TestAutnumRanges(t *testing.T) {
	assert.True(t, isAutnumReserved(0))
	assert.True(t, isAutnumReserved(65535))
	assert.True(t, isAutnumReserved(65552))
	assert.True(t, isAutnumReserved(131071))
	assert.True(t, isAutnumReserved(4294967295))
	assert.False(t, isAutnumReserved(1))
	assert.False(t, isAutnumReserved(131072))

	assert.True(t, isAutnumDocumentation(64496))
	assert.True(t, isAutnumDocumentation(65551))
	assert.False(t, isAutnumDocumentation(64495))
	assert.False(t, isAutnumDocumentation(65552))

	assert.True(t, isAutnumPrivateUse(64512))
	assert.True(t, isAutnumPrivateUse(4200000000))
	assert.False(t, isAutnumPrivateUse(64511))
	assert.False(t, isAutnumPrivateUse(4294967295))
}

func TestDo_NameserverIPAddresses(t *testing.T) {
	body := `{
		"objectClassName": "nameserver",
		"ldhName": "ns1.foo.net",
		"rdapConformance": ["rdap_level_0"],
		"ipAddresses": {"v4": ["192.0.2.1", "not-an-ip"], "v6": ["192.0.2.2"]}
	}`
	checks := Do(parse(t, body), Params{})
	assert.True(t, checks.Has(IPAddressMalformed))
	assert.True(t, checks.Has(IPAddressVersionMismatch))

	empty := `{"objectClassName":"nameserver","ldhName":"ns1.foo.net","rdapConformance":["rdap_level_0"],"ipAddresses":{}}`
	checks = Do(parse(t, empty), Params{})
	assert.True(t, checks.Has(IPAddressListIsEmpty))
}

func TestDo_HTTPData(t *testing.T) {
	r := parse(t, `{"objectClassName":"domain","ldhName":"foo.net","rdapConformance":["rdap_level_0"]}`)
	r.HTTPData = &rdap.HTTPData{
		StatusCode:  200,
		ContentType: "application/json",
		Scheme:      "https",
	}
	checks := Do(r, Params{})
	assert.True(t, checks.Has(ContentTypeIsNotRdap))
	assert.True(t, checks.Has(CorsAllowOriginRecommended))
	assert.False(t, checks.Has(MustUseHTTPS))
}

func TestDo_ICANNProfileHTTPS(t *testing.T) {
	body := `{"objectClassName":"domain","ldhName":"foo.net","rdapConformance":["rdap_level_0","icann_rdap_technical_implementation_guide_0"]}`
	r := parse(t, body)
	r.HTTPData = &rdap.HTTPData{
		StatusCode:            200,
		ContentType:           "application/rdap+json",
		Scheme:                "http",
		AccessControlOrigin:   "https://example.com",
		AccessControlAllowCrd: "true",
	}
	checks := Do(r, Params{})
	assert.True(t, checks.Has(MustUseHTTPS))
	assert.True(t, checks.Has(AllowOriginNotStar))
	assert.True(t, checks.Has(CorsAllowCredentialsNotRecommended))
}

func TestDo_ErrorCodeMatchesStatus(t *testing.T) {
	r := parse(t, `{"errorCode":404,"title":"Not Found","rdapConformance":["rdap_level_0"]}`)
	r.HTTPData = &rdap.HTTPData{StatusCode: 404, ContentType: "application/rdap+json", Scheme: "https"}
	checks := Do(r, Params{})
	assert.False(t, checks.Has(ErrorCodeIsAbsent))
	assert.False(t, checks.Has(ErrorCodeStatusMismatch))

	// the body claims 404 but the exchange answered 200
	r.HTTPData.StatusCode = 200
	checks = Do(r, Params{})
	assert.True(t, checks.Has(ErrorCodeStatusMismatch))
}

func TestDo_ErrorCodeAbsent(t *testing.T) {
	r := &rdap.Response{
		Class:  rdap.ClassError,
		Object: &rdap.Error{Title: "broken", Description: []string{"no code"}},
	}
	checks := Do(r, Params{})
	assert.True(t, checks.Has(ErrorCodeIsAbsent))
	assert.Equal(t, StdErr, ErrorCodeIsAbsent.DefaultClass())
}

func TestDo_TraversalLoops(t *testing.T) {
	r := parse(t, `{"objectClassName":"domain","ldhName":"foo.net","rdapConformance":["rdap_level_0"]}`)

	checks := Do(r, Params{})
	assert.False(t, checks.Has(LinkTraversalLoop))

	loops := []string{
		"https://rdap.example/domain/foo.net",
		"https://rdap.example/entity/E1",
	}
	checks = Do(r, Params{LoopHrefs: loops})
	assert.True(t, checks.Has(LinkTraversalLoop))

	var n int
	Traverse(checks, []Class{StdWarn}, func(path string, item Item) {
		if item.Code == LinkTraversalLoop {
			n++
			assert.Equal(t, "[ROOT]/domain/links", path)
		}
	})
	assert.Equal(t, len(loops), n, "one finding per skipped href")
}

func TestTraverse_PathsAndFilter(t *testing.T) {
	body := `{
		"objectClassName": "domain",
		"ldhName": "foo.net",
		"rdapConformance": ["rdap_level_0"],
		"links": [{"href": "https://reg.example/domain/foo.net"}]
	}`
	checks := Do(parse(t, body), Params{})

	var paths []string
	found := Traverse(checks, []Class{StdErr}, func(path string, item Item) {
		paths = append(paths, path+" "+item.String())
	})
	require.True(t, found)

	joined := strings.Join(paths, "\n")
	assert.Contains(t, joined, "[ROOT]/domain/links/link")
	assert.Contains(t, joined, "StdErr:(0201)")

	// Info filter finds nothing in this response
	assert.False(t, Any(checks, []Class{Info}))
}

func TestItemString(t *testing.T) {
	it := RdapConformanceMissing.item()
	assert.Equal(t, "StdErr:(0100) RFC 9083 requires 'rdapConformance' on the root object.", it.String())
}

func TestParseClass(t *testing.T) {
	c, err := ParseClass("stderr")
	require.NoError(t, err)
	assert.Equal(t, StdErr, c)

	_, err = ParseClass("bogus")
	assert.Error(t, err)
}
