package check

import "strings"

// Identifiers from the IANA RDAP Extensions registry, plus rdap_level_0.
// A declared conformance value not in this set raises UnknownExtension
// unless Params allow unregistered extensions.
var registeredExtensions = makeSet(
	"rdap_level_0",
	"arin_originas0",
	"artRecord",
	"cidr0",
	"exts",
	"farv1",
	"fred",
	"icann_rdap_response_profile_0",
	"icann_rdap_response_profile_1",
	"icann_rdap_technical_implementation_guide_0",
	"icann_rdap_technical_implementation_guide_1",
	"jscontact",
	"nro_rdap_profile_0",
	"nro_rdap_profile_asn_flat_0",
	"nro_rdap_profile_asn_hierarchical_0",
	"paging",
	"platformNS",
	"rdap_objectTag",
	"redacted",
	"redirect_with_content",
	"regType",
	"reverse_search",
	"simpleRedaction",
	"sorting",
	"subsetting",
)

func makeSet(ids ...string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// ICANN gTLD profile extensions that switch on the IcannErr rules.
const (
	extICANNTechGuide0 = "icann_rdap_technical_implementation_guide_0"
	extICANNTechGuide1 = "icann_rdap_technical_implementation_guide_1"
)

func isRegisteredExtension(id string) bool {
	return registeredExtensions[id]
}

// hasExtension reports whether conformance declares id, either exactly or
// as a versioned form (a declared "fred_1" satisfies id "fred").
func hasExtension(conformance []string, id string) bool {
	for _, ext := range conformance {
		if ext == id || strings.HasPrefix(ext, id+"_") {
			return true
		}
	}
	return false
}

// hasAnyExtension matches an alternation of ids separated by '|', as used
// for expected-extension specifications.
func hasAnyExtension(conformance []string, alternation string) bool {
	for _, id := range strings.Split(alternation, "|") {
		if hasExtension(conformance, id) {
			return true
		}
	}
	return false
}
