// Package check walks a decoded RDAP response and reports conformance
// findings. Findings are classified (informational through ICANN profile
// error) and carried on a tree isomorphic to the response so callers can
// tell where in the document each one was found.
package check

import (
	"fmt"
	"strings"
)

// Class grades a finding.
type Class int

const (
	Info Class = iota
	SpecNote
	StdWarn
	StdErr
	Cidr0Err
	IcannErr
)

var classNames = map[Class]string{
	Info:     "Info",
	SpecNote: "SpecNote",
	StdWarn:  "StdWarn",
	StdErr:   "StdErr",
	Cidr0Err: "Cidr0Err",
	IcannErr: "IcannErr",
}

func (c Class) String() string {
	if s, ok := classNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// AllClasses lists every class, in severity order.
var AllClasses = []Class{Info, SpecNote, StdWarn, StdErr, Cidr0Err, IcannErr}

// ParseClass is the inverse of Class.String, case-insensitively.
func ParseClass(s string) (Class, error) {
	for c, name := range classNames {
		if strings.EqualFold(name, s) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("check: unknown check class %q", s)
}

// Structure names the RDAP data structure a group of findings belongs to.
// RDAP structures are not one-to-one with object classes: arrays and
// members like links or events are structures of their own.
type Structure string

const (
	StructAutnum           Structure = "autnum"
	StructCidr0            Structure = "cidr0"
	StructDomain           Structure = "domain"
	StructDomainSearch     Structure = "domain_search_results"
	StructEntity           Structure = "entity"
	StructEntitySearch     Structure = "entity_search_results"
	StructEvents           Structure = "events"
	StructError            Structure = "error"
	StructHelp             Structure = "help"
	StructHandle           Structure = "handle"
	StructHTTPData         Structure = "http_data"
	StructIPNetwork        Structure = "ip_network"
	StructLink             Structure = "link"
	StructLinks            Structure = "links"
	StructNameserver       Structure = "nameserver"
	StructNameserverSearch Structure = "nameserver_search_results"
	StructNoticeOrRemark   Structure = "notice_or_remark"
	StructNotices          Structure = "notices"
	StructPublicIDs        Structure = "public_ids"
	StructPort43           Structure = "port43"
	StructRdapConformance  Structure = "rdap_conformance"
	StructRedacted         Structure = "redacted"
	StructRemarks          Structure = "remarks"
	StructStatus           Structure = "status"
	StructSecureDNS        Structure = "secure_dns"
	StructVariants         Structure = "variants"
	StructVcard            Structure = "vcard"
	StructUnknown          Structure = "unknown"
)

// Item is one finding.
type Item struct {
	Class Class `json:"class"`
	Code  Code  `json:"code"`
}

// String renders "StdErr:(0100) message" for display.
func (i Item) String() string {
	return fmt.Sprintf("%s:(%04d) %s", i.Class, int(i.Code), i.Code.Message())
}

// Checks groups the findings for one structure and its substructures.
type Checks struct {
	Structure Structure `json:"structure"`
	Items     []Item    `json:"items,omitempty"`
	Sub       []Checks  `json:"subChecks,omitempty"`
}

// SubChecks returns the first substructure group with the given name, or nil.
func (c *Checks) SubChecks(s Structure) *Checks {
	for i := range c.Sub {
		if c.Sub[i].Structure == s {
			return &c.Sub[i]
		}
	}
	return nil
}

// Has reports whether code appears anywhere in the tree.
func (c *Checks) Has(code Code) bool {
	for _, it := range c.Items {
		if it.Code == code {
			return true
		}
	}
	for i := range c.Sub {
		if c.Sub[i].Has(code) {
			return true
		}
	}
	return false
}

// Traverse visits every item whose class is in classes, depth first,
// passing the slash-joined structure path from the root. It reports
// whether any item was visited.
func Traverse(c Checks, classes []Class, fn func(path string, item Item)) bool {
	return traverse(c, classes, "[ROOT]", fn)
}

func traverse(c Checks, classes []Class, parent string, fn func(string, Item)) bool {
	found := false
	path := parent + "/" + string(c.Structure)
	for _, it := range c.Items {
		for _, cl := range classes {
			if it.Class == cl {
				fn(path, it)
				found = true
				break
			}
		}
	}
	for _, sub := range c.Sub {
		if traverse(sub, classes, path, fn) {
			found = true
		}
	}
	return found
}

// Any reports whether the tree holds an item of any of the classes.
func Any(c Checks, classes []Class) bool {
	return Traverse(c, classes, func(string, Item) {})
}
