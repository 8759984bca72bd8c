package check

import (
	"github.com/datum-labs/rdapkit/rdap"
)

// Params configure one run of the checker.
type Params struct {
	// AllowUnregistered suppresses the unknown-extension finding for
	// conformance values absent from the IANA extension registry.
	AllowUnregistered bool
	// ExpectedExtensions lists extension ids the response must declare.
	// Each entry may be an alternation of ids separated by '|'.
	ExpectedExtensions []string
	// LoopHrefs lists link targets the caller skipped because traversal
	// had already visited them. Each one yields a finding under the root.
	LoopHrefs []string
}

type walker struct {
	params      Params
	rootClass   rdap.ObjectClass
	conformance []string
}

// Do checks a decoded response and returns the finding tree. HTTP exchange
// findings are included when the response carries HTTPData.
func Do(r *rdap.Response, params Params) Checks {
	w := &walker{params: params, rootClass: r.Class}
	if c := r.Common(); c != nil {
		w.conformance = c.RDAPConformance
	}

	var out Checks
	switch r.Class {
	case rdap.ClassDomain:
		out = w.domain(r.Domain(), true)
	case rdap.ClassNameserver:
		out = w.nameserver(r.Nameserver(), true)
	case rdap.ClassEntity:
		out = w.entity(r.Entity(), true)
	case rdap.ClassAutnum:
		out = w.autnum(r.Autnum(), true)
	case rdap.ClassIPNetwork:
		out = w.network(r.Network(), true)
	case rdap.ClassHelp:
		out = w.help(r.Help())
	case rdap.ClassError:
		out = w.errorResponse(r.Err(), r.HTTPData)
	case rdap.ClassSearchResults:
		out = w.searchResults(r.SearchResults())
	default:
		out = Checks{Structure: StructUnknown}
	}

	for _, want := range params.ExpectedExtensions {
		if !hasAnyExtension(w.conformance, want) {
			out.Items = append(out.Items, ExpectedExtensionNotFound.item())
		}
	}

	if len(params.LoopHrefs) > 0 {
		loops := Checks{Structure: StructLinks}
		for range params.LoopHrefs {
			loops.Items = append(loops.Items, LinkTraversalLoop.item())
		}
		out.Sub = append(out.Sub, loops)
	}

	if r.HTTPData != nil {
		out.Sub = append(out.Sub, w.httpData(r.HTTPData))
	}
	return out
}

func (w *walker) help(h *rdap.Help) Checks {
	return Checks{
		Structure: StructHelp,
		Sub:       w.commonSubs(&h.ObjectCommon, true, rdap.ClassHelp),
	}
}

// errorResponse skips the missing-conformance finding: error bodies are
// produced for failures where a server may legitimately not know its
// extensions.
func (w *walker) errorResponse(e *rdap.Error, hd *rdap.HTTPData) Checks {
	var items []Item
	if e.ErrorCode == nil {
		items = append(items, ErrorCodeIsAbsent.item())
	} else if hd != nil && hd.StatusCode != 0 && *e.ErrorCode != hd.StatusCode {
		items = append(items, ErrorCodeStatusMismatch.item())
	}
	var subs []Checks
	if conf := w.conformanceChecks(&e.ObjectCommon, false); len(conf.Items) > 0 {
		subs = append(subs, conf)
	}
	if len(e.Notices) > 0 {
		subs = append(subs, w.noticeList(e.Notices, StructNotices))
	}
	return Checks{Structure: StructError, Items: items, Sub: subs}
}

func (w *walker) searchResults(s *rdap.SearchResults) Checks {
	structure := StructDomainSearch
	switch {
	case s.Nameservers != nil:
		structure = StructNameserverSearch
	case s.Entities != nil:
		structure = StructEntitySearch
	}
	subs := w.commonSubs(&s.ObjectCommon, true, rdap.ClassSearchResults)
	for i := range s.Domains {
		subs = append(subs, w.domain(&s.Domains[i], false))
	}
	for i := range s.Nameservers {
		subs = append(subs, w.nameserver(&s.Nameservers[i], false))
	}
	for i := range s.Entities {
		subs = append(subs, w.entity(&s.Entities[i], false))
	}
	return Checks{Structure: structure, Sub: subs}
}
