package check

import (
	"net/url"
	"strings"
	"time"

	"github.com/datum-labs/rdapkit/rdap"
)

const rdapMediaType = "application/rdap+json"

// commonSubs collects the findings for members every top-level object
// shares: rdapConformance, notices, and the object-common members.
func (w *walker) commonSubs(oc *rdap.ObjectCommon, isRoot bool, parent rdap.ObjectClass) []Checks {
	var subs []Checks
	if isRoot {
		if conf := w.conformanceChecks(oc, true); len(conf.Items) > 0 {
			subs = append(subs, conf)
		}
	} else if len(oc.RDAPConformance) > 0 {
		subs = append(subs, Checks{
			Structure: StructRdapConformance,
			Items:     []Item{RdapConformanceInvalidParent.item()},
		})
	}
	if len(oc.Notices) > 0 {
		subs = append(subs, w.noticeList(oc.Notices, StructNotices))
	}
	subs = append(subs, w.objectCommon(oc, parent)...)
	return subs
}

// conformanceChecks validates the rdapConformance member of a top-level
// object. When required, its absence is an error.
func (w *walker) conformanceChecks(oc *rdap.ObjectCommon, required bool) Checks {
	conf := Checks{Structure: StructRdapConformance}
	if required && len(oc.RDAPConformance) == 0 {
		conf.Items = append(conf.Items, RdapConformanceMissing.item())
	}
	if !w.params.AllowUnregistered {
		for _, ext := range oc.RDAPConformance {
			if !isRegisteredExtension(ext) {
				conf.Items = append(conf.Items, UnknownExtension.item())
			}
		}
	}
	return conf
}

// objectCommon checks the members shared by the object classes: embedded
// entities, links, remarks, events, handle, status, and port43.
func (w *walker) objectCommon(oc *rdap.ObjectCommon, parent rdap.ObjectClass) []Checks {
	var subs []Checks

	for i := range oc.Entities {
		subs = append(subs, w.entity(&oc.Entities[i], false))
	}

	if len(oc.Links) > 0 {
		subs = append(subs, w.links(oc.Links, parent))
	}
	if w.selfLinkExpected(parent) && oc.SelfLink() == nil {
		subs = append(subs, Checks{
			Structure: StructLinks,
			Items:     []Item{LinkObjectClassHasNoSelf.item()},
		})
	}

	if len(oc.Remarks) > 0 {
		subs = append(subs, w.noticeList(oc.Remarks, StructRemarks))
	}

	if items := eventChecks(oc.Events); len(items) > 0 {
		subs = append(subs, Checks{Structure: StructEvents, Items: items})
	}

	if oc.Handle != "" && isWhitespaceOrEmpty(oc.Handle) {
		subs = append(subs, Checks{
			Structure: StructHandle,
			Items:     []Item{HandleIsEmpty.item()},
		})
	}

	if oc.Status != nil && anyEmptyOrWhitespace(oc.Status) {
		subs = append(subs, Checks{
			Structure: StructStatus,
			Items:     []Item{StatusIsEmpty.item()},
		})
	}

	if oc.Port43 != "" && isWhitespaceOrEmpty(oc.Port43) {
		subs = append(subs, Checks{
			Structure: StructPort43,
			Items:     []Item{Port43IsEmpty.item()},
		})
	}

	return subs
}

// selfLinkExpected reports whether the object class is expected to carry a
// self link. Nameservers are exempt when embedded: some registries do not
// model them as first-class objects (see the RIR example in RFC 9083), so
// the recommendation only applies to a nameserver that is the top object.
func (w *walker) selfLinkExpected(parent rdap.ObjectClass) bool {
	switch parent {
	case rdap.ClassDomain, rdap.ClassEntity, rdap.ClassAutnum, rdap.ClassIPNetwork:
		return true
	case rdap.ClassNameserver:
		return w.rootClass == rdap.ClassNameserver
	}
	return false
}

func (w *walker) links(links []rdap.Link, parent rdap.ObjectClass) Checks {
	out := Checks{Structure: StructLinks}
	for i := range links {
		out.Sub = append(out.Sub, w.link(&links[i], parent))
	}
	return out
}

func (w *walker) link(l *rdap.Link, parent rdap.ObjectClass) Checks {
	var items []Item
	if l.Value == "" {
		items = append(items, LinkMissingValueProperty.item())
	}
	if l.Href == "" {
		items = append(items, LinkMissingHrefProperty.item())
	}
	switch {
	case l.Rel == "":
		items = append(items, LinkMissingRelProperty.item())
	case l.Rel == "related":
		switch {
		case l.Type == "":
			items = append(items, LinkRelatedHasNoType.item())
		case l.Type != rdapMediaType && w.selfLinkExpected(parent):
			items = append(items, LinkRelatedIsNotRdap.item())
		case l.Type == rdapMediaType && l.Href != "" && !hasRdapPath(l.Href):
			items = append(items, LinkRelatedNotToRdap.item())
		}
	case l.Rel == "self":
		if l.Type == "" {
			items = append(items, LinkSelfHasNoType.item())
		} else if l.Type != rdapMediaType {
			items = append(items, LinkSelfIsNotRdap.item())
		}
	}
	return Checks{Structure: StructLink, Items: items}
}

// hasRdapPath reports whether the URL path looks like an RDAP query path.
func hasRdapPath(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	path := u.Path
	for _, seg := range []string{"/domain/", "/nameserver/", "/entity/", "/autnum/", "/ip/", "/domains", "/nameservers", "/entities", "/help"} {
		if strings.Contains(path, seg) {
			return true
		}
	}
	return false
}

func (w *walker) noticeList(list []rdap.NoticeOrRemark, structure Structure) Checks {
	out := Checks{Structure: structure}
	for i := range list {
		out.Sub = append(out.Sub, w.noticeOrRemark(&list[i]))
	}
	return out
}

func (w *walker) noticeOrRemark(n *rdap.NoticeOrRemark) Checks {
	out := Checks{Structure: StructNoticeOrRemark}
	switch {
	case n.Description == nil:
		out.Items = append(out.Items, NoticeOrRemarkDescriptionIsAbsent.item())
	case n.Description.WasString:
		out.Items = append(out.Items, NoticeOrRemarkDescriptionIsString.item())
	}
	if len(n.Links) > 0 {
		out.Sub = append(out.Sub, w.links(n.Links, rdap.ClassUnknown))
	}
	return out
}

func eventChecks(events []rdap.Event) []Item {
	var items []Item
	for _, e := range events {
		switch {
		case e.EventDate == "":
			items = append(items, EventDateIsAbsent.item())
		default:
			if _, err := time.Parse(time.RFC3339, e.EventDate); err != nil {
				items = append(items, EventDateIsNotRfc3339.item())
			}
		}
		if e.EventAction == "" {
			items = append(items, EventActionIsAbsent.item())
		}
	}
	return items
}

func publicIDChecks(ids []rdap.PublicID) Checks {
	out := Checks{Structure: StructPublicIDs}
	for _, id := range ids {
		if id.Type == "" {
			out.Items = append(out.Items, PublicIDTypeIsAbsent.item())
		}
		if id.Identifier == "" {
			out.Items = append(out.Items, PublicIDIdentifierIsAbsent.item())
		}
	}
	return out
}
