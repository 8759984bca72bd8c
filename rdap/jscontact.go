package rdap

import "strconv"

// JSContact (RFC 9553) conversion. The mapping is defined at Contact
// granularity; jCard properties with no JSContact analog are dropped
// without error.

// JSContactMode selects how entities are converted.
type JSContactMode int

const (
	// JSContactNone leaves entities untouched.
	JSContactNone JSContactMode = iota
	// JSContactAlso adds a jscontactCard member next to vcardArray.
	JSContactAlso
	// JSContactOnly replaces vcardArray with a jscontactCard member.
	JSContactOnly
)

// ParseJSContactMode maps the none|also|only configuration values.
func ParseJSContactMode(s string) JSContactMode {
	switch s {
	case "also":
		return JSContactAlso
	case "only":
		return JSContactOnly
	default:
		return JSContactNone
	}
}

// ToJSContact maps a Contact onto a JSContact Card object.
func (c *Contact) ToJSContact() map[string]any {
	card := map[string]any{
		"@type":   "Card",
		"version": "2.0",
	}
	if c.Kind != "" {
		card["kind"] = c.Kind
	}
	if len(c.Langs) > 0 {
		card["language"] = c.Langs[0].Tag
	}
	if c.FullName != "" || c.NameParts != nil {
		name := map[string]any{}
		if c.FullName != "" {
			name["full"] = c.FullName
		}
		if np := c.NameParts; np != nil {
			var comps []any
			addComp := func(kind string, vals []string) {
				for _, v := range vals {
					comps = append(comps, map[string]any{"kind": kind, "value": v})
				}
			}
			addComp("surname", np.Surnames)
			addComp("given", np.Givens)
			addComp("given2", np.Middles)
			addComp("title", np.Prefixes)
			addComp("credential", np.Suffixes)
			if comps != nil {
				name["components"] = comps
			}
		}
		card["name"] = name
	}
	if len(c.Organizations) > 0 {
		orgs := map[string]any{}
		for i, o := range c.Organizations {
			orgs[orgKey(i)] = map[string]any{"@type": "Organization", "name": o}
		}
		card["organizations"] = orgs
	}
	if len(c.Addresses) > 0 {
		addrs := map[string]any{}
		for i, a := range c.Addresses {
			addrs[addrKey(i)] = jsAddress(a)
		}
		card["addresses"] = addrs
	}
	if len(c.Phones) > 0 {
		phones := map[string]any{}
		for i, p := range c.Phones {
			entry := map[string]any{"@type": "Phone", "number": p.Number}
			features := map[string]any{}
			for _, f := range p.Features {
				features[f] = true
			}
			if len(features) > 0 {
				entry["features"] = features
			}
			phones[phoneKey(i)] = entry
		}
		card["phones"] = phones
	}
	if len(c.Emails) > 0 {
		emails := map[string]any{}
		for i, e := range c.Emails {
			emails[emailKey(i)] = map[string]any{"@type": "EmailAddress", "address": e.Address}
		}
		card["emails"] = emails
	}
	if len(c.URLs) > 0 || len(c.ContactURIs) > 0 {
		links := map[string]any{}
		n := 0
		for _, u := range c.URLs {
			links[linkKey(n)] = map[string]any{"@type": "Link", "uri": u}
			n++
		}
		for _, u := range c.ContactURIs {
			links[linkKey(n)] = map[string]any{"@type": "Link", "kind": "contact", "uri": u}
			n++
		}
		card["links"] = links
	}
	if len(c.Langs) > 0 {
		prefs := map[string]any{}
		for _, l := range c.Langs {
			entry := map[string]any{"@type": "LanguagePref"}
			if l.Preference > 0 {
				entry["pref"] = l.Preference
			}
			prefs[l.Tag] = entry
		}
		card["preferredLanguages"] = prefs
	}
	return card
}

func jsAddress(a PostalAddress) map[string]any {
	addr := map[string]any{"@type": "Address"}
	var comps []any
	addComp := func(kind, val string) {
		if val != "" {
			comps = append(comps, map[string]any{"kind": kind, "value": val})
		}
	}
	addComp("postOfficeBox", a.POBox)
	addComp("apartment", a.ExtAddress)
	addComp("name", a.Street)
	addComp("locality", a.Locality)
	addComp("region", a.Region)
	addComp("postcode", a.PostalCode)
	if comps != nil {
		addr["components"] = comps
	}
	if a.Country != "" {
		if len(a.Country) == 2 {
			addr["countryCode"] = a.Country
		} else {
			addComp("country", a.Country)
			addr["components"] = comps
		}
	}
	if a.FullAddress != "" {
		addr["full"] = a.FullAddress
	}
	return addr
}

func orgKey(i int) string   { return key("org", i) }
func addrKey(i int) string  { return key("addr", i) }
func phoneKey(i int) string { return key("phone", i) }
func emailKey(i int) string { return key("email", i) }
func linkKey(i int) string  { return key("link", i) }

func key(prefix string, i int) string {
	if i == 0 {
		return prefix
	}
	return prefix + "-" + strconv.Itoa(i)
}

// ConvertJSContact applies the conversion mode to a single entity in place.
func (e *Entity) ConvertJSContact(mode JSContactMode) {
	if mode == JSContactNone || len(e.VCardArray) == 0 {
		return
	}
	if e.JSContactCard == nil {
		contact, err := FromVcard(e.VCardArray)
		if err != nil {
			return
		}
		e.JSContactCard = contact.ToJSContact()
	}
	if mode == JSContactOnly {
		e.VCardArray = nil
	}
	// advertise the extension once converted
	hasExt := false
	for _, ext := range e.RDAPConformance {
		if ext == "jscontact" {
			hasExt = true
		}
	}
	if !hasExt && len(e.RDAPConformance) > 0 {
		e.RDAPConformance = append(e.RDAPConformance, "jscontact")
	}
}

// ConvertEntitiesJSContact walks every entity reachable from the response
// object and applies the conversion mode.
func (r *Response) ConvertEntitiesJSContact(mode JSContactMode) {
	if mode == JSContactNone || r.Object == nil {
		return
	}
	switch o := r.Object.(type) {
	case *Entity:
		o.ConvertJSContact(mode)
		convertEntities(o.Entities, mode)
	case *Domain:
		convertEntities(o.Entities, mode)
		for i := range o.Nameservers {
			convertEntities(o.Nameservers[i].Entities, mode)
		}
	case *Nameserver:
		convertEntities(o.Entities, mode)
	case *Autnum:
		convertEntities(o.Entities, mode)
	case *IPNetwork:
		convertEntities(o.Entities, mode)
	case *SearchResults:
		for i := range o.Entities {
			o.Entities[i].ConvertJSContact(mode)
			convertEntities(o.Entities[i].Entities, mode)
		}
		for i := range o.Domains {
			convertEntities(o.Domains[i].Entities, mode)
		}
		for i := range o.Nameservers {
			convertEntities(o.Nameservers[i].Entities, mode)
		}
	}
}

func convertEntities(entities []Entity, mode JSContactMode) {
	for i := range entities {
		entities[i].ConvertJSContact(mode)
		convertEntities(entities[i].Entities, mode)
	}
}
