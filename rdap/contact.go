package rdap

import (
	"errors"
	"strconv"
	"strings"
)

// Contact is an RDAP-independent representation of the person or
// organization behind an entity. It bridges jCard (RFC 7095) and JSContact
// (RFC 9553) so callers never have to touch the raw vcardArray token
// stream. The jCard→Contact direction is lossy: property ordering and
// parameters the model does not carry are dropped, except for whole
// properties the model does not recognize, which pass through in Extras.
type Contact struct {
	FullName      string
	Kind          string
	NameParts     *NameParts
	NickNames     []string
	Titles        []string
	Roles         []string
	Organizations []string
	Addresses     []PostalAddress
	Phones        []Phone
	Emails        []Email
	Langs         []Lang
	URLs          []string
	ContactURIs   []string

	// Extras holds jCard properties FromVcard did not recognize, each in
	// raw [name, params, type, value] form. ToVcard emits them verbatim.
	Extras []any
}

// NameParts are the components of the vCard "n" property.
type NameParts struct {
	Surnames []string
	Givens   []string
	Middles  []string
	Prefixes []string
	Suffixes []string
}

// PostalAddress is the structured 7-component vCard address plus the label
// parameter when present.
type PostalAddress struct {
	POBox       string
	ExtAddress  string
	Street      string
	Locality    string
	Region      string
	PostalCode  string
	Country     string
	FullAddress string // the "label" parameter, a preformatted address
	Contexts    []string
	Preference  int
}

// Phone is a vCard tel property. Features carries the non-context type
// values (voice, fax, cell, ...).
type Phone struct {
	Number     string
	Features   []string
	Contexts   []string
	Preference int
}

// IsFax reports whether the phone's features include fax.
func (p Phone) IsFax() bool {
	for _, f := range p.Features {
		if strings.EqualFold(f, "fax") {
			return true
		}
	}
	return false
}

// Email is a vCard email property.
type Email struct {
	Address    string
	Contexts   []string
	Preference int
}

// Lang is a preferred language with its ordinal preference (0 = unset).
type Lang struct {
	Tag        string
	Preference int
}

// IsEmpty reports whether the contact carries no data at all.
func (c *Contact) IsEmpty() bool {
	return c.FullName == "" && c.Kind == "" && c.NameParts == nil &&
		len(c.NickNames) == 0 && len(c.Titles) == 0 && len(c.Roles) == 0 &&
		len(c.Organizations) == 0 && len(c.Addresses) == 0 &&
		len(c.Phones) == 0 && len(c.Emails) == 0 && len(c.Langs) == 0 &&
		len(c.URLs) == 0 && len(c.ContactURIs) == 0 && len(c.Extras) == 0
}

// ErrNotVcard reports a vcardArray that is not ["vcard", [props...]].
var ErrNotVcard = errors.New("rdap: vcardArray is not a jCard")

// Parameter values that designate a delivery context rather than a feature.
var vcardContexts = map[string]bool{
	"home": true, "work": true, "office": true,
	"private": true, "mobile": true, "cell": true,
}

// FromVcard builds a Contact from a jCard two-element array.
func FromVcard(vcardArray []any) (*Contact, error) {
	if len(vcardArray) < 2 {
		return nil, ErrNotVcard
	}
	tag, ok := vcardArray[0].(string)
	if !ok || !strings.EqualFold(tag, "vcard") {
		return nil, ErrNotVcard
	}
	props, ok := vcardArray[1].([]any)
	if !ok {
		return nil, ErrNotVcard
	}

	c := &Contact{}
	for _, p := range props {
		prop, ok := p.([]any)
		if !ok || len(prop) < 4 {
			continue
		}
		name, ok := prop[0].(string)
		if !ok {
			continue
		}
		params, _ := prop[1].(map[string]any)
		value := prop[3]

		switch strings.ToLower(name) {
		case "version":
			// implied by the jCard container
		case "fn":
			c.FullName, _ = value.(string)
		case "kind":
			if s, ok := value.(string); ok {
				c.Kind = normalizeKind(s)
			}
		case "n":
			c.NameParts = nameParts(value)
		case "nickname":
			if s, ok := value.(string); ok {
				c.NickNames = append(c.NickNames, s)
			}
		case "title":
			if s, ok := value.(string); ok {
				c.Titles = append(c.Titles, s)
			}
		case "role":
			if s, ok := value.(string); ok {
				c.Roles = append(c.Roles, s)
			}
		case "org":
			if s, ok := value.(string); ok {
				c.Organizations = append(c.Organizations, s)
			}
		case "adr":
			c.Addresses = append(c.Addresses, postalAddress(params, value))
		case "tel":
			if s, ok := value.(string); ok {
				c.Phones = append(c.Phones, Phone{
					Number:     s,
					Features:   paramTypes(params, false),
					Contexts:   paramTypes(params, true),
					Preference: paramPref(params),
				})
			}
		case "email":
			if s, ok := value.(string); ok {
				c.Emails = append(c.Emails, Email{
					Address:    s,
					Contexts:   paramTypes(params, true),
					Preference: paramPref(params),
				})
			}
		case "lang":
			if s, ok := value.(string); ok {
				c.Langs = append(c.Langs, Lang{Tag: s, Preference: paramPref(params)})
			}
		case "url":
			if s, ok := value.(string); ok {
				c.URLs = append(c.URLs, s)
			}
		case "contact-uri":
			if s, ok := value.(string); ok {
				c.ContactURIs = append(c.ContactURIs, s)
			}
		default:
			c.Extras = append(c.Extras, prop)
		}
	}
	return c, nil
}

func normalizeKind(s string) string {
	k := strings.ToLower(strings.TrimSpace(s))
	switch k {
	case "individual", "org", "group", "location", "application", "device":
		return k
	case "organization":
		return "org"
	default:
		return s
	}
}

func nameParts(value any) *NameParts {
	arr, ok := value.([]any)
	if !ok || len(arr) == 0 {
		return nil
	}
	get := func(i int) []string {
		if i >= len(arr) {
			return nil
		}
		switch v := arr[i].(type) {
		case string:
			if v == "" {
				return nil
			}
			return []string{v}
		case []any:
			var out []string
			for _, x := range v {
				if s, ok := x.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			return out
		}
		return nil
	}
	np := &NameParts{
		Surnames: get(0),
		Givens:   get(1),
		Middles:  get(2),
		Prefixes: get(3),
		Suffixes: get(4),
	}
	if np.Surnames == nil && np.Givens == nil && np.Middles == nil &&
		np.Prefixes == nil && np.Suffixes == nil {
		return nil
	}
	return np
}

// postalAddress maps an adr value to the 7-component form. A scalar value
// lands in Street with the other components empty.
func postalAddress(params map[string]any, value any) PostalAddress {
	pa := PostalAddress{
		Contexts:   paramTypes(params, true),
		Preference: paramPref(params),
	}
	if params != nil {
		if label, ok := params["label"].(string); ok {
			pa.FullAddress = label
		}
	}
	switch v := value.(type) {
	case string:
		pa.Street = v
	case []any:
		comp := func(i int) string {
			if i >= len(v) {
				return ""
			}
			switch x := v[i].(type) {
			case string:
				return x
			case []any:
				var parts []string
				for _, e := range x {
					if s, ok := e.(string); ok && s != "" {
						parts = append(parts, s)
					}
				}
				return strings.Join(parts, ", ")
			}
			return ""
		}
		pa.POBox = comp(0)
		pa.ExtAddress = comp(1)
		pa.Street = comp(2)
		pa.Locality = comp(3)
		pa.Region = comp(4)
		pa.PostalCode = comp(5)
		pa.Country = comp(6)
	}
	return pa
}

// paramTypes splits the "type" parameter into contexts (home, work, ...)
// or features (everything else) depending on wantContexts.
func paramTypes(params map[string]any, wantContexts bool) []string {
	if params == nil {
		return nil
	}
	raw, ok := params["type"]
	if !ok {
		return nil
	}
	var vals []string
	switch t := raw.(type) {
	case string:
		vals = []string{t}
	case []any:
		for _, x := range t {
			if s, ok := x.(string); ok {
				vals = append(vals, s)
			}
		}
	}
	var out []string
	for _, v := range vals {
		v = strings.ToLower(v)
		if vcardContexts[v] == wantContexts {
			out = append(out, v)
		}
	}
	return out
}

func paramPref(params map[string]any) int {
	if params == nil {
		return 0
	}
	switch p := params["pref"].(type) {
	case string:
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	case float64:
		return int(p)
	}
	return 0
}

// ToVcard serializes the Contact back to a jCard array. Properties are
// emitted in a fixed order; Extras are appended verbatim at the end.
func (c *Contact) ToVcard() []any {
	props := []any{
		[]any{"version", map[string]any{}, "text", "4.0"},
	}
	add := func(name string, params map[string]any, typ string, value any) {
		if params == nil {
			params = map[string]any{}
		}
		props = append(props, []any{name, params, typ, value})
	}

	if c.FullName != "" {
		add("fn", nil, "text", c.FullName)
	}
	if c.NameParts != nil {
		np := c.NameParts
		comp := func(parts []string) any {
			switch len(parts) {
			case 0:
				return ""
			case 1:
				return parts[0]
			default:
				out := make([]any, len(parts))
				for i, p := range parts {
					out[i] = p
				}
				return out
			}
		}
		add("n", nil, "text", []any{
			comp(np.Surnames), comp(np.Givens), comp(np.Middles),
			comp(np.Prefixes), comp(np.Suffixes),
		})
	}
	if c.Kind != "" {
		add("kind", nil, "text", c.Kind)
	}
	for _, n := range c.NickNames {
		add("nickname", nil, "text", n)
	}
	for _, t := range c.Titles {
		add("title", nil, "text", t)
	}
	for _, r := range c.Roles {
		add("role", nil, "text", r)
	}
	for _, o := range c.Organizations {
		add("org", nil, "text", o)
	}
	for _, l := range c.Langs {
		add("lang", prefParams(nil, l.Preference), "language-tag", l.Tag)
	}
	for _, a := range c.Addresses {
		params := prefParams(typeParams(a.Contexts, nil), a.Preference)
		if a.FullAddress != "" {
			if params == nil {
				params = map[string]any{}
			}
			params["label"] = a.FullAddress
		}
		add("adr", params, "text", []any{
			a.POBox, a.ExtAddress, a.Street, a.Locality,
			a.Region, a.PostalCode, a.Country,
		})
	}
	for _, p := range c.Phones {
		add("tel", prefParams(typeParams(p.Contexts, p.Features), p.Preference), "uri", p.Number)
	}
	for _, e := range c.Emails {
		add("email", prefParams(typeParams(e.Contexts, nil), e.Preference), "text", e.Address)
	}
	for _, u := range c.URLs {
		add("url", nil, "uri", u)
	}
	for _, u := range c.ContactURIs {
		add("contact-uri", nil, "uri", u)
	}
	props = append(props, c.Extras...)

	return []any{"vcard", props}
}

func typeParams(contexts, features []string) map[string]any {
	all := make([]string, 0, len(contexts)+len(features))
	all = append(all, contexts...)
	all = append(all, features...)
	switch len(all) {
	case 0:
		return nil
	case 1:
		return map[string]any{"type": all[0]}
	default:
		out := make([]any, len(all))
		for i, s := range all {
			out[i] = s
		}
		return map[string]any{"type": out}
	}
}

func prefParams(params map[string]any, pref int) map[string]any {
	if pref == 0 {
		return params
	}
	if params == nil {
		params = map[string]any{}
	}
	params["pref"] = strconv.Itoa(pref)
	return params
}
