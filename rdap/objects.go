package rdap

import "encoding/json"

// The five RDAP object classes per RFC 9083, plus help, error, and search
// results. Each class carries an Extensions map for members the structs do
// not model; see extra.go.

// Object is a union interface implemented by all object classes.
type Object interface {
	GetObjectClassName() string
}

// Entity represents the RDAP entity object class.
type Entity struct {
	ObjectCommon
	VCardArray    []any          `json:"vcardArray,omitempty"`
	JSContactCard map[string]any `json:"jscontactCard,omitempty"`
	Roles         []string       `json:"roles,omitempty"`
	PublicIDs     []PublicID     `json:"publicIds,omitempty"`
	AsEventActor  []EventNoActor `json:"asEventActor,omitempty"`
	Networks      []IPNetwork    `json:"networks,omitempty"`
	Autnums       []Autnum       `json:"autnums,omitempty"`
	Extensions    map[string]any `json:"-"`
}

// Nameserver represents the RDAP nameserver object class.
type Nameserver struct {
	ObjectCommon
	LDHName     string         `json:"ldhName,omitempty"`
	UnicodeName string         `json:"unicodeName,omitempty"`
	IPAddresses *IPAddresses   `json:"ipAddresses,omitempty"`
	Extensions  map[string]any `json:"-"`
}

// Domain represents the RDAP domain object class.
type Domain struct {
	ObjectCommon
	LDHName     string         `json:"ldhName,omitempty"`
	UnicodeName string         `json:"unicodeName,omitempty"`
	Variants    []Variant      `json:"variants,omitempty"`
	Nameservers []Nameserver   `json:"nameservers,omitempty"`
	SecureDNS   *SecureDNS     `json:"secureDNS,omitempty"`
	PublicIDs   []PublicID     `json:"publicIds,omitempty"`
	Network     *IPNetwork     `json:"network,omitempty"`
	Extensions  map[string]any `json:"-"`
}

// IPNetwork represents the RDAP ip network object class.
type IPNetwork struct {
	ObjectCommon
	StartAddress string         `json:"startAddress,omitempty"`
	EndAddress   string         `json:"endAddress,omitempty"`
	IPVersion    string         `json:"ipVersion,omitempty"`
	Name         string         `json:"name,omitempty"`
	Type         string         `json:"type,omitempty"`
	Country      string         `json:"country,omitempty"`
	ParentHandle string         `json:"parentHandle,omitempty"`
	Cidr0Cidrs   []Cidr0Cidr    `json:"cidr0_cidrs,omitempty"`
	Extensions   map[string]any `json:"-"`
}

// Autnum represents the RDAP autnum object class.
type Autnum struct {
	ObjectCommon
	StartAutnum *uint32        `json:"startAutnum,omitempty"`
	EndAutnum   *uint32        `json:"endAutnum,omitempty"`
	Name        string         `json:"name,omitempty"`
	Type        string         `json:"type,omitempty"`
	Country     string         `json:"country,omitempty"`
	Extensions  map[string]any `json:"-"`
}

// Help represents a server help response: notices and conformance only.
type Help struct {
	ObjectCommon
	Extensions map[string]any `json:"-"`
}

// Error represents an RDAP error response per RFC 9083 section 6.
type Error struct {
	ObjectCommon
	ErrorCode   *int           `json:"errorCode,omitempty"`
	Title       string         `json:"title,omitempty"`
	Description []string       `json:"description,omitempty"`
	Extensions  map[string]any `json:"-"`
}

// SearchResults represents the three search response forms. Exactly one of
// the result arrays is populated.
type SearchResults struct {
	ObjectCommon
	Domains     []Domain       `json:"domainSearchResults,omitempty"`
	Nameservers []Nameserver   `json:"nameserverSearchResults,omitempty"`
	Entities    []Entity       `json:"entitySearchResults,omitempty"`
	Extensions  map[string]any `json:"-"`
}

// GetObjectClassName returns the object class name for each concrete type.
func (o ObjectCommon) GetObjectClassName() string { return o.ObjectClassName }

// JSON round trip per class. The alias types drop the custom methods so the
// default codec can be reused inside them.

func (e *Entity) UnmarshalJSON(b []byte) error {
	type alias Entity
	if err := json.Unmarshal(b, (*alias)(e)); err != nil {
		return err
	}
	e.Extensions = extraMembers(b, e)
	return nil
}

func (e Entity) MarshalJSON() ([]byte, error) {
	type alias Entity
	b, err := json.Marshal(alias(e))
	if err != nil {
		return nil, err
	}
	return spliceExtra(b, e.Extensions)
}

func (n *Nameserver) UnmarshalJSON(b []byte) error {
	type alias Nameserver
	if err := json.Unmarshal(b, (*alias)(n)); err != nil {
		return err
	}
	n.Extensions = extraMembers(b, n)
	return nil
}

func (n Nameserver) MarshalJSON() ([]byte, error) {
	type alias Nameserver
	b, err := json.Marshal(alias(n))
	if err != nil {
		return nil, err
	}
	return spliceExtra(b, n.Extensions)
}

func (d *Domain) UnmarshalJSON(b []byte) error {
	type alias Domain
	if err := json.Unmarshal(b, (*alias)(d)); err != nil {
		return err
	}
	d.Extensions = extraMembers(b, d)
	return nil
}

func (d Domain) MarshalJSON() ([]byte, error) {
	type alias Domain
	b, err := json.Marshal(alias(d))
	if err != nil {
		return nil, err
	}
	return spliceExtra(b, d.Extensions)
}

func (n *IPNetwork) UnmarshalJSON(b []byte) error {
	type alias IPNetwork
	if err := json.Unmarshal(b, (*alias)(n)); err != nil {
		return err
	}
	n.Extensions = extraMembers(b, n)
	return nil
}

func (n IPNetwork) MarshalJSON() ([]byte, error) {
	type alias IPNetwork
	b, err := json.Marshal(alias(n))
	if err != nil {
		return nil, err
	}
	return spliceExtra(b, n.Extensions)
}

func (a *Autnum) UnmarshalJSON(b []byte) error {
	type alias Autnum
	if err := json.Unmarshal(b, (*alias)(a)); err != nil {
		return err
	}
	a.Extensions = extraMembers(b, a)
	return nil
}

func (a Autnum) MarshalJSON() ([]byte, error) {
	type alias Autnum
	b, err := json.Marshal(alias(a))
	if err != nil {
		return nil, err
	}
	return spliceExtra(b, a.Extensions)
}

func (h *Help) UnmarshalJSON(b []byte) error {
	type alias Help
	if err := json.Unmarshal(b, (*alias)(h)); err != nil {
		return err
	}
	h.Extensions = extraMembers(b, h)
	return nil
}

func (h Help) MarshalJSON() ([]byte, error) {
	type alias Help
	b, err := json.Marshal(alias(h))
	if err != nil {
		return nil, err
	}
	return spliceExtra(b, h.Extensions)
}

func (e *Error) UnmarshalJSON(b []byte) error {
	type alias Error
	if err := json.Unmarshal(b, (*alias)(e)); err != nil {
		return err
	}
	e.Extensions = extraMembers(b, e)
	return nil
}

func (e Error) MarshalJSON() ([]byte, error) {
	type alias Error
	b, err := json.Marshal(alias(e))
	if err != nil {
		return nil, err
	}
	return spliceExtra(b, e.Extensions)
}

func (s *SearchResults) UnmarshalJSON(b []byte) error {
	type alias SearchResults
	if err := json.Unmarshal(b, (*alias)(s)); err != nil {
		return err
	}
	s.Extensions = extraMembers(b, s)
	return nil
}

func (s SearchResults) MarshalJSON() ([]byte, error) {
	type alias SearchResults
	b, err := json.Marshal(alias(s))
	if err != nil {
		return nil, err
	}
	return spliceExtra(b, s.Extensions)
}
