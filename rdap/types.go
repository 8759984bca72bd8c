package rdap

import (
	"encoding/json"
	"errors"
)

// Common RDAP data structures per RFC 9083.

// Link represents an RDAP link object.
type Link struct {
	Value    string `json:"value,omitempty"`
	Rel      string `json:"rel,omitempty"`
	Href     string `json:"href,omitempty"`
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	HrefLang string `json:"hreflang,omitempty"`
	Media    string `json:"media,omitempty"`
}

// Event represents an RDAP event object.
type Event struct {
	EventAction string `json:"eventAction"`
	EventDate   string `json:"eventDate"`
	EventActor  string `json:"eventActor,omitempty"`
	Links       []Link `json:"links,omitempty"`
}

// EventNoActor is used where the eventActor member is not present (asEventActor).
type EventNoActor struct {
	EventAction string `json:"eventAction"`
	EventDate   string `json:"eventDate"`
	Links       []Link `json:"links,omitempty"`
}

// NoticeOrRemark covers both notices and remarks; RFC 9083 gives them the
// same shape.
type NoticeOrRemark struct {
	Title       string           `json:"title,omitempty"`
	Type        string           `json:"type,omitempty"`
	Description *DescriptionList `json:"description,omitempty"`
	Links       []Link           `json:"links,omitempty"`
}

// DescriptionList is a notice/remark description. RFC 9083 requires an
// array of strings but some servers send a bare string; both forms decode,
// and WasString records the nonconforming one so the checker can report it.
type DescriptionList struct {
	Values    []string
	WasString bool
}

// Descriptions builds a conforming description list.
func Descriptions(values ...string) *DescriptionList {
	return &DescriptionList{Values: values}
}

func (d *DescriptionList) UnmarshalJSON(b []byte) error {
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		d.Values = arr
		d.WasString = false
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		d.Values = []string{s}
		d.WasString = true
		return nil
	}
	return errors.New("rdap: description is neither a string nor an array of strings")
}

func (d DescriptionList) MarshalJSON() ([]byte, error) {
	if d.WasString && len(d.Values) == 1 {
		return json.Marshal(d.Values[0])
	}
	return json.Marshal(d.Values)
}

// PublicID represents a public identifier associated with an entity or domain.
type PublicID struct {
	Type       string `json:"type,omitempty"`
	Identifier string `json:"identifier,omitempty"`
}

// IPAddresses groups v4 and v6 addresses for nameservers.
type IPAddresses struct {
	V4 []string `json:"v4,omitempty"`
	V6 []string `json:"v6,omitempty"`
}

// ObjectCommon captures members common to all RDAP object classes and
// top-level responses. It is embedded in concrete object types to inline
// these fields in JSON.
type ObjectCommon struct {
	ObjectClassName string           `json:"objectClassName,omitempty"`
	Handle          string           `json:"handle,omitempty"`
	Status          []string         `json:"status,omitempty"`
	Entities        []Entity         `json:"entities,omitempty"`
	Links           []Link           `json:"links,omitempty"`
	Remarks         []NoticeOrRemark `json:"remarks,omitempty"`
	Events          []Event          `json:"events,omitempty"`
	Port43          string           `json:"port43,omitempty"`
	Lang            string           `json:"lang,omitempty"`
	Redacted        []Redacted       `json:"redacted,omitempty"`

	// Top-level-only members.
	RDAPConformance []string         `json:"rdapConformance,omitempty"`
	Notices         []NoticeOrRemark `json:"notices,omitempty"`
}

// SelfLink returns the first link whose rel is "self", or nil.
func (o *ObjectCommon) SelfLink() *Link {
	for i := range o.Links {
		if o.Links[i].Rel == "self" {
			return &o.Links[i]
		}
	}
	return nil
}

// VariantName represents a single variant domain label.
type VariantName struct {
	LDHName     string `json:"ldhName,omitempty"`
	UnicodeName string `json:"unicodeName,omitempty"`
}

// Variant represents a set of IDN variants.
type Variant struct {
	Relation     []string      `json:"relation,omitempty"`
	IDNTable     string        `json:"idnTable,omitempty"`
	VariantNames []VariantName `json:"variantNames,omitempty"`
}

// DSData represents a Delegation Signer record.
type DSData struct {
	KeyTag     int     `json:"keyTag"`
	Algorithm  int     `json:"algorithm"`
	Digest     string  `json:"digest"`
	DigestType int     `json:"digestType"`
	Links      []Link  `json:"links,omitempty"`
	Events     []Event `json:"events,omitempty"`
}

// KeyData represents a DNSKEY record.
type KeyData struct {
	Flags     int     `json:"flags"`
	Protocol  int     `json:"protocol"`
	PublicKey string  `json:"publicKey"`
	Algorithm int     `json:"algorithm"`
	Links     []Link  `json:"links,omitempty"`
	Events    []Event `json:"events,omitempty"`
}

// SecureDNS represents DNSSEC information for a domain.
type SecureDNS struct {
	ZoneSigned       *bool     `json:"zoneSigned,omitempty"`
	DelegationSigned *bool     `json:"delegationSigned,omitempty"`
	MaxSigLife       *int64    `json:"maxSigLife,omitempty"`
	DSData           []DSData  `json:"dsData,omitempty"`
	KeyData          []KeyData `json:"keyData,omitempty"`
}

// Cidr0Cidr is one element of the cidr0_cidrs extension array.
type Cidr0Cidr struct {
	V4Prefix string `json:"v4prefix,omitempty"`
	V6Prefix string `json:"v6prefix,omitempty"`
	Length   *int   `json:"length,omitempty"`
}

// Redacted is an RFC 9537 redaction directive.
type Redacted struct {
	Name     RedactedName `json:"name"`
	Reason   *Description `json:"reason,omitempty"`
	PrePath  string       `json:"prePath,omitempty"`
	PostPath string       `json:"postPath,omitempty"`
	PathLang string       `json:"pathLang,omitempty"`
	// Method is one of removal, emptyValue, partialValue, replacementValue.
	Method       string `json:"method,omitempty"`
	ReplacementP string `json:"replacementPath,omitempty"`
}

// RedactedName holds either the registered type of a redaction or a
// free-form description, per RFC 9537.
type RedactedName struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Description is an RFC 9537 reason, either a description or a type.
type Description struct {
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
}
