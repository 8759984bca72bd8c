package rdap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ObjectClass discriminates the RDAP response forms.
type ObjectClass int

const (
	ClassUnknown ObjectClass = iota
	ClassDomain
	ClassNameserver
	ClassEntity
	ClassAutnum
	ClassIPNetwork
	ClassHelp
	ClassError
	ClassSearchResults
)

func (c ObjectClass) String() string {
	switch c {
	case ClassDomain:
		return "domain"
	case ClassNameserver:
		return "nameserver"
	case ClassEntity:
		return "entity"
	case ClassAutnum:
		return "autnum"
	case ClassIPNetwork:
		return "ip network"
	case ClassHelp:
		return "help"
	case ClassError:
		return "error"
	case ClassSearchResults:
		return "search results"
	default:
		return "unknown"
	}
}

// Parse errors.
var (
	ErrNotJSON            = errors.New("rdap: response body is not JSON")
	ErrNotObject          = errors.New("rdap: response body is not a JSON object")
	ErrUnknownObjectClass = errors.New("rdap: unknown objectClassName")
)

// HTTPData preserves HTTP-level metadata of the exchange that produced a
// response, for use by the conformance checker.
type HTTPData struct {
	StatusCode            int
	ContentType           string
	Location              string
	Scheme                string
	Host                  string
	AccessControlOrigin   string
	AccessControlAllowCrd string
	Retries               int
}

// HTTPDataFromResponse captures checker-relevant metadata from resp.
func HTTPDataFromResponse(resp *http.Response) *HTTPData {
	hd := &HTTPData{
		StatusCode:            resp.StatusCode,
		ContentType:           resp.Header.Get("Content-Type"),
		Location:              resp.Header.Get("Location"),
		AccessControlOrigin:   resp.Header.Get("Access-Control-Allow-Origin"),
		AccessControlAllowCrd: resp.Header.Get("Access-Control-Allow-Credentials"),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		hd.Scheme = resp.Request.URL.Scheme
		hd.Host = resp.Request.URL.Host
	}
	return hd
}

// Response holds a decoded RDAP response plus the raw bytes and HTTP
// metadata. Object is nil only when Class is ClassUnknown.
type Response struct {
	Class    ObjectClass
	Object   Object
	Raw      json.RawMessage
	HTTPData *HTTPData
}

// Domain returns the decoded domain, or nil when the response is another class.
func (r *Response) Domain() *Domain { d, _ := r.Object.(*Domain); return d }

// Nameserver returns the decoded nameserver or nil.
func (r *Response) Nameserver() *Nameserver { n, _ := r.Object.(*Nameserver); return n }

// Entity returns the decoded entity or nil.
func (r *Response) Entity() *Entity { e, _ := r.Object.(*Entity); return e }

// Autnum returns the decoded autnum or nil.
func (r *Response) Autnum() *Autnum { a, _ := r.Object.(*Autnum); return a }

// Network returns the decoded ip network or nil.
func (r *Response) Network() *IPNetwork { n, _ := r.Object.(*IPNetwork); return n }

// Help returns the decoded help response or nil.
func (r *Response) Help() *Help { h, _ := r.Object.(*Help); return h }

// Err returns the decoded error response or nil.
func (r *Response) Err() *Error { e, _ := r.Object.(*Error); return e }

// SearchResults returns the decoded search results or nil.
func (r *Response) SearchResults() *SearchResults { s, _ := r.Object.(*SearchResults); return s }

// Common returns the embedded common members of whatever object the
// response holds, or nil for unknown responses.
func (r *Response) Common() *ObjectCommon {
	switch o := r.Object.(type) {
	case *Domain:
		return &o.ObjectCommon
	case *Nameserver:
		return &o.ObjectCommon
	case *Entity:
		return &o.ObjectCommon
	case *Autnum:
		return &o.ObjectCommon
	case *IPNetwork:
		return &o.ObjectCommon
	case *Help:
		return &o.ObjectCommon
	case *Error:
		return &o.ObjectCommon
	case *SearchResults:
		return &o.ObjectCommon
	}
	return nil
}

// Parse decodes an RDAP response body. Discrimination uses objectClassName
// first; responses without one are recognized by their distinguishing
// members (errorCode, search result arrays) and finally treated as help if
// only notices and conformance are present. A body that is valid JSON but
// matches nothing decodes as ClassUnknown so the checker can still report
// on it.
func Parse(body []byte) (*Response, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		if !json.Valid(body) {
			return nil, ErrNotJSON
		}
		return nil, ErrNotObject
	}

	r := &Response{Raw: append(json.RawMessage(nil), body...)}

	if raw, ok := probe["objectClassName"]; ok {
		var ocn string
		// A non-string objectClassName parses as unknown, not as failure.
		_ = json.Unmarshal(raw, &ocn)
		switch strings.ToLower(ocn) {
		case "domain":
			return decodeAs(r, ClassDomain, &Domain{})
		case "nameserver":
			return decodeAs(r, ClassNameserver, &Nameserver{})
		case "entity":
			return decodeAs(r, ClassEntity, &Entity{})
		case "autnum":
			return decodeAs(r, ClassAutnum, &Autnum{})
		case "ip network":
			return decodeAs(r, ClassIPNetwork, &IPNetwork{})
		default:
			r.Class = ClassUnknown
			return r, nil
		}
	}

	if _, ok := probe["errorCode"]; ok {
		return decodeAs(r, ClassError, &Error{})
	}
	for _, k := range []string{"domainSearchResults", "nameserverSearchResults", "entitySearchResults"} {
		if _, ok := probe[k]; ok {
			return decodeAs(r, ClassSearchResults, &SearchResults{})
		}
	}
	if _, ok := probe["rdapConformance"]; ok {
		return decodeAs(r, ClassHelp, &Help{})
	}
	if _, ok := probe["notices"]; ok {
		return decodeAs(r, ClassHelp, &Help{})
	}

	r.Class = ClassUnknown
	return r, nil
}

func decodeAs(r *Response, class ObjectClass, obj Object) (*Response, error) {
	if err := json.Unmarshal(r.Raw, obj); err != nil {
		return nil, fmt.Errorf("rdap: decoding %s response: %w", class, err)
	}
	r.Class = class
	r.Object = obj
	return r, nil
}

// Serialize encodes the response object back to JSON. Members the structs
// model appear first in declaration order; preserved unknown members follow.
func (r *Response) Serialize() ([]byte, error) {
	if r.Object == nil {
		return append([]byte(nil), r.Raw...), nil
	}
	return json.Marshal(r.Object)
}

// SerializeIndent is Serialize with indentation for human output.
func (r *Response) SerializeIndent() ([]byte, error) {
	b, err := r.Serialize()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
