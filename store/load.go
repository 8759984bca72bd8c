package store

import (
	"encoding/json"
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"github.com/datum-labs/rdapkit/rdap"
)

// Data directory contents:
//
//	*.json      one RDAP object, indexed by its objectClassName
//	*.template  {"<class>": <body>, "ids": [<id-spec>, ...]} fanned out
//	            to one object per id-spec
//
// A template body may also be an RDAP error object; it is then registered
// under each id unchanged, which is how stored redirects (errorCode 307)
// and per-name error answers are expressed.

// Load scans the data directory and publishes a fresh snapshot, replacing
// whatever was loaded before.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := newSnapshot()
	if err := s.scanInto(snap); err != nil {
		return err
	}
	sortAutnums(snap.autnums)
	s.snap.Store(snap)
	return nil
}

// Update rescans the directory and merges into a copy of the current
// snapshot, insert-or-replace per key. Objects removed from disk survive
// until the next Load.
func (s *Store) Update() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snap.Load().clone()
	if err := s.scanInto(snap); err != nil {
		return err
	}
	sortAutnums(snap.autnums)
	s.snap.Store(snap)
	return nil
}

func (s *Store) scanInto(snap *snapshot) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("store: reading data directory: %w", err)
	}
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		path := filepath.Join(s.dir, name)
		switch {
		case strings.HasSuffix(name, ".json"):
			if err := s.loadObjectFile(snap, path); err != nil {
				return err
			}
		case strings.HasSuffix(name, ".template"):
			if err := s.loadTemplateFile(snap, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) loadObjectFile(snap *snapshot, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("store: %s: %w", path, err)
	}
	r, err := rdap.Parse(b)
	if err != nil {
		return fmt.Errorf("store: %s: %w", path, err)
	}
	switch r.Class {
	case rdap.ClassDomain:
		snap.domains[foldKey(r.Domain().LDHName)] = r
	case rdap.ClassNameserver:
		snap.nameservers[foldKey(r.Nameserver().LDHName)] = r
	case rdap.ClassEntity:
		snap.entities[r.Entity().Handle] = r
	case rdap.ClassAutnum:
		a := r.Autnum()
		if a.StartAutnum == nil || a.EndAutnum == nil {
			return fmt.Errorf("store: %s: autnum without startAutnum/endAutnum", path)
		}
		snap.autnums = append(snap.autnums, autnumRange{start: *a.StartAutnum, end: *a.EndAutnum, resp: r})
	case rdap.ClassIPNetwork:
		n := r.Network()
		if err := indexNetworkRange(snap, n.StartAddress, n.EndAddress, r); err != nil {
			return fmt.Errorf("store: %s: %w", path, err)
		}
	case rdap.ClassHelp:
		snap.help = r
	default:
		s.log.WithField("file", path).Warn("skipping file with unindexable object class")
	}
	return nil
}

// template id-spec forms, one per class
type domainID struct {
	LDHName     string `json:"ldhName"`
	UnicodeName string `json:"unicodeName,omitempty"`
}

type entityID struct {
	Handle string `json:"handle"`
}

type autnumID struct {
	Start *uint32 `json:"start_autnum"`
	End   *uint32 `json:"end_autnum"`
}

type networkID struct {
	ID json.RawMessage `json:"networkId"`
}

func (s *Store) loadTemplateFile(snap *snapshot, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("store: %s: %w", path, err)
	}
	var tpl map[string]json.RawMessage
	if err := json.Unmarshal(b, &tpl); err != nil {
		return fmt.Errorf("store: %s: %w", path, err)
	}
	ids, ok := tpl["ids"]
	if !ok {
		return fmt.Errorf("store: %s: template without ids", path)
	}

	var class string
	var body json.RawMessage
	for k, v := range tpl {
		if k == "ids" {
			continue
		}
		if class != "" {
			return fmt.Errorf("store: %s: template names more than one class", path)
		}
		class, body = k, v
	}
	if class == "" {
		return fmt.Errorf("store: %s: template without a class member", path)
	}

	// an error body fans out unchanged under each id
	errResp, err := parseTemplateError(body)
	if err != nil {
		return fmt.Errorf("store: %s: %w", path, err)
	}

	// Every id decodes its own object from the template body, so no id
	// sees another id's fields. The id-spec then owns the identity
	// members outright: ldhName/unicodeName (or handle, range, networkId)
	// from the body are placeholders and never survive the fanout, and an
	// id that omits unicodeName produces an object without one.
	fan := func(fn func(id json.RawMessage) error) error {
		var raws []json.RawMessage
		if err := json.Unmarshal(ids, &raws); err != nil {
			return fmt.Errorf("store: %s: ids: %w", path, err)
		}
		for _, raw := range raws {
			if err := fn(raw); err != nil {
				return fmt.Errorf("store: %s: %w", path, err)
			}
		}
		return nil
	}

	switch class {
	case "domain", "nameserver":
		return fan(func(raw json.RawMessage) error {
			var id domainID
			if err := json.Unmarshal(raw, &id); err != nil {
				return err
			}
			if id.LDHName == "" {
				return fmt.Errorf("%s id without ldhName", class)
			}
			key := foldKey(id.LDHName)
			if errResp != nil {
				if class == "domain" {
					snap.domains[key] = errResp
				} else {
					snap.nameservers[key] = errResp
				}
				return nil
			}
			if class == "domain" {
				obj := &rdap.Domain{}
				if err := json.Unmarshal(body, obj); err != nil {
					return err
				}
				obj.LDHName = id.LDHName
				obj.UnicodeName = id.UnicodeName
				snap.domains[key] = objectResponse(rdap.ClassDomain, obj, body)
				return nil
			}
			obj := &rdap.Nameserver{}
			if err := json.Unmarshal(body, obj); err != nil {
				return err
			}
			obj.LDHName = id.LDHName
			obj.UnicodeName = id.UnicodeName
			snap.nameservers[key] = objectResponse(rdap.ClassNameserver, obj, body)
			return nil
		})
	case "entity":
		return fan(func(raw json.RawMessage) error {
			var id entityID
			if err := json.Unmarshal(raw, &id); err != nil {
				return err
			}
			if id.Handle == "" {
				return fmt.Errorf("entity id without handle")
			}
			if errResp != nil {
				snap.entities[id.Handle] = errResp
				return nil
			}
			obj := &rdap.Entity{}
			if err := json.Unmarshal(body, obj); err != nil {
				return err
			}
			obj.Handle = id.Handle
			snap.entities[id.Handle] = objectResponse(rdap.ClassEntity, obj, body)
			return nil
		})
	case "autnum":
		return fan(func(raw json.RawMessage) error {
			var id autnumID
			if err := json.Unmarshal(raw, &id); err != nil {
				return err
			}
			if id.Start == nil || id.End == nil {
				return fmt.Errorf("autnum id without start_autnum/end_autnum")
			}
			rng := autnumRange{start: *id.Start, end: *id.End}
			if errResp != nil {
				rng.resp = errResp
			} else {
				obj := &rdap.Autnum{}
				if err := json.Unmarshal(body, obj); err != nil {
					return err
				}
				obj.StartAutnum, obj.EndAutnum = id.Start, id.End
				rng.resp = objectResponse(rdap.ClassAutnum, obj, body)
			}
			snap.autnums = append(snap.autnums, rng)
			return nil
		})
	case "ip", "network":
		return fan(func(raw json.RawMessage) error {
			var id networkID
			if err := json.Unmarshal(raw, &id); err != nil {
				return err
			}
			start, end, err := networkIDRange(id.ID)
			if err != nil {
				return err
			}
			if errResp != nil {
				return indexNetworkRange(snap, start.String(), end.String(), errResp)
			}
			obj := &rdap.IPNetwork{}
			if err := json.Unmarshal(body, obj); err != nil {
				return err
			}
			obj.StartAddress = start.String()
			obj.EndAddress = end.String()
			if start.Is4() {
				obj.IPVersion = "v4"
			} else {
				obj.IPVersion = "v6"
			}
			return indexNetworkRange(snap, obj.StartAddress, obj.EndAddress,
				objectResponse(rdap.ClassIPNetwork, obj, body))
		})
	default:
		return fmt.Errorf("store: %s: unknown template class %q", path, class)
	}
}

// parseTemplateError returns the parsed response when the template body is
// an RDAP error object, nil when it is a regular object body.
func parseTemplateError(body json.RawMessage) (*rdap.Response, error) {
	var probe struct {
		ErrorCode *int `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, err
	}
	if probe.ErrorCode == nil {
		return nil, nil
	}
	return rdap.Parse(body)
}

func objectResponse(class rdap.ObjectClass, obj rdap.Object, raw json.RawMessage) *rdap.Response {
	return &rdap.Response{Class: class, Object: obj, Raw: append(json.RawMessage(nil), raw...)}
}

// networkIDRange resolves the two networkId forms to an address range.
func networkIDRange(raw json.RawMessage) (start, end netip.Addr, err error) {
	var cidr string
	if json.Unmarshal(raw, &cidr) == nil {
		p, perr := netip.ParsePrefix(cidr)
		if perr != nil {
			return start, end, fmt.Errorf("networkId %q: %w", cidr, perr)
		}
		p = p.Masked()
		return p.Addr(), lastAddr(p), nil
	}
	var rng struct {
		StartAddress string `json:"startAddress"`
		EndAddress   string `json:"endAddress"`
	}
	if err := json.Unmarshal(raw, &rng); err != nil {
		return start, end, fmt.Errorf("networkId: %w", err)
	}
	start, err = netip.ParseAddr(rng.StartAddress)
	if err != nil {
		return start, end, fmt.Errorf("networkId startAddress: %w", err)
	}
	end, err = netip.ParseAddr(rng.EndAddress)
	if err != nil {
		return start, end, fmt.Errorf("networkId endAddress: %w", err)
	}
	return start, end, nil
}

// indexNetworkRange splits [start,end] into covering CIDR blocks and
// inserts each into the prefix trie with the shared response.
func indexNetworkRange(snap *snapshot, startStr, endStr string, resp *rdap.Response) error {
	start, err := netip.ParseAddr(startStr)
	if err != nil {
		return fmt.Errorf("startAddress %q: %w", startStr, err)
	}
	end, err := netip.ParseAddr(endStr)
	if err != nil {
		return fmt.Errorf("endAddress %q: %w", endStr, err)
	}
	if start.Is4() != end.Is4() || end.Less(start) {
		return fmt.Errorf("invalid address range %s-%s", startStr, endStr)
	}
	for _, p := range rangePrefixes(start, end) {
		bits := p.Bits()
		snap.insertNetEntry(&netEntry{
			ipNet: net.IPNet{IP: addrToNetIP(p.Addr()), Mask: net.CIDRMask(bits, p.Addr().BitLen())},
			bits:  bits,
			resp:  resp,
		})
	}
	return nil
}

// rangePrefixes decomposes an inclusive address range into the minimal
// list of aligned CIDR blocks covering it.
func rangePrefixes(start, end netip.Addr) []netip.Prefix {
	var out []netip.Prefix
	for start.Compare(end) <= 0 {
		bits := start.BitLen()
		p := bits
		for p > 0 {
			cand, err := start.Prefix(p - 1)
			if err != nil || cand.Addr() != start {
				break
			}
			if lastAddr(cand).Compare(end) > 0 {
				break
			}
			p--
		}
		pfx, err := start.Prefix(p)
		if err != nil {
			break
		}
		out = append(out, pfx)
		last := lastAddr(pfx)
		if last.Compare(end) >= 0 || !last.Next().IsValid() {
			break
		}
		start = last.Next()
	}
	return out
}

// lastAddr returns the highest address inside the prefix.
func lastAddr(p netip.Prefix) netip.Addr {
	if p.Addr().Is4() {
		a := p.Addr().As4()
		for i := p.Bits(); i < 32; i++ {
			a[i/8] |= 1 << (7 - i%8)
		}
		return netip.AddrFrom4(a)
	}
	a := p.Addr().As16()
	for i := p.Bits(); i < 128; i++ {
		a[i/8] |= 1 << (7 - i%8)
	}
	return netip.AddrFrom16(a)
}
