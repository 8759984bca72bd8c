// Package store serves RDAP responses out of memory, loaded from a data
// directory of JSON and template files. Readers operate on an immutable
// snapshot published by atomic pointer swap, so lookups started before a
// reload complete against the generation they began with.
package store

import (
	"net"
	"net/netip"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/yl2chen/cidranger"

	"github.com/datum-labs/rdapkit/rdap"
)

// Store holds the indexed responses for one data directory.
type Store struct {
	dir string
	log *logrus.Logger

	snap atomic.Pointer[snapshot]
	// serializes Load/Update; readers never take it
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *logrus.Logger) Option { return func(s *Store) { s.log = l } }

// New returns a Store for dir. Call Load before serving.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir: dir,
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(newSnapshot())
	return s
}

// snapshot is one immutable generation of the indices.
type snapshot struct {
	domains     map[string]*rdap.Response
	nameservers map[string]*rdap.Response
	entities    map[string]*rdap.Response
	autnums     []autnumRange
	networks    cidranger.Ranger
	netEntries  []*netEntry
	help        *rdap.Response
}

type autnumRange struct {
	start, end uint32
	resp       *rdap.Response
}

type netEntry struct {
	ipNet net.IPNet
	bits  int
	order int
	resp  *rdap.Response
}

func (e *netEntry) Network() net.IPNet { return e.ipNet }

func newSnapshot() *snapshot {
	return &snapshot{
		domains:     make(map[string]*rdap.Response),
		nameservers: make(map[string]*rdap.Response),
		entities:    make(map[string]*rdap.Response),
		networks:    cidranger.NewPCTrieRanger(),
	}
}

// clone copies the indices so Update can insert-or-replace without
// touching the published generation.
func (s *snapshot) clone() *snapshot {
	out := newSnapshot()
	for k, v := range s.domains {
		out.domains[k] = v
	}
	for k, v := range s.nameservers {
		out.nameservers[k] = v
	}
	for k, v := range s.entities {
		out.entities[k] = v
	}
	out.autnums = append(out.autnums, s.autnums...)
	for _, e := range s.netEntries {
		out.insertNetEntry(&netEntry{ipNet: e.ipNet, bits: e.bits, resp: e.resp})
	}
	out.help = s.help
	return out
}

func (s *snapshot) insertNetEntry(e *netEntry) {
	e.order = len(s.netEntries)
	s.netEntries = append(s.netEntries, e)
	_ = s.networks.Insert(e)
}

// Domain looks up a domain by LDH name, case-insensitively.
func (s *Store) Domain(ldh string) *rdap.Response {
	return s.snap.Load().domains[foldKey(ldh)]
}

// Nameserver looks up a nameserver by LDH name, case-insensitively.
func (s *Store) Nameserver(ldh string) *rdap.Response {
	return s.snap.Load().nameservers[foldKey(ldh)]
}

// Entity looks up an entity by handle. Handles match case-sensitively.
func (s *Store) Entity(handle string) *rdap.Response {
	return s.snap.Load().entities[handle]
}

// Autnum returns the narrowest registered range containing n.
func (s *Store) Autnum(n uint32) *rdap.Response {
	var best *autnumRange
	snap := s.snap.Load()
	for i := range snap.autnums {
		r := &snap.autnums[i]
		if n < r.start || n > r.end {
			continue
		}
		if best == nil || r.end-r.start < best.end-best.start {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	return best.resp
}

// NetworkByAddr returns the most specific network containing addr.
func (s *Store) NetworkByAddr(addr netip.Addr) *rdap.Response {
	snap := s.snap.Load()
	containing, err := snap.networks.ContainingNetworks(addrToNetIP(addr))
	if err != nil || len(containing) == 0 {
		return nil
	}
	return pickMostSpecific(containing).resp
}

// NetworkByPrefix returns the most specific network containing the whole
// prefix.
func (s *Store) NetworkByPrefix(p netip.Prefix) *rdap.Response {
	snap := s.snap.Load()
	containing, err := snap.networks.ContainingNetworks(addrToNetIP(p.Masked().Addr()))
	if err != nil {
		return nil
	}
	var candidates []cidranger.RangerEntry
	for _, c := range containing {
		if c.(*netEntry).bits <= p.Bits() {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return pickMostSpecific(candidates).resp
}

func pickMostSpecific(entries []cidranger.RangerEntry) *netEntry {
	best := entries[0].(*netEntry)
	for _, c := range entries[1:] {
		e := c.(*netEntry)
		if e.bits > best.bits || (e.bits == best.bits && e.order < best.order) {
			best = e
		}
	}
	return best
}

// Help returns the stored server help response, or nil.
func (s *Store) Help() *rdap.Response {
	return s.snap.Load().help
}

// Counts returns the number of indexed objects per class.
func (s *Store) Counts() (domains, nameservers, entities, autnums, networks int) {
	snap := s.snap.Load()
	return len(snap.domains), len(snap.nameservers), len(snap.entities),
		len(snap.autnums), len(snap.netEntries)
}

func foldKey(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func addrToNetIP(a netip.Addr) net.IP {
	if a.Is4() {
		v := a.As4()
		return net.IP(v[:])
	}
	v := a.As16()
	return net.IP(v[:])
}

// sortAutnums keeps ranges ordered for deterministic iteration.
func sortAutnums(ranges []autnumRange) {
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].start != ranges[j].start {
			return ranges[i].start < ranges[j].start
		}
		return ranges[i].end < ranges[j].end
	})
}
