// Package server dispatches RDAP HTTP requests over an in-memory store,
// or answers redirects computed from the IANA bootstrap registries when
// running as a bootstrap server.
package server

import (
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/datum-labs/rdapkit/rdap"
	"github.com/datum-labs/rdapkit/store"
)

const rdapContentType = "application/rdap+json; charset=utf-8"

// DefaultPrefix is the path prefix the RDAP routes mount under.
const DefaultPrefix = "/rdap"

// Options configure the dispatcher.
type Options struct {
	// Prefix is the mount path; empty means DefaultPrefix.
	Prefix string
	// JSContact selects the conversion applied to every entity in a
	// response before serialization.
	JSContact rdap.JSContactMode

	DomainSearchByName     bool
	NameserverSearchByName bool
	NameserverSearchByIP   bool

	Log *logrus.Logger
}

// Handler serves the RDAP routes out of a store.
type Handler struct {
	store *store.Store
	opts  Options
	log   *logrus.Logger
}

// New builds the dispatcher over st.
func New(st *store.Store, opts Options) *Handler {
	opts.Prefix = normalizePrefix(opts.Prefix)
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{store: st, opts: opts, log: log}
}

// Router returns the configured mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	s := r.PathPrefix(h.opts.Prefix).Subrouter()
	s.HandleFunc("/domain/{name}", h.domain).Methods(http.MethodGet)
	s.HandleFunc("/nameserver/{name}", h.nameserver).Methods(http.MethodGet)
	s.HandleFunc("/entity/{handle}", h.entity).Methods(http.MethodGet)
	s.HandleFunc("/autnum/{num}", h.autnum).Methods(http.MethodGet)
	s.HandleFunc("/ip/{addr:.+}", h.ip).Methods(http.MethodGet)
	s.HandleFunc("/help", h.help).Methods(http.MethodGet)
	s.HandleFunc("/domains", h.domainSearch).Methods(http.MethodGet)
	s.HandleFunc("/nameservers", h.nameserverSearch).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found", "this server does not have that path")
	})
	return r
}

func (h *Handler) domain(w http.ResponseWriter, r *http.Request) {
	h.writeLookup(w, h.store.Domain(mux.Vars(r)["name"]))
}

func (h *Handler) nameserver(w http.ResponseWriter, r *http.Request) {
	h.writeLookup(w, h.store.Nameserver(mux.Vars(r)["name"]))
}

func (h *Handler) entity(w http.ResponseWriter, r *http.Request) {
	h.writeLookup(w, h.store.Entity(mux.Vars(r)["handle"]))
}

func (h *Handler) autnum(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(mux.Vars(r)["num"], 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "autnum must be an unsigned 32-bit integer")
		return
	}
	h.writeLookup(w, h.store.Autnum(uint32(n)))
}

func (h *Handler) ip(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["addr"]
	if addr, err := netip.ParseAddr(raw); err == nil {
		h.writeLookup(w, h.store.NetworkByAddr(addr))
		return
	}
	if p, err := netip.ParsePrefix(raw); err == nil {
		h.writeLookup(w, h.store.NetworkByPrefix(p))
		return
	}
	writeError(w, http.StatusBadRequest, "Bad Request", "not an IP address or CIDR: "+raw)
}

func (h *Handler) help(w http.ResponseWriter, _ *http.Request) {
	h.writeLookup(w, h.store.Help())
}

func (h *Handler) domainSearch(w http.ResponseWriter, r *http.Request) {
	if !h.opts.DomainSearchByName {
		writeError(w, http.StatusNotImplemented, "Not Implemented", "domain search is not enabled")
		return
	}
	pattern := r.URL.Query().Get("name")
	if pattern == "" {
		writeError(w, http.StatusBadRequest, "Bad Request", "the name parameter is required")
		return
	}
	found, err := h.store.SearchDomainsByName(pattern)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "invalid search pattern")
		return
	}
	results := &rdap.SearchResults{}
	results.RDAPConformance = []string{"rdap_level_0"}
	for _, fr := range found {
		if d := fr.Domain(); d != nil {
			results.Domains = append(results.Domains, *d)
		}
	}
	h.writeResponse(w, http.StatusOK,
		&rdap.Response{Class: rdap.ClassSearchResults, Object: results})
}

func (h *Handler) nameserverSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("name") != "":
		if !h.opts.NameserverSearchByName {
			writeError(w, http.StatusNotImplemented, "Not Implemented", "nameserver search by name is not enabled")
			return
		}
		found, err := h.store.SearchNameserversByName(q.Get("name"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Bad Request", "invalid search pattern")
			return
		}
		h.writeNameserverResults(w, found)
	case q.Get("ip") != "":
		if !h.opts.NameserverSearchByIP {
			writeError(w, http.StatusNotImplemented, "Not Implemented", "nameserver search by ip is not enabled")
			return
		}
		addr, err := netip.ParseAddr(q.Get("ip"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Bad Request", "not an IP address: "+q.Get("ip"))
			return
		}
		h.writeNameserverResults(w, h.store.SearchNameserversByIP(addr))
	default:
		writeError(w, http.StatusBadRequest, "Bad Request", "a name or ip parameter is required")
	}
}

func (h *Handler) writeNameserverResults(w http.ResponseWriter, found []*rdap.Response) {
	results := &rdap.SearchResults{}
	results.RDAPConformance = []string{"rdap_level_0"}
	for _, fr := range found {
		if ns := fr.Nameserver(); ns != nil {
			results.Nameservers = append(results.Nameservers, *ns)
		}
	}
	h.writeResponse(w, http.StatusOK,
		&rdap.Response{Class: rdap.ClassSearchResults, Object: results})
}

// writeLookup answers a store lookup result: 404 error body on a miss,
// the stored error's code (with Location for 3xx) on an error entry,
// 200 otherwise.
func (h *Handler) writeLookup(w http.ResponseWriter, r *rdap.Response) {
	if r == nil {
		writeError(w, http.StatusNotFound, "Not Found", "the queried object does not exist here")
		return
	}
	if e := r.Err(); e != nil {
		status := http.StatusInternalServerError
		if e.ErrorCode != nil {
			status = *e.ErrorCode
		}
		if status >= 300 && status < 400 {
			if loc := firstNoticeLink(&e.ObjectCommon); loc != "" {
				w.Header().Set("Location", loc)
			}
		}
		h.writeResponse(w, status, r)
		return
	}
	h.writeResponse(w, http.StatusOK, r)
}

// writeResponse serializes r with the configured JSContact conversion.
// Stored responses are shared across requests, so the conversion runs on
// a reparsed copy, never on the stored object.
func (h *Handler) writeResponse(w http.ResponseWriter, status int, r *rdap.Response) {
	body, err := r.Serialize()
	if err != nil {
		h.log.WithError(err).Error("serializing response")
		writeError(w, http.StatusInternalServerError, "Internal Error", "response serialization failed")
		return
	}
	if h.opts.JSContact != rdap.JSContactNone {
		if cp, perr := rdap.Parse(body); perr == nil {
			cp.ConvertEntitiesJSContact(h.opts.JSContact)
			if b, serr := cp.Serialize(); serr == nil {
				body = b
			}
		}
	}
	w.Header().Set("Content-Type", rdapContentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func firstNoticeLink(oc *rdap.ObjectCommon) string {
	for _, n := range oc.Notices {
		for _, l := range n.Links {
			if l.Href != "" {
				return l.Href
			}
		}
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, title, description string) {
	e := &rdap.Error{ErrorCode: &status, Title: title}
	if description != "" {
		e.Description = []string{description}
	}
	e.RDAPConformance = []string{"rdap_level_0"}
	body, err := (&rdap.Response{Class: rdap.ClassError, Object: e}).Serialize()
	if err != nil {
		http.Error(w, title, status)
		return
	}
	w.Header().Set("Content-Type", rdapContentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func normalizePrefix(p string) string {
	if p == "" {
		return DefaultPrefix
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}
