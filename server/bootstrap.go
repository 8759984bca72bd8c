package server

import (
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/datum-labs/rdapkit/bootstrap"
	"github.com/datum-labs/rdapkit/rdap"
)

// BootstrapHandler answers every lookup with a 307 redirect to the
// authoritative server found in the IANA bootstrap registries. Run the
// registry refresher before listening so the first requests do not block
// on downloads.
type BootstrapHandler struct {
	boot   *bootstrap.Store
	prefix string
	log    *logrus.Logger
}

// NewBootstrap builds the redirect dispatcher over the registry store.
func NewBootstrap(b *bootstrap.Store, opts Options) *BootstrapHandler {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BootstrapHandler{boot: b, prefix: normalizePrefix(opts.Prefix), log: log}
}

// Router returns the configured mux router.
func (h *BootstrapHandler) Router() *mux.Router {
	r := mux.NewRouter()
	s := r.PathPrefix(h.prefix).Subrouter()
	s.HandleFunc("/domain/{name}", h.domain).Methods(http.MethodGet)
	s.HandleFunc("/nameserver/{name}", h.nameserver).Methods(http.MethodGet)
	s.HandleFunc("/entity/{handle}", h.entity).Methods(http.MethodGet)
	s.HandleFunc("/autnum/{num}", h.autnum).Methods(http.MethodGet)
	s.HandleFunc("/ip/{addr:.+}", h.ip).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found", "this server does not have that path")
	})
	return r
}

func (h *BootstrapHandler) domain(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	urls := h.registryURLs(r, bootstrap.KindDNS, func(reg *bootstrap.Registry) []string {
		return reg.LookupDNS(name)
	})
	h.redirect(w, urls, "domain/"+name)
}

func (h *BootstrapHandler) nameserver(w http.ResponseWriter, r *http.Request) {
	// nameservers bootstrap through the DNS registry of their parent zone
	name := mux.Vars(r)["name"]
	urls := h.registryURLs(r, bootstrap.KindDNS, func(reg *bootstrap.Registry) []string {
		return reg.LookupDNS(name)
	})
	h.redirect(w, urls, "nameserver/"+name)
}

func (h *BootstrapHandler) entity(w http.ResponseWriter, r *http.Request) {
	handle := mux.Vars(r)["handle"]
	urls := h.registryURLs(r, bootstrap.KindObjectTags, func(reg *bootstrap.Registry) []string {
		return reg.LookupTag(handle)
	})
	h.redirect(w, urls, "entity/"+handle)
}

func (h *BootstrapHandler) autnum(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(mux.Vars(r)["num"], 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "autnum must be an unsigned 32-bit integer")
		return
	}
	urls := h.registryURLs(r, bootstrap.KindASN, func(reg *bootstrap.Registry) []string {
		return reg.LookupASN(uint32(n))
	})
	h.redirect(w, urls, "autnum/"+mux.Vars(r)["num"])
}

func (h *BootstrapHandler) ip(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["addr"]
	if addr, err := netip.ParseAddr(raw); err == nil {
		kind := bootstrap.KindIPv4
		if addr.Is6() {
			kind = bootstrap.KindIPv6
		}
		urls := h.registryURLs(r, kind, func(reg *bootstrap.Registry) []string {
			return reg.LookupIP(addr)
		})
		h.redirect(w, urls, "ip/"+raw)
		return
	}
	if p, err := netip.ParsePrefix(raw); err == nil {
		kind := bootstrap.KindIPv4
		if p.Addr().Is6() {
			kind = bootstrap.KindIPv6
		}
		urls := h.registryURLs(r, kind, func(reg *bootstrap.Registry) []string {
			return reg.LookupPrefix(p)
		})
		h.redirect(w, urls, "ip/"+raw)
		return
	}
	writeError(w, http.StatusBadRequest, "Bad Request", "not an IP address or CIDR: "+raw)
}

func (h *BootstrapHandler) registryURLs(r *http.Request, kind bootstrap.Kind, lookup func(*bootstrap.Registry) []string) []string {
	reg, err := h.boot.Fetch(r.Context(), kind)
	if err != nil {
		h.log.WithError(err).WithField("kind", kind).Warn("bootstrap registry unavailable")
		return nil
	}
	return lookup(reg)
}

// redirect answers 307 to the first usable base, https preferred, with an
// RDAP error body carrying the target as a notice link.
func (h *BootstrapHandler) redirect(w http.ResponseWriter, bases []string, suffix string) {
	base := pickBase(bases)
	if base == "" {
		writeError(w, http.StatusNotFound, "Not Found", "no bootstrap service matches the queried object")
		return
	}
	target := strings.TrimRight(base, "/") + "/" + suffix

	status := http.StatusTemporaryRedirect
	e := &rdap.Error{ErrorCode: &status, Title: "Temporary Redirect"}
	e.RDAPConformance = []string{"rdap_level_0"}
	e.Notices = []rdap.NoticeOrRemark{{
		Title: "Redirect",
		Links: []rdap.Link{{Href: target, Rel: "related", Type: "application/rdap+json"}},
	}}

	body, err := (&rdap.Response{Class: rdap.ClassError, Object: e}).Serialize()
	if err != nil {
		http.Error(w, "Temporary Redirect", status)
		return
	}
	w.Header().Set("Content-Type", rdapContentType)
	w.Header().Set("Location", target)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func pickBase(bases []string) string {
	for _, b := range bases {
		if strings.HasPrefix(b, "https://") {
			return b
		}
	}
	if len(bases) > 0 {
		return bases[0]
	}
	return ""
}
