package check

import (
	"strings"

	"github.com/datum-labs/rdapkit/rdap"
)

// httpData checks the HTTP exchange that produced the response: CORS
// recommendations, the media type, and the ICANN gTLD profile transport
// rules when the response declares a technical implementation guide.
func (w *walker) httpData(hd *rdap.HTTPData) Checks {
	out := Checks{Structure: StructHTTPData}

	if hd.AccessControlOrigin == "" {
		out.Items = append(out.Items, CorsAllowOriginRecommended.item())
	} else if hd.AccessControlOrigin != "*" {
		out.Items = append(out.Items, CorsAllowOriginStarRecommended.item())
	}
	if hd.AccessControlAllowCrd != "" {
		out.Items = append(out.Items, CorsAllowCredentialsNotRecommended.item())
	}

	if hd.ContentType == "" {
		out.Items = append(out.Items, ContentTypeIsAbsent.item())
	} else if !strings.HasPrefix(hd.ContentType, rdapMediaType) {
		out.Items = append(out.Items, ContentTypeIsNotRdap.item())
	}

	if hasExtension(w.conformance, extICANNTechGuide0) || hasExtension(w.conformance, extICANNTechGuide1) {
		if !strings.EqualFold(hd.Scheme, "https") {
			out.Items = append(out.Items, MustUseHTTPS.item())
		}
		if hd.AccessControlOrigin != "*" {
			out.Items = append(out.Items, AllowOriginNotStar.item())
		}
	}

	return out
}
