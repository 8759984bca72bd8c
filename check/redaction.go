package check

import (
	"fmt"
	"strings"

	"github.com/datum-labs/rdapkit/rdap"
)

// RedactionOptions control how RFC 9537 redacted[] directives are handled.
type RedactionOptions struct {
	// ShowRaw keeps the raw redacted member on the response; otherwise a
	// simplified response drops it.
	ShowRaw bool
	// DoNotSimplify disables the rewrite entirely.
	DoNotSimplify bool
}

// SimpleRedaction is a flattened annotation for one directive whose path
// resolves to a single leaf.
type SimpleRedaction struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Method string `json:"method,omitempty"`
	Reason string `json:"reason,omitempty"`
}

const simplifiedRedactionsTitle = "Simplified Redactions"

// SimplifyRedactions rewrites RFC 9537 directives whose pathLang is
// jsonpath (or absent, which RFC 9537 defaults to jsonpath) and whose path
// expression names a single leaf. Simplified directives are summarized in
// a remark on the root object; the raw redacted member is dropped unless
// ShowRaw is set. Directives with wildcard, slice, filter, or recursive
// descent paths are left alone, as are responses without object classes.
func SimplifyRedactions(r *rdap.Response, opts RedactionOptions) []SimpleRedaction {
	if opts.DoNotSimplify {
		return nil
	}
	common := r.Common()
	if common == nil || len(common.Redacted) == 0 {
		return nil
	}

	var simple []SimpleRedaction
	var kept []rdap.Redacted
	for _, red := range common.Redacted {
		sr, ok := simplifyOne(red)
		if !ok {
			kept = append(kept, red)
			continue
		}
		simple = append(simple, sr)
	}
	if len(simple) == 0 {
		return nil
	}

	remark := rdap.NoticeOrRemark{Title: simplifiedRedactionsTitle}
	lines := make([]string, 0, len(simple))
	for _, sr := range simple {
		line := fmt.Sprintf("%s redacted at %s", sr.Name, sr.Path)
		if sr.Reason != "" {
			line += " : " + sr.Reason
		}
		lines = append(lines, line)
	}
	remark.Description = rdap.Descriptions(lines...)
	common.Remarks = append(common.Remarks, remark)

	if !opts.ShowRaw {
		common.Redacted = kept
	}
	return simple
}

func simplifyOne(red rdap.Redacted) (SimpleRedaction, bool) {
	if red.PathLang != "" && !strings.EqualFold(red.PathLang, "jsonpath") {
		return SimpleRedaction{}, false
	}
	path := red.PrePath
	if path == "" {
		path = red.PostPath
	}
	if path == "" {
		path = red.ReplacementP
	}
	if !isSingleLeafPath(path) {
		return SimpleRedaction{}, false
	}
	name := red.Name.Type
	if name == "" {
		name = red.Name.Description
	}
	if name == "" {
		return SimpleRedaction{}, false
	}
	sr := SimpleRedaction{Path: path, Name: name, Method: red.Method}
	if red.Reason != nil {
		sr.Reason = red.Reason.Description
		if sr.Reason == "" {
			sr.Reason = red.Reason.Type
		}
	}
	return sr, true
}

// isSingleLeafPath accepts JSONPath expressions that can only resolve to
// one node: a rooted chain of member names and literal array indexes.
func isSingleLeafPath(p string) bool {
	if !strings.HasPrefix(p, "$") {
		return false
	}
	if strings.Contains(p, "..") || strings.ContainsAny(p, "*?@:,") {
		return false
	}
	// bracket segments must be literal indexes or quoted names
	rest := p[1:]
	for {
		i := strings.IndexByte(rest, '[')
		if i < 0 {
			break
		}
		j := strings.IndexByte(rest[i:], ']')
		if j < 0 {
			return false
		}
		seg := rest[i+1 : i+j]
		if seg == "" {
			return false
		}
		if seg[0] != '\'' && seg[0] != '"' && !isDigits(seg) {
			return false
		}
		rest = rest[i+j+1:]
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
