package check

import (
	"strings"
	"unicode"
)

func isWhitespaceOrEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// anyEmptyOrWhitespace reports whether the list is empty or holds an
// empty/whitespace element.
func anyEmptyOrWhitespace(list []string) bool {
	if len(list) == 0 {
		return true
	}
	for _, s := range list {
		if isWhitespaceOrEmpty(s) {
			return true
		}
	}
	return false
}

func isLDHString(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '-' && !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// isLDHDomainName accepts the root name "." and dot-separated LDH labels.
func isLDHDomainName(s string) bool {
	if s == "." {
		return true
	}
	if s == "" {
		return false
	}
	for _, label := range strings.Split(strings.TrimSuffix(s, "."), ".") {
		if !isLDHString(label) {
			return false
		}
	}
	return true
}

// isUnicodeDomainName applies a loose test: labels may hold any rune that
// is not whitespace and not ASCII punctuation other than '-'.
func isUnicodeDomainName(s string) bool {
	if s == "." {
		return true
	}
	if s == "" {
		return false
	}
	for _, label := range strings.Split(strings.TrimSuffix(s, "."), ".") {
		if label == "" {
			return false
		}
		for _, r := range label {
			if r == '-' {
				continue
			}
			if unicode.IsSpace(r) || (r < 0x80 && unicode.IsPunct(r)) {
				return false
			}
		}
	}
	return true
}

// documentationSuffixes are the RFC 6761 special-use names reserved for
// examples and testing.
var documentationSuffixes = []string{
	"example", "example.com", "example.net", "example.org",
	"test", "invalid", "localhost",
}

// isDocumentationName reports whether name is, or is under, an RFC 6761
// special-use domain.
func isDocumentationName(name string) bool {
	n := strings.ToLower(strings.TrimSuffix(name, "."))
	for _, suffix := range documentationSuffixes {
		if n == suffix || strings.HasSuffix(n, "."+suffix) {
			return true
		}
	}
	return false
}
