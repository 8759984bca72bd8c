package client

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongMediaType reports a response whose Content-Type is not
	// application/rdap+json and the caller has not opted into relaxed
	// parsing.
	ErrWrongMediaType = errors.New("client: response media type is not application/rdap+json")

	// ErrPlaintextBlocked reports an http:// URL without the plaintext
	// allowance.
	ErrPlaintextBlocked = errors.New("client: plaintext HTTP is not allowed")

	// ErrTooManyRedirects reports a redirect chain beyond the hop bound.
	ErrTooManyRedirects = errors.New("client: too many redirects")

	// ErrNoRegistryMatch reports a query no bootstrap service covers.
	ErrNoRegistryMatch = errors.New("client: no bootstrap service matches the query")

	// ErrBaseURLRequired reports a query form that cannot be
	// bootstrapped and needs an explicit base URL.
	ErrBaseURLRequired = errors.New("client: query type requires an explicit base URL")

	// ErrStaleAfterRevalidate reports a 304 for which no cached body
	// exists even after an unconditional retry.
	ErrStaleAfterRevalidate = errors.New("client: 304 Not Modified but no cached body")
)

// HTTPError is a non-2xx status with no usable RDAP error body.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("client: GET %s: unexpected status %d", e.URL, e.Status)
}
