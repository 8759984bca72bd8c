package main

import (
	"errors"
	"strings"

	"github.com/datum-labs/rdapkit/client"
	"github.com/datum-labs/rdapkit/query"
)

// Exit codes. Grouped by failure domain so scripts can switch on ranges:
// 1-3 check outcomes, 40s local I/O and client setup, 60s transport, 70s
// bootstrap, 100s RDAP error responses, 200s user errors, 250 internal.
const (
	exitOK          = 0
	exitChecksFound = 1

	exitIO = 40

	exitClientConfig     = 42
	exitUnexpectedObject = 43

	exitTransport        = 60
	exitTooManyRedirects = 61
	exitWrongMediaType   = 62
	exitPlaintextBlocked = 63

	exitBootstrapUnavailable = 70
	exitNoRegistryMatch      = 71
	exitBaseURLRequired      = 72

	exitRdapError     = 100
	exitRdapNotFound  = 101
	exitRdapClientErr = 102
	exitRdapServerErr = 103

	exitInvalidQuery  = 200
	exitTypeMismatch  = 201
	exitAmbiguous     = 202
	exitUnknownType   = 203
	exitUnknownOption = 204

	exitInternal = 250
)

// exitCodeFor maps an error from classification or resolution to the exit
// code table.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, query.ErrTypeMismatch):
		return exitTypeMismatch
	case errors.Is(err, query.ErrAmbiguous):
		return exitAmbiguous
	case errors.Is(err, query.ErrInvalidValue):
		return exitInvalidQuery
	case errors.Is(err, client.ErrTooManyRedirects):
		return exitTooManyRedirects
	case errors.Is(err, client.ErrWrongMediaType):
		return exitWrongMediaType
	case errors.Is(err, client.ErrPlaintextBlocked):
		return exitPlaintextBlocked
	case errors.Is(err, client.ErrNoRegistryMatch):
		return exitNoRegistryMatch
	case errors.Is(err, client.ErrBaseURLRequired):
		return exitBaseURLRequired
	case errors.Is(err, client.ErrStaleAfterRevalidate):
		return exitTransport
	}
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		return exitTransport
	}
	// bootstrap package errors are all wrapped with its prefix
	if strings.Contains(err.Error(), "bootstrap:") {
		return exitBootstrapUnavailable
	}
	return exitTransport
}

// exitCodeForRdapError maps an RDAP error response's errorCode.
func exitCodeForRdapError(code int) int {
	switch {
	case code == 404:
		return exitRdapNotFound
	case code >= 400 && code < 500:
		return exitRdapClientErr
	case code >= 500:
		return exitRdapServerErr
	default:
		return exitRdapError
	}
}
