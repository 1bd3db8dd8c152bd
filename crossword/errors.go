// CLAUDE:SUMMARY Error taxonomy of a drop run: transport, parse, upstream status, not-a-PDF, storage write.
package crossword

import (
	"errors"

	"github.com/hazyhaar/dailydrop/crossword/internal/dropbox"
	"github.com/hazyhaar/dailydrop/crossword/internal/pdfcheck"
	"github.com/hazyhaar/dailydrop/crossword/internal/publisher"
)

// ErrTransport is a network or stream failure talking to the publisher.
var ErrTransport = publisher.ErrTransport

// ErrParse is a metadata reply without a usable puzzle id.
var ErrParse = publisher.ErrParse

// ErrUpstreamStatus is a non-200 reply from a publisher endpoint.
var ErrUpstreamStatus = publisher.ErrUpstreamStatus

// ErrNotPDF is a 200 download whose body is not a PDF.
var ErrNotPDF = pdfcheck.ErrNotPDF

// ErrStorageWrite is an upload that was not acknowledged.
var ErrStorageWrite = dropbox.ErrStorageWrite

// ErrRunInProgress is returned when a run is requested while one is active.
var ErrRunInProgress = errors.New("crossword: a run is already in progress")

// Error kinds, as recorded in the journal.
const (
	KindTransport      = "transport"
	KindParse          = "parse"
	KindUpstreamStatus = "upstream_status"
	KindNotPDF         = "not_pdf"
	KindStorageWrite   = "storage_write"
	KindOther          = "other"
)

// Kind classifies err into the run error taxonomy. nil gives "".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUpstreamStatus):
		return KindUpstreamStatus
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrNotPDF):
		return KindNotPDF
	case errors.Is(err, ErrStorageWrite):
		return KindStorageWrite
	default:
		return KindOther
	}
}

// StatusCode returns the HTTP status carried by a publisher or storage
// error, or 0.
func StatusCode(err error) int {
	var se *publisher.StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var ae *dropbox.APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}
