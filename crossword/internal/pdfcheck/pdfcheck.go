// CLAUDE:SUMMARY Sanity check for downloaded documents: %PDF- magic header plus pdfcpu page count.
// Package pdfcheck inspects a downloaded document before it is stored.
//
// The bytes are never modified. A payload that is not a PDF at all (e.g. an
// HTML login page served with status 200 after the session expired) is
// rejected; a PDF that pdfcpu cannot fully parse is still accepted.
package pdfcheck

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNotPDF is returned when the payload lacks the PDF magic header.
var ErrNotPDF = errors.New("pdfcheck: payload is not a PDF")

var magic = []byte("%PDF-")

// Info describes an inspected document.
type Info struct {
	Size     int
	Version  string // header version, e.g. "1.7"
	Pages    int    // 0 when ParseErr is set
	ParseErr error  // pdfcpu failure, informational
}

// Inspect checks data for the PDF header and reads its page count.
func Inspect(data []byte) (info Info, err error) {
	info = Info{Size: len(data)}
	if !bytes.HasPrefix(data, magic) {
		return info, fmt.Errorf("%w (starts with %q)", ErrNotPDF, head(data))
	}
	info.Version = headerVersion(data)

	// pdfcpu can panic on hostile input.
	defer func() {
		if r := recover(); r != nil {
			info.Pages = 0
			info.ParseErr = fmt.Errorf("pdfcpu panic: %v", r)
			err = nil
		}
	}()

	conf := model.NewDefaultConfiguration()
	ctx, perr := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if perr != nil {
		info.ParseErr = fmt.Errorf("pdfcpu read: %w", perr)
		return info, nil
	}
	info.Pages = ctx.PageCount
	return info, nil
}

func headerVersion(data []byte) string {
	rest := data[len(magic):]
	end := bytes.IndexAny(rest, "\r\n ")
	if end < 0 || end > 8 {
		end = min(len(rest), 8)
	}
	return string(rest[:end])
}

func head(data []byte) []byte {
	if len(data) > 16 {
		return data[:16]
	}
	return data
}
