package pdfcheck

import (
	"errors"
	"testing"
)

func TestInspect_RejectsHTML(t *testing.T) {
	// WHAT: An HTML page served with 200 is not stored as a PDF.
	// WHY: Expired sessions redirect to a login page.
	_, err := Inspect([]byte("<!DOCTYPE html><html><body>Log in</body></html>"))
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
}

func TestInspect_Empty(t *testing.T) {
	if _, err := Inspect(nil); !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
}

func TestInspect_UnparseablePDFIsAccepted(t *testing.T) {
	// WHAT: A truncated PDF passes with an informational parse error.
	// WHY: Bytes are passed through; pdfcpu strictness must not block the drop.
	data := []byte("%PDF-1.7\n%truncated")
	info, err := Inspect(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Version != "1.7" {
		t.Errorf("version: got %q", info.Version)
	}
	if info.Size != len(data) {
		t.Errorf("size: got %d", info.Size)
	}
	if info.ParseErr == nil {
		t.Error("expected a parse error for a truncated document")
	}
	if info.Pages != 0 {
		t.Errorf("pages: got %d", info.Pages)
	}
}

func TestHeaderVersion(t *testing.T) {
	tests := map[string]string{
		"%PDF-1.4\n":          "1.4",
		"%PDF-2.0\r\n":        "2.0",
		"%PDF-1.3":            "1.3",
		"%PDF-1.5 binary...": "1.5",
	}
	for in, want := range tests {
		if got := headerVersion([]byte(in)); got != want {
			t.Errorf("headerVersion(%q) = %q, want %q", in, got, want)
		}
	}
}
