package sniff

import (
	"strings"
	"testing"
)

func TestClassifyCollapsesTextSubtypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "plain prose", data: []byte("just some plain words\n")},
		{name: "html", data: []byte("<!DOCTYPE html><html><body>hi</body></html>")},
		{name: "csv-ish", data: []byte("a,b,c\n1,2,3\n4,5,6\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.data); got != "text/plain" {
				t.Fatalf("expected text/plain, got %q", got)
			}
		})
	}
}

func TestClassifyBinarySignatures(t *testing.T) {
	t.Parallel()

	pngHeader := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	if got := Classify(pngHeader); got != "image/png" {
		t.Fatalf("expected image/png, got %q", got)
	}

	pdfHeader := []byte("%PDF-1.7\n")
	if got := Classify(pdfHeader); got != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", got)
	}
}

func TestClassifyImageFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{name: "photo.png", want: "image/png"},
		{name: "photo.JPG", want: "image/jpeg"},
		{name: "anim.gif", want: "image/gif"},
		{name: "pic.webp", want: "image/webp"},
		{name: "doc.pdf", want: UnsupportedType},
		{name: "noext", want: UnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyImageFilename(tt.name); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSupportedImageExtensionsStable(t *testing.T) {
	t.Parallel()

	exts := SupportedImageExtensions()
	if len(exts) == 0 {
		t.Fatal("expected extensions")
	}
	joined := strings.Join(exts, " ")
	for _, want := range []string{".png", ".jpg", ".jpeg", ".gif", ".webp"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing extension %s in %q", want, joined)
		}
	}
}
