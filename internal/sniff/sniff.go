// Package sniff classifies attachment bytes and filenames into MIME labels.
package sniff

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// UnsupportedType marks a filename extension outside the image table.
const UnsupportedType = "unsupported"

// imageExtensions maps recognized image filename extensions to MIME types.
var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Classify determines a MIME label from raw bytes using signature
// inspection. Any text/* sub-type collapses to text/plain so downstream
// code never branches on sniffed text flavors.
func Classify(data []byte) string {
	label := mimetype.Detect(data).String()
	// mimetype appends charset parameters to text types.
	if i := strings.IndexByte(label, ';'); i >= 0 {
		label = strings.TrimSpace(label[:i])
	}
	if strings.HasPrefix(label, "text/") {
		return "text/plain"
	}
	return label
}

// ClassifyImageFilename looks up the MIME type for an image filename by
// extension. Unknown extensions yield UnsupportedType.
func ClassifyImageFilename(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if mime, ok := imageExtensions[ext]; ok {
		return mime
	}
	return UnsupportedType
}

// IsImageFilename reports whether the filename carries a recognized image
// extension.
func IsImageFilename(name string) bool {
	return ClassifyImageFilename(name) != UnsupportedType
}

// SupportedImageExtensions returns the recognized image extensions in
// stable order, for user-facing rejection messages.
func SupportedImageExtensions() []string {
	exts := make([]string, 0, len(imageExtensions))
	for ext := range imageExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
