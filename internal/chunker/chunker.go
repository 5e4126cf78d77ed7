// Package chunker splits reply text into platform-deliverable segments.
package chunker

import "strings"

const cutSet = " \n\r\t"

// Split breaks text into ordered chunks of at most maxLength characters,
// preferring to break at the whitespace closest to the length boundary.
// Platform limits count characters, not bytes, so the window is measured
// in runes and a forced break never lands inside one. When no whitespace
// exists inside the window the break is forced at exactly maxLength, which
// may split mid-word. Chunks are trimmed of surrounding whitespace and
// windows that trim to nothing are dropped. Split("", n) returns nil.
func Split(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = 1
	}

	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := len(runes)
		if end-start > maxLength {
			end = start + maxLength
			for end > start && !strings.ContainsRune(cutSet, runes[end-1]) {
				end--
			}
			if end == start {
				// No whitespace in the window; hard cut.
				end = start + maxLength
			}
		}

		if chunk := strings.Trim(string(runes[start:end]), cutSet); chunk != "" {
			chunks = append(chunks, chunk)
		}
		start = end
	}
	return chunks
}
