package backend

// Part is one element of a prompt: plain text, or binary data with its
// content type.
type Part struct {
	Text string
	Data []byte
	MIME string
}

// TextPart builds a text-only prompt part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// DataPart builds a binary prompt part.
func DataPart(data []byte, mime string) Part {
	return Part{Data: data, MIME: mime}
}

// Reply is a backend response resolved once at the boundary. Internal code
// checks Empty instead of walking candidate/part structures.
type Reply struct {
	Text  string
	Empty bool
}

// EmptyReply marks the absence of any candidate text. It is a valid,
// non-error outcome.
func EmptyReply() Reply {
	return Reply{Empty: true}
}

// TextReply wraps candidate text.
func TextReply(text string) Reply {
	return Reply{Text: text}
}
