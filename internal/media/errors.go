package media

import "errors"

var (
	// ErrNormalizationFailed indicates an image could not be reduced under
	// the size budget within the configured iteration bound.
	ErrNormalizationFailed = errors.New("image normalization failed")
	// ErrAttachmentTooLarge indicates the payload exceeds the configured max
	// attachment size.
	ErrAttachmentTooLarge = errors.New("attachment too large")
	// ErrUnsupportedFormat indicates the image bytes could not be decoded or
	// re-encoded in their format family.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)
