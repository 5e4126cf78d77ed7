// Package media bounds and normalizes attachment payloads before they are
// handed to the backend.
package media

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"

	// Register the webp decoder; webp output is re-encoded as PNG since the
	// standard encoders cannot produce webp.
	_ "golang.org/x/image/webp"
)

// NormalizeOptions configures the image size reduction loop.
type NormalizeOptions struct {
	// MaxBytes is the encoded size budget.
	MaxBytes int64
	// StepPercent is the per-iteration dimension reduction (1-99).
	StepPercent int
	// MaxIterations bounds the resize loop; exceeding it fails with
	// ErrNormalizationFailed instead of looping.
	MaxIterations int
}

// Normalize re-encodes the image, scaling both dimensions down by
// StepPercent per round, until the encoded size fits MaxBytes. Input
// already under budget is returned unchanged without decoding.
func Normalize(data []byte, mime string, opts NormalizeOptions) ([]byte, error) {
	if opts.MaxBytes <= 0 {
		return nil, fmt.Errorf("max bytes must be greater than 0")
	}
	if opts.StepPercent <= 0 || opts.StepPercent >= 100 {
		return nil, fmt.Errorf("step percent must be between 1 and 99")
	}
	if opts.MaxIterations <= 0 {
		return nil, fmt.Errorf("max iterations must be greater than 0")
	}

	if int64(len(data)) <= opts.MaxBytes {
		return data, nil
	}

	format, err := encodeFormat(mime)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnsupportedFormat, err)
	}

	scale := float64(100-opts.StepPercent) / 100
	for i := 0; i < opts.MaxIterations; i++ {
		bounds := img.Bounds()
		width := int(float64(bounds.Dx()) * scale)
		height := int(float64(bounds.Dy()) * scale)
		if width < 1 || height < 1 {
			break
		}

		img = imaging.Resize(img, width, height, imaging.Lanczos)

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, format); err != nil {
			return nil, fmt.Errorf("%w: encode: %v", ErrUnsupportedFormat, err)
		}
		if int64(buf.Len()) <= opts.MaxBytes {
			return buf.Bytes(), nil
		}
	}

	return nil, fmt.Errorf("%w: still over %d bytes after %d iterations",
		ErrNormalizationFailed, opts.MaxBytes, opts.MaxIterations)
}

func encodeFormat(mime string) (imaging.Format, error) {
	switch mime {
	case "image/jpeg":
		return imaging.JPEG, nil
	case "image/png", "image/webp":
		return imaging.PNG, nil
	case "image/gif":
		return imaging.GIF, nil
	default:
		return imaging.PNG, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mime)
	}
}
