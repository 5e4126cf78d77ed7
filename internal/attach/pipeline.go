// Package attach ingests message attachments into backend-ready payloads.
package attach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gemrelay/gemrelay/internal/config"
	"github.com/gemrelay/gemrelay/internal/media"
	"github.com/gemrelay/gemrelay/internal/sniff"
)

var (
	// ErrFetchFailed indicates the attachment could not be downloaded.
	// User-visible; aborts the event, never the process.
	ErrFetchFailed = errors.New("attachment fetch failed")
	// ErrUnsupportedAttachment indicates an image with an extension outside
	// the supported table.
	ErrUnsupportedAttachment = errors.New("unsupported attachment type")
)

// Payload is a backend-ready attachment. Transient: built per request and
// discarded after the backend call returns.
type Payload struct {
	Bytes          []byte
	ContentType    string
	SourceFilename string
}

// Pipeline downloads, classifies, and normalizes attachments.
type Pipeline struct {
	logger   *slog.Logger
	client   *http.Client
	maxBytes int64
	image    config.ImageConfig
}

// NewPipeline creates a Pipeline using the given HTTP client for downloads.
func NewPipeline(log *slog.Logger, client *http.Client, cfg config.AttachmentConfig, image config.ImageConfig) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout()}
	}
	return &Pipeline{
		logger:   log.With(slog.String("component", "attach")),
		client:   client,
		maxBytes: cfg.MaxBytes,
		image:    image,
	}
}

// Ingest fetches the attachment and produces a backend-ready payload.
// Images are re-encoded under the size budget; unsupported image extensions
// are rejected; everything else is forwarded with a best-effort label.
func (p *Pipeline) Ingest(ctx context.Context, url, filename string) (Payload, error) {
	data, err := p.fetch(ctx, url)
	if err != nil {
		return Payload{}, err
	}

	label := sniff.Classify(data)

	if p.image.Enabled && strings.HasPrefix(label, "image/") {
		extMime := sniff.ClassifyImageFilename(filename)
		if extMime == sniff.UnsupportedType {
			return Payload{}, fmt.Errorf("%w: %s (supported: %s)",
				ErrUnsupportedAttachment, filename,
				strings.Join(sniff.SupportedImageExtensions(), ", "))
		}

		normalized, err := media.Normalize(data, extMime, media.NormalizeOptions{
			MaxBytes:      p.image.MaxBytes,
			StepPercent:   p.image.StepPercent,
			MaxIterations: p.image.MaxIterations,
		})
		if err != nil {
			return Payload{}, err
		}
		if len(normalized) != len(data) {
			// Re-encoding may change the container (webp becomes png).
			label = sniff.Classify(normalized)
			p.logger.Debug("image normalized",
				slog.String("filename", filename),
				slog.Int("original_bytes", len(data)),
				slog.Int("normalized_bytes", len(normalized)))
		}
		return Payload{Bytes: normalized, ContentType: label, SourceFilename: filename}, nil
	}

	return Payload{Bytes: data, ContentType: label, SourceFilename: filename}, nil
}

func (p *Pipeline) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetchFailed, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	data, err := media.ReadAllWithLimit(resp.Body, p.maxBytes)
	if err != nil {
		if errors.Is(err, media.ErrAttachmentTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read body: %v", ErrFetchFailed, err)
	}
	return data, nil
}
