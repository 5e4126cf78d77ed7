package attach

import (
	"bytes"
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemrelay/gemrelay/internal/config"
	"github.com/gemrelay/gemrelay/internal/media"
)

func testImageConfig() config.ImageConfig {
	return config.ImageConfig{
		Enabled:       true,
		MaxBytes:      1 << 20,
		StepPercent:   10,
		MaxIterations: 10,
	}
}

func newTestPipeline(t *testing.T, handler http.Handler) (*Pipeline, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	pipeline := NewPipeline(nil, srv.Client(), config.AttachmentConfig{
		MaxBytes:            1 << 20,
		FetchTimeoutSeconds: 5,
	}, testImageConfig())
	return pipeline, srv
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestIngestTextAttachment(t *testing.T) {
	t.Parallel()

	pipeline, srv := newTestPipeline(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain file contents\n"))
	}))

	payload, err := pipeline.Ingest(context.Background(), srv.URL+"/notes.txt", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", payload.ContentType)
	assert.Equal(t, "notes.txt", payload.SourceFilename)
	assert.Equal(t, []byte("plain file contents\n"), payload.Bytes)
}

func TestIngestImageUnderBudgetUnchanged(t *testing.T) {
	t.Parallel()

	img := pngBytes(t)
	pipeline, srv := newTestPipeline(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(img)
	}))

	payload, err := pipeline.Ingest(context.Background(), srv.URL+"/pic.png", "pic.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", payload.ContentType)
	assert.Equal(t, img, payload.Bytes)
}

func TestIngestRejectsUnsupportedImageExtension(t *testing.T) {
	t.Parallel()

	img := pngBytes(t)
	pipeline, srv := newTestPipeline(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(img)
	}))

	_, err := pipeline.Ingest(context.Background(), srv.URL+"/pic.bmp", "pic.bmp")
	require.ErrorIs(t, err, ErrUnsupportedAttachment)
	assert.Contains(t, err.Error(), ".png")
}

func TestIngestGenericBinaryForwarded(t *testing.T) {
	t.Parallel()

	pipeline, srv := newTestPipeline(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.7\nsome pdf body"))
	}))

	payload, err := pipeline.Ingest(context.Background(), srv.URL+"/doc.pdf", "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", payload.ContentType)
}

func TestIngestNotFound(t *testing.T) {
	t.Parallel()

	pipeline, srv := newTestPipeline(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := pipeline.Ingest(context.Background(), srv.URL+"/gone.png", "gone.png")
	require.ErrorIs(t, err, ErrFetchFailed)
}

func TestIngestTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	pipeline := NewPipeline(nil, nil, config.AttachmentConfig{
		MaxBytes:            1 << 20,
		FetchTimeoutSeconds: 1,
	}, testImageConfig())

	_, err := pipeline.Ingest(context.Background(), srv.URL+"/x", "x")
	require.ErrorIs(t, err, ErrFetchFailed)
}

func TestIngestOversizedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	t.Cleanup(srv.Close)
	pipeline := NewPipeline(nil, srv.Client(), config.AttachmentConfig{
		MaxBytes:            1024,
		FetchTimeoutSeconds: 5,
	}, testImageConfig())

	_, err := pipeline.Ingest(context.Background(), srv.URL+"/big.bin", "big.bin")
	require.ErrorIs(t, err, media.ErrAttachmentTooLarge)
}

func TestIngestImageDisabledTreatedAsFile(t *testing.T) {
	t.Parallel()

	img := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(img)
	}))
	t.Cleanup(srv.Close)
	cfg := testImageConfig()
	cfg.Enabled = false
	pipeline := NewPipeline(nil, srv.Client(), config.AttachmentConfig{
		MaxBytes:            1 << 20,
		FetchTimeoutSeconds: 5,
	}, cfg)

	payload, err := pipeline.Ingest(context.Background(), srv.URL+"/pic.bmp", "pic.bmp")
	require.NoError(t, err)
	assert.Equal(t, "image/png", payload.ContentType)
}
