package media

import (
	"bytes"
	"errors"
	"image"
	"math/rand"
	"testing"

	"github.com/disintegration/imaging"
)

// noisePNG builds an incompressible PNG so encoded size tracks pixel count.
func noisePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	rng := rand.New(rand.NewSource(42))
	for i := range img.Pix {
		img.Pix[i] = byte(rng.Intn(256))
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeUnderBudgetUnchanged(t *testing.T) {
	t.Parallel()

	data := noisePNG(t, 16, 16)
	out, err := Normalize(data, "image/png", NormalizeOptions{
		MaxBytes:      int64(len(data)) + 1,
		StepPercent:   10,
		MaxIterations: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("expected input returned unchanged")
	}
}

func TestNormalizeReducesUnderBudget(t *testing.T) {
	t.Parallel()

	data := noisePNG(t, 128, 128)
	budget := int64(len(data) / 2)
	out, err := Normalize(data, "image/png", NormalizeOptions{
		MaxBytes:      budget,
		StepPercent:   20,
		MaxIterations: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if int64(len(out)) > budget {
		t.Fatalf("normalized size %d exceeds budget %d", len(out), budget)
	}
	if _, err := imaging.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("normalized bytes are not a decodable image: %v", err)
	}
}

func TestNormalizeIterationBound(t *testing.T) {
	t.Parallel()

	data := noisePNG(t, 128, 128)
	_, err := Normalize(data, "image/png", NormalizeOptions{
		MaxBytes:      1,
		StepPercent:   10,
		MaxIterations: 3,
	})
	if !errors.Is(err, ErrNormalizationFailed) {
		t.Fatalf("expected ErrNormalizationFailed, got %v", err)
	}
}

func TestNormalizeRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	data := noisePNG(t, 64, 64)
	_, err := Normalize(data, "application/pdf", NormalizeOptions{
		MaxBytes:      1,
		StepPercent:   10,
		MaxIterations: 3,
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestReadAllWithLimit(t *testing.T) {
	t.Parallel()

	data, err := ReadAllWithLimit(bytes.NewReader([]byte("abcdef")), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "abcdef" {
		t.Fatalf("unexpected data %q", data)
	}

	_, err = ReadAllWithLimit(bytes.NewReader(make([]byte, 11)), 10)
	if !errors.Is(err, ErrAttachmentTooLarge) {
		t.Fatalf("expected ErrAttachmentTooLarge, got %v", err)
	}
}
