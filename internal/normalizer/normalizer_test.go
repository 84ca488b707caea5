package normalizer

import (
	"bytes"
	"testing"

	apperrors "go-xray-inspector/internal/errors"
	"go-xray-inspector/pkg/models"
)

func solidRGB(w, h int, r, g, b uint8) models.RawImage {
	pix := make([]uint8, w*h*3)
	for i := 0; i < w*h; i++ {
		pix[i*3], pix[i*3+1], pix[i*3+2] = r, g, b
	}
	return models.RawImage{Width: w, Height: h, Channels: 3, Pix: pix}
}

func TestNormalize_CanonicalSize(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		kernel Resample
	}{
		{"upscale bilinear", 10, 20, ResampleBilinear},
		{"downscale bilinear", 640, 480, ResampleBilinear},
		{"upscale nearest", 7, 3, ResampleNearest},
		{"already canonical", 224, 224, ResampleBilinear},
		{"single pixel", 1, 1, ResampleNearest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(DefaultOptions().WithResample(tt.kernel))
			raw := solidRGB(tt.w, tt.h, 10, 20, 30)
			got, err := n.Normalize(raw)
			if err != nil {
				t.Fatalf("Normalize returned error: %v", err)
			}
			if got.Width != models.CanonicalWidth || got.Height != models.CanonicalHeight {
				t.Fatalf("expected %dx%d, got %dx%d", models.CanonicalWidth, models.CanonicalHeight, got.Width, got.Height)
			}
			if len(got.Gray) != 224*224 || len(got.Alpha) != 224*224 {
				t.Fatalf("unexpected plane sizes gray=%d alpha=%d", len(got.Gray), len(got.Alpha))
			}
		})
	}
}

func TestNormalize_UniformImageIsIdentity(t *testing.T) {
	for _, kernel := range []Resample{ResampleBilinear, ResampleNearest} {
		n := NewNormalizer(DefaultOptions().WithResample(kernel))
		// (90+120+150)/3 = 120
		got, err := n.Normalize(solidRGB(50, 37, 90, 120, 150))
		if err != nil {
			t.Fatalf("%s: Normalize returned error: %v", kernel, err)
		}
		for i, v := range got.Gray {
			if v != 120 {
				t.Fatalf("%s: pixel %d = %d, want 120", kernel, i, v)
			}
		}
	}
}

func TestNormalize_TwoLevelImageStretchesToFullRange(t *testing.T) {
	w, h := 224, 224
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				pix[y*w+x] = 50
			} else {
				pix[y*w+x] = 200
			}
		}
	}
	raw := models.RawImage{Width: w, Height: h, Channels: 1, Pix: pix}

	got, err := NewNormalizer(DefaultOptions()).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if v := got.Intensity(0, 0); v != 0 {
		t.Errorf("dark half = %d, want 0", v)
	}
	if v := got.Intensity(w-1, h-1); v != 255 {
		t.Errorf("bright half = %d, want 255", v)
	}
}

func TestNormalize_PreservesIntensityOrder(t *testing.T) {
	w, h := 224, 224
	pix := make([]uint8, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			pix[i] = uint8(x)
			pix[i+1] = uint8(y)
			pix[i+2] = uint8((x + y) / 2)
		}
	}
	raw := models.RawImage{Width: w, Height: h, Channels: 3, Pix: pix}
	canonical, _ := raw.Image()
	before, _ := grayscale(canonical, 1)

	got, err := NewNormalizer(DefaultOptions()).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	// equalization is a monotone mapping of intensities
	var mapped [levels]int
	for i := range mapped {
		mapped[i] = -1
	}
	for i, v := range before {
		out := int(got.Gray[i])
		if mapped[v] >= 0 && mapped[v] != out {
			t.Fatalf("intensity %d mapped to both %d and %d", v, mapped[v], out)
		}
		mapped[v] = out
	}
	last := -1
	for _, out := range mapped {
		if out < 0 {
			continue
		}
		if out < last {
			t.Fatalf("mapping is not monotone: %d after %d", out, last)
		}
		last = out
	}
	if last != 255 {
		t.Errorf("brightest intensity maps to %d, want 255", last)
	}
}

func TestNormalize_PreservesAlpha(t *testing.T) {
	w, h := 224, 224
	pix := make([]uint8, w*h*4)
	for i := 0; i < w*h; i++ {
		pix[i*4], pix[i*4+1], pix[i*4+2], pix[i*4+3] = 200, 100, 0, 128
	}
	raw := models.RawImage{Width: w, Height: h, Channels: 4, Pix: pix}

	got, err := NewNormalizer(DefaultOptions()).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	for i, a := range got.Alpha {
		if a != 128 {
			t.Fatalf("alpha at %d = %d, want 128", i, a)
		}
	}
	if got.Gray[0] != 100 {
		t.Errorf("gray = %d, want 100", got.Gray[0])
	}
}

func TestNormalize_DeterministicAndInputUntouched(t *testing.T) {
	w, h := 31, 17
	pix := make([]uint8, w*h*3)
	for i := range pix {
		pix[i] = uint8(i * 7)
	}
	raw := models.RawImage{Width: w, Height: h, Channels: 3, Pix: pix}
	snapshot := append([]uint8(nil), pix...)

	n := NewNormalizer(DefaultOptions())
	a, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	b, err := NewNormalizer(DefaultOptions().WithMaxWorkers(1)).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if !bytes.Equal(a.Gray, b.Gray) {
		t.Error("two normalizations of the same input differ")
	}
	if !bytes.Equal(raw.Pix, snapshot) {
		t.Error("input pixel buffer was modified")
	}
}

func TestNormalize_InvalidImage(t *testing.T) {
	tests := []struct {
		name string
		raw  models.RawImage
	}{
		{"zero width", models.RawImage{Width: 0, Height: 10, Channels: 3}},
		{"short buffer", models.RawImage{Width: 2, Height: 2, Channels: 3, Pix: make([]uint8, 5)}},
		{"bad channels", models.RawImage{Width: 1, Height: 1, Channels: 5, Pix: make([]uint8, 5)}},
	}

	n := NewNormalizer(DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperrors.IsType(err, apperrors.ErrorTypeInvalidImage) {
				t.Errorf("expected invalid_image error, got %v", err)
			}
		})
	}
}

func TestNormalizeWithReport(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	_, report, err := n.NormalizeWithReport(solidRGB(8, 8, 60, 60, 60))
	if err != nil {
		t.Fatalf("NormalizeWithReport returned error: %v", err)
	}
	if !report.UniformInput || report.OccupiedBins != 1 {
		t.Errorf("uniform report = %+v", report)
	}
	if report.MeanBefore != 60 || report.StdDevBefore != 0 || report.MeanAfter != 60 {
		t.Errorf("unexpected moments %+v", report)
	}
	if report.OriginalWidth != 8 || report.OriginalHeight != 8 {
		t.Errorf("original size = %dx%d", report.OriginalWidth, report.OriginalHeight)
	}
}

func TestGrayscaleRounding(t *testing.T) {
	raw := models.RawImage{Width: 3, Height: 1, Channels: 3, Pix: []uint8{
		1, 1, 2, // 4/3 -> 1
		1, 2, 2, // 5/3 -> 2
		255, 255, 255,
	}}
	img, err := raw.Image()
	if err != nil {
		t.Fatal(err)
	}
	gray, _ := grayscale(img, 4)
	want := []uint8{1, 2, 255}
	if !bytes.Equal(gray, want) {
		t.Errorf("grayscale = %v, want %v", gray, want)
	}
}

func TestParseResample(t *testing.T) {
	tests := []struct {
		in      string
		want    Resample
		wantErr bool
	}{
		{"", ResampleBilinear, false},
		{"Bilinear", ResampleBilinear, false},
		{"nearest", ResampleNearest, false},
		{"lanczos", "", true},
	}
	for _, tt := range tests {
		got, err := ParseResample(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseResample(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseResample(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
