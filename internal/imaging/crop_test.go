package imaging

import (
	"bytes"
	"encoding/base64"
	"image/color"
	"image/png"
	"testing"
)

func TestCrop(t *testing.T) {
	img := createPatternImage(100, 100)

	result, err := Crop(img, Region{X1: 0, Y1: 0, X2: 50, Y2: 50}, 1.0)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	if result.Width != 50 || result.Height != 50 {
		t.Errorf("dimensions: got %dx%d, want 50x50", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	data, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	if got := RGBAt(decoded, 10, 10); got != (RGBColor{255, 0, 0}) {
		t.Errorf("cropped pixel: got %+v, want red", got)
	}
}

func TestCropImage_ScaleKeepsPalette(t *testing.T) {
	img := createPatternImage(100, 100)

	cropped, err := CropImage(img, Region{X1: 25, Y1: 25, X2: 75, Y2: 75}, 3)
	if err != nil {
		t.Fatalf("CropImage failed: %v", err)
	}
	if cropped.Bounds().Dx() != 150 || cropped.Bounds().Dy() != 150 {
		t.Fatalf("scaled dimensions: got %dx%d, want 150x150", cropped.Bounds().Dx(), cropped.Bounds().Dy())
	}

	colors, err := DominantColors(cropped, 0, nil)
	if err != nil {
		t.Fatalf("DominantColors failed: %v", err)
	}
	if colors.Distinct != 4 {
		t.Errorf("nearest-neighbor scaling should keep 4 colors, got %d", colors.Distinct)
	}
}

func TestCrop_ScaleDown(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	result, err := Crop(img, Region{X1: 0, Y1: 0, X2: 100, Y2: 100}, 0.5)
	if err != nil {
		t.Fatalf("Crop with scale down failed: %v", err)
	}
	if result.Width != 50 || result.Height != 50 {
		t.Errorf("scaled dimensions: got %dx%d, want 50x50", result.Width, result.Height)
	}
}

func TestCrop_InvalidRegion(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name   string
		region Region
		scale  float64
	}{
		{"x1 negative", Region{-1, 0, 50, 50}, 1},
		{"y1 negative", Region{0, -1, 50, 50}, 1},
		{"x2 too large", Region{0, 0, 101, 50}, 1},
		{"y2 too large", Region{0, 0, 50, 101}, 1},
		{"inverted x", Region{50, 0, 10, 50}, 1},
		{"empty", Region{10, 10, 10, 10}, 1},
		{"negative scale", Region{0, 0, 50, 50}, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(img, tt.region, tt.scale); err == nil {
				t.Error("Crop should fail")
			}
		})
	}
}
