package ocr

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// skipIfUnavailable skips the test when the error comes from a missing
// Tesseract installation or language data.
func skipIfUnavailable(t *testing.T, err error) {
	t.Helper()
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "tesseract") ||
		strings.Contains(msg, "library") ||
		strings.Contains(msg, "language") ||
		strings.Contains(msg, "tessdata") {
		t.Skip("Tesseract not available: " + err.Error())
	}
}

// drawText draws text on an image using basicfont
func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// createTextImage renders text in black on white and scales it up by
// drawing each pixel as a scale x scale block.
func createTextImage(text string, scale int) *image.RGBA {
	w, h := len(text)*7+40, 40

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	drawText(small, 20, 25, text, color.Black)

	img := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := small.RGBAAt(x, y)
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetRGBA(x*scale+dx, y*scale+dy, c)
				}
			}
		}
	}
	return img
}

func writeTempPNG(t *testing.T, img image.Image) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "ocr-test-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	if err := png.Encode(tmpFile, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return tmpFile.Name()
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Language != "eng" {
		t.Errorf("Language: got %q, want eng", opts.Language)
	}
	if opts.PageSegMode != 7 {
		t.Errorf("PageSegMode: got %d, want 7 (single line)", opts.PageSegMode)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("default options should be valid: %v", err)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", DefaultOptions(), false},
		{"tesseract default psm", Options{Language: "eng"}, false},
		{"multiple languages", Options{Language: "eng+deu", PageSegMode: 8}, false},
		{"raw line", Options{Language: "eng", PageSegMode: 13}, false},
		{"empty language", Options{Language: "  "}, true},
		{"negative psm", Options{Language: "eng", PageSegMode: -1}, true},
		{"psm too large", Options{Language: "eng", PageSegMode: 14}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOCRResult_Text(t *testing.T) {
	r := &OCRResult{FullText: "  AB12\n\n"}
	if got := r.Text(); got != "AB12" {
		t.Errorf("Text(): got %q, want AB12", got)
	}
}

func TestRecognize_NilImage(t *testing.T) {
	if _, err := Recognize(nil, DefaultOptions()); err == nil {
		t.Error("Recognize should fail for nil image")
	}
}

func TestRecognize_InvalidOptions(t *testing.T) {
	img := createTextImage("AB", 2)
	if _, err := Recognize(img, Options{}); err == nil {
		t.Error("Recognize should fail for empty language")
	}
}

func TestRecognize_RenderedText(t *testing.T) {
	testCases := []string{"TEST", "12345", "ABC123"}

	for _, text := range testCases {
		t.Run(text, func(t *testing.T) {
			result, err := Recognize(createTextImage(text, 4), DefaultOptions())
			if err != nil {
				skipIfUnavailable(t, err)
				t.Fatalf("Recognize failed: %v", err)
			}
			if result.Rotation != 0 {
				t.Errorf("Rotation: got %d, want 0", result.Rotation)
			}
			t.Logf("Input: %q, Output: %q", text, result.Text())
		})
	}
}

func TestRecognize_Whitelist(t *testing.T) {
	opts := DefaultOptions()
	opts.Whitelist = "0123456789"

	result, err := Recognize(createTextImage("2024", 4), opts)
	if err != nil {
		skipIfUnavailable(t, err)
		t.Fatalf("Recognize failed: %v", err)
	}

	for _, r := range result.Text() {
		if !strings.ContainsRune(opts.Whitelist+" \n", r) {
			t.Errorf("character %q is outside the whitelist in %q", r, result.Text())
		}
	}
}

func TestRecognize_BlankImageWithRotations(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 120, 60))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	opts := DefaultOptions()
	opts.TryRotations = true

	result, err := Recognize(img, opts)
	if err != nil {
		skipIfUnavailable(t, err)
		t.Fatalf("Recognize failed: %v", err)
	}
	if result.Rotation != 0 {
		t.Errorf("Rotation should be reset when nothing is read, got %d", result.Rotation)
	}
}

func TestRecognizeVertical_RotatedText(t *testing.T) {
	img := imaging.Rotate90(createTextImage("HELLO", 3))

	result, err := RecognizeVertical(img, DefaultOptions())
	if err != nil {
		skipIfUnavailable(t, err)
		t.Fatalf("RecognizeVertical failed: %v", err)
	}
	if strings.Contains(result.Text(), "HELLO") && result.Rotation == 0 {
		t.Error("rotated passes should read the text before the upright one")
	}
	t.Logf("Output: %q at %d degrees", result.Text(), result.Rotation)
}

func TestRecognizeVertical_BlankImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 60, 120))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	result, err := RecognizeVertical(img, DefaultOptions())
	if err != nil {
		skipIfUnavailable(t, err)
		t.Fatalf("RecognizeVertical failed: %v", err)
	}
	if result.Rotation != 0 {
		t.Errorf("Rotation should be reset when nothing is read, got %d", result.Rotation)
	}
}

func TestRecognizeVertical_NilImage(t *testing.T) {
	if _, err := RecognizeVertical(nil, DefaultOptions()); err == nil {
		t.Error("RecognizeVertical should fail for nil image")
	}
}

func TestExtractText(t *testing.T) {
	imgPath := writeTempPNG(t, createTextImage("HELLO", 3))

	result, err := ExtractText(imgPath, DefaultOptions())
	if err != nil {
		skipIfUnavailable(t, err)
		t.Fatalf("ExtractText failed: %v", err)
	}
	if result == nil {
		t.Fatal("ExtractText returned nil result")
	}
	t.Logf("Extracted text: %q, regions: %d", result.FullText, len(result.Regions))
}

func TestExtractText_NonExistentFile(t *testing.T) {
	_, err := ExtractText("/nonexistent/path/image.png", DefaultOptions())
	if err == nil {
		t.Error("ExtractText should fail for non-existent file")
	}
}

func TestExtractTextFromRegion_InvalidRegion(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))

	tests := []struct {
		name   string
		region image.Rectangle
	}{
		{"empty", image.Rect(10, 10, 10, 20)},
		{"outside", image.Rect(40, 40, 60, 60)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ExtractTextFromRegion(img, tt.region, DefaultOptions()); err == nil {
				t.Errorf("ExtractTextFromRegion should fail for region %v", tt.region)
			}
			if _, err := ExtractVerticalTextFromRegion(img, tt.region, DefaultOptions()); err == nil {
				t.Errorf("ExtractVerticalTextFromRegion should fail for region %v", tt.region)
			}
		})
	}
}

func TestExtractTextFromRegion_BoundsAdjustment(t *testing.T) {
	text := createTextImage("HELLO", 3)
	img := image.NewRGBA(image.Rect(0, 0, text.Bounds().Dx()+200, text.Bounds().Dy()+100))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	offsetX, offsetY := 100, 50
	draw.Draw(img, text.Bounds().Add(image.Pt(offsetX, offsetY)), text, image.Point{}, draw.Src)

	region := image.Rect(offsetX, offsetY, offsetX+text.Bounds().Dx(), offsetY+text.Bounds().Dy())
	result, err := ExtractTextFromRegion(img, region, DefaultOptions())
	if err != nil {
		skipIfUnavailable(t, err)
		t.Fatalf("ExtractTextFromRegion failed: %v", err)
	}

	// Any regions returned should have coordinates offset by (100, 50)
	for _, r := range result.Regions {
		if r.Bounds.X1 < offsetX {
			t.Errorf("Region X1 (%d) should be >= offset (%d)", r.Bounds.X1, offsetX)
		}
		if r.Bounds.Y1 < offsetY {
			t.Errorf("Region Y1 (%d) should be >= offset (%d)", r.Bounds.Y1, offsetY)
		}
	}
}
