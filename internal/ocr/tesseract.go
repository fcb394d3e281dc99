package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguage is the Tesseract language used when none is configured.
const DefaultLanguage = "eng"

// maxPageSegMode is the highest page segmentation mode Tesseract knows (PSM_RAW_LINE).
const maxPageSegMode = int(gosseract.PSM_RAW_LINE)

// Options configures one OCR call.
type Options struct {
	// Language is a Tesseract language code such as "eng". Several languages
	// can be joined with "+", e.g. "eng+deu".
	Language string `yaml:"language" json:"language"`

	// Whitelist restricts recognition to these characters. Empty means any.
	Whitelist string `yaml:"whitelist" json:"whitelist,omitempty"`

	// PageSegMode is the Tesseract page segmentation mode (1-13). Zero keeps
	// the Tesseract default.
	PageSegMode int `yaml:"page_seg_mode" json:"page_seg_mode,omitempty"`

	// TessdataPrefix overrides the directory holding *.traineddata files.
	TessdataPrefix string `yaml:"tessdata_prefix" json:"tessdata_prefix,omitempty"`

	// TryRotations retries recognition on the image rotated by 270 and then
	// 90 degrees when nothing is read upright. CAPTCHAs sometimes carry
	// vertical words.
	TryRotations bool `yaml:"try_rotations" json:"try_rotations,omitempty"`
}

// DefaultOptions returns options tuned for single-line CAPTCHA text.
func DefaultOptions() Options {
	return Options{
		Language:    DefaultLanguage,
		PageSegMode: int(gosseract.PSM_SINGLE_LINE),
	}
}

// Validate reports option values Tesseract would reject.
func (o Options) Validate() error {
	if strings.TrimSpace(o.Language) == "" {
		return errors.New("ocr language must not be empty")
	}
	if o.PageSegMode < 0 || o.PageSegMode > maxPageSegMode {
		return fmt.Errorf("ocr page segmentation mode must be within [0, %d], got %d", maxPageSegMode, o.PageSegMode)
	}
	return nil
}

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// TextRegion represents a word with its location and OCR confidence.
type TextRegion struct {
	// Text is the recognized word.
	Text string `json:"text"`

	// Confidence is the OCR confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// Bounds is the bounding box around the word.
	Bounds Bounds `json:"bounds"`
}

// OCRResult contains the results of text extraction from an image.
type OCRResult struct {
	// FullText is all recognized text with original spacing and newlines.
	FullText string `json:"full_text"`

	// Regions contains individual words with their bounding boxes and confidence scores.
	// May be empty if bounding box extraction fails (text will still be in FullText).
	Regions []TextRegion `json:"regions"`

	// Rotation is the clockwise rotation, in degrees, the text was read at.
	// Word bounds are in the rotated frame when it is not zero.
	Rotation int `json:"rotation,omitempty"`
}

// Text returns the recognized text with surrounding whitespace removed.
func (r *OCRResult) Text() string {
	return strings.TrimSpace(r.FullText)
}

func newClient(opts Options) (*gosseract.Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(strings.Split(opts.Language, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if opts.Whitelist != "" {
		if err := client.SetWhitelist(opts.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	if opts.PageSegMode != 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
	}
	return client, nil
}

// read runs recognition on whatever image is set on client.
func read(client *gosseract.Client) (*OCRResult, error) {
	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Return just text if boxes fail
		return &OCRResult{FullText: text, Regions: []TextRegion{}}, nil
	}

	regions := make([]TextRegion, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		regions = append(regions, TextRegion{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds: Bounds{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}

	return &OCRResult{FullText: text, Regions: regions}, nil
}

// rotation is one recognition pass; a nil rotate reads the image upright.
type rotation struct {
	angle  int
	rotate func(image.Image) *image.NRGBA
}

// Recognize performs OCR on an in-memory image.
//
// The image is handed to Tesseract as PNG bytes, so no temporary file is
// written. With TryRotations set, an upright pass that reads nothing is
// followed by passes on the image rotated by 270 and 90 degrees; the first
// pass that reads any text wins and its angle is reported in Rotation.
func Recognize(img image.Image, opts Options) (*OCRResult, error) {
	passes := []rotation{{angle: 0}}
	if opts.TryRotations {
		passes = append(passes, rotation{270, imaging.Rotate270}, rotation{90, imaging.Rotate90})
	}
	return recognize(img, opts, passes)
}

// RecognizeVertical reads text laid out top to bottom. The passes at 270 and
// 90 degrees run before the upright one, whatever TryRotations says.
func RecognizeVertical(img image.Image, opts Options) (*OCRResult, error) {
	return recognize(img, opts, []rotation{
		{270, imaging.Rotate270}, {90, imaging.Rotate90}, {angle: 0},
	})
}

func recognize(img image.Image, opts Options, passes []rotation) (*OCRResult, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}

	client, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var result *OCRResult
	for _, pass := range passes {
		var buf bytes.Buffer
		src := img
		if pass.rotate != nil {
			src = pass.rotate(img)
		}
		if err := imaging.Encode(&buf, src, imaging.PNG); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
			return nil, fmt.Errorf("failed to set image: %w", err)
		}

		result, err = read(client)
		if err != nil {
			return nil, err
		}
		result.Rotation = pass.angle
		if result.Text() != "" {
			break
		}
	}
	if result.Text() == "" {
		result.Rotation = 0
	}
	return result, nil
}

// ExtractText performs OCR on an image file and returns recognized text.
//
// Parameters:
//   - imagePath: Path to the image file. Supports PNG, JPEG, TIFF, BMP.
//   - opts: Language and recognition settings. The language data must be
//     installed on the system.
//
// If word-level bounding box extraction fails (which can happen with some
// Tesseract configurations), the full text is still returned with an empty
// Regions slice.
func ExtractText(imagePath string, opts Options) (*OCRResult, error) {
	client, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	return read(client)
}

// ExtractTextFromRegion performs OCR on a rectangular region of an image.
//
// The returned bounding boxes are adjusted to the original image coordinates.
// For example, if the region starts at (100, 50) and a word is detected at
// (10, 20) within the cropped region, the returned bounds will be (110, 70).
func ExtractTextFromRegion(img image.Image, region image.Rectangle, opts Options) (*OCRResult, error) {
	return extractFromRegion(img, region, opts, Recognize)
}

// ExtractVerticalTextFromRegion is ExtractTextFromRegion for text laid out
// top to bottom; see RecognizeVertical.
func ExtractVerticalTextFromRegion(img image.Image, region image.Rectangle, opts Options) (*OCRResult, error) {
	return extractFromRegion(img, region, opts, RecognizeVertical)
}

func extractFromRegion(img image.Image, region image.Rectangle, opts Options,
	recognizeFn func(image.Image, Options) (*OCRResult, error)) (*OCRResult, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	if region.Empty() || !region.In(img.Bounds()) {
		return nil, fmt.Errorf("region %v must be non-empty and inside image bounds %v", region, img.Bounds())
	}

	result, err := recognizeFn(imaging.Crop(img, region), opts)
	if err != nil {
		return nil, err
	}

	if result.Rotation == 0 {
		for i := range result.Regions {
			result.Regions[i].Bounds.X1 += region.Min.X
			result.Regions[i].Bounds.Y1 += region.Min.Y
			result.Regions[i].Bounds.X2 += region.Min.X
			result.Regions[i].Bounds.Y2 += region.Min.Y
		}
	}

	return result, nil
}

// TesseractVersion returns the installed Tesseract version.
func TesseractVersion() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}

// Info describes the OCR backend.
type Info struct {
	Backend string `json:"backend"`
	Version string `json:"version"`
}

// GetInfo returns information about the OCR backend.
func GetInfo() Info {
	return Info{Backend: "gosseract", Version: TesseractVersion()}
}
