package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// EncodedImage is an image serialized for transport as base64 PNG.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG serializes img as a base64 PNG.
func EncodePNG(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// CropImage extracts a region from img and optionally rescales it.
//
// The scale factor is applied with nearest-neighbor sampling so that a quantized
// image keeps exactly its palette after scaling; a scale of 0 or 1 keeps the
// original size.
func CropImage(img image.Image, region Region, scale float64) (image.Image, error) {
	if region.X1 >= region.X2 || region.Y1 >= region.Y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}
	bounds := img.Bounds()
	rect := region.Rect()
	if !rect.In(bounds) {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			region.X1, region.Y1, region.X2, region.Y2, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if scale < 0 {
		return nil, fmt.Errorf("invalid scale %v: must be positive", scale)
	}

	cropped := imaging.Crop(img, rect)
	if scale != 0 && scale != 1 {
		w := max(int(float64(cropped.Bounds().Dx())*scale), 1)
		h := max(int(float64(cropped.Bounds().Dy())*scale), 1)
		cropped = imaging.Resize(cropped, w, h, imaging.NearestNeighbor)
	}
	return cropped, nil
}

// Crop extracts a region from img and returns it as base64 PNG.
func Crop(img image.Image, region Region, scale float64) (*EncodedImage, error) {
	cropped, err := CropImage(img, region, scale)
	if err != nil {
		return nil, err
	}
	return EncodePNG(cropped)
}
