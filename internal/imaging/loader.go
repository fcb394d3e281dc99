package imaging

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// Color modes reported by ColorMode. The names follow the usual imaging-library
// convention so they read naturally in logs and tool output.
const (
	ModeRGB     = "RGB"
	ModeRGBA    = "RGBA"
	ModeGray    = "L"
	ModePalette = "P"
	ModeCMYK    = "CMYK"
	ModeUnknown = "unknown"
)

// ImageCache provides thread-safe caching of loaded images to avoid redundant disk reads.
//
// The cache stores decoded image.Image objects keyed by their file path. Once an image
// is loaded, subsequent Load() calls for the same path return the cached copy without
// disk I/O.
//
// # Memory Management
//
// Cached images remain in memory until explicitly removed via Evict() or Clear().
// CAPTCHA images are small, but a long-running server solving many of them should
// still evict images it is done with.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load retrieves an image from the cache or loads it from disk if not cached.
//
// Parameters:
//   - path: Path to the image. Supported formats are PNG, JPEG, GIF, BMP, TIFF and WebP.
//
// Returns:
//   - image.Image: The decoded image. EXIF orientation is applied for JPEG files.
//   - error: Non-nil if the file cannot be opened or decoded.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := Open(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Open decodes the image at path.
func Open(path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("image path cannot be empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Save encodes img to path, choosing the format from the file extension and
// creating parent directories as needed.
func Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// ColorMode reports the color mode of img.
//
// Models that store red, green and blue channels map to ModeRGB when every
// pixel is fully opaque and to ModeRGBA otherwise. Grayscale, paletted and
// CMYK images report their own modes. Everything but ModeRGB must be
// converted with ToRGB before quantization.
func ColorMode(img image.Image) string {
	if img == nil {
		return ModeUnknown
	}
	switch img.ColorModel() {
	case color.YCbCrModel:
		return ModeRGB
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model, color.NYCbCrAModel:
		if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
			return ModeRGB
		}
		return ModeRGBA
	case color.GrayModel, color.Gray16Model, color.AlphaModel, color.Alpha16Model:
		return ModeGray
	case color.CMYKModel:
		return ModeCMYK
	}
	if _, ok := img.ColorModel().(color.Palette); ok {
		return ModePalette
	}
	return ModeUnknown
}

// ToRGB returns img unchanged if it already is in RGB mode, otherwise an
// opaque RGB copy. Pixels that are not fully opaque are composited onto a
// white background.
func ToRGB(img image.Image) image.Image {
	if img == nil || ColorMode(img) == ModeRGB {
		return img
	}
	out := imaging.Clone(img)
	if out.Opaque() {
		return out
	}
	bg := imaging.New(out.Bounds().Dx(), out.Bounds().Dy(), color.White)
	return imaging.Overlay(bg, out, image.Pt(0, 0), 1.0)
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the format detected from the file extension.
	Format string `json:"format"`

	// Mode is the color mode as reported by ColorMode.
	Mode string `json:"mode"`

	// DistinctColors is the number of distinct RGB colors in the image.
	DistinctColors int `json:"distinct_colors"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through the cache and returns metadata about it.
//
// Parameters:
//   - cache: The image cache to use for loading. Must not be nil.
//   - path: Path to the image file.
//
// Returns:
//   - *ImageInfo: Metadata about the image.
//   - error: Non-nil if the image cannot be loaded or the file cannot be stat'd.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	if f, err := imaging.FormatFromFilename(path); err == nil {
		format = strings.ToLower(f.String())
	}

	colors, err := DominantColors(img, 1, nil)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		Format:         format,
		Mode:           ColorMode(img),
		DistinctColors: colors.Distinct,
		FileSizeBytes:  stat.Size(),
	}, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of an image without additional metadata.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &DimensionsResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
