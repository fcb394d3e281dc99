// Package imaging provides the image plumbing shared by the CAPTCHA tools.
//
// It covers loading and saving images, color-mode detection, exact color
// counting, pixel sampling, cropping and PNG/base64 encoding. The quantizer and
// the pipeline build on these helpers rather than touching decoders directly.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner. Regions use
// an inclusive top-left corner (X1, Y1) and an exclusive bottom-right corner (X2, Y2).
//
// # Color Modes
//
// Go decoders return many concrete image types. ColorMode folds them into a small
// set of modes: every red/green/blue model (including YCbCr from JPEG) is "RGB",
// grayscale is "L", paletted is "P". The quantizer only accepts "RGB"; use ToRGB to
// convert anything else first.
//
// # Color Representation
//
// RGBColor is the 8-bit, alpha-free color used as the key for counting and caching.
// Colors in tool output are also reported as hex "#RRGGBB" and HSL.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. All other functions are stateless and
// never mutate their input image.
package imaging
