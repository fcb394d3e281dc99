// Package segment splits quantized images into regions of equal color and
// finds the regions likely to hold text.
//
// After quantization a CAPTCHA holds a handful of colors, so every letter
// stroke becomes one or a few connected segments. TextCandidates keeps the
// letter-sized segments and chains them into words and lines, which the
// text recognition filter then reads one by one.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Bounding boxes use inclusive top-left and exclusive bottom-right
//
// Bounds are reported in the coordinates of the segmented image, including a
// non-zero image origin.
package segment
