// Package ocr provides Optical Character Recognition (OCR) functionality using Tesseract.
//
// This package wraps the Tesseract OCR engine (via gosseract/v2) to read the
// answer text out of a CAPTCHA once its palette has been reduced. It supports
// in-memory recognition, file-based recognition and region-based recognition.
//
// # Prerequisites
//
// Tesseract and its development headers must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr libtesseract-dev
//   - macOS: brew install tesseract
//
// Language data files are required for each language:
//   - Ubuntu/Debian: apt-get install tesseract-ocr-eng (for English)
//   - Other languages: tesseract-ocr-<lang> packages
//
// Options.TessdataPrefix points Tesseract at a custom data directory.
//
// # Options
//
// CAPTCHA answers are short and usually drawn on a single line, so
// DefaultOptions selects the single-line page segmentation mode. A character
// whitelist (for example "0123456789") removes whole classes of confusions
// when the alphabet of a CAPTCHA family is known. TryRotations handles
// vertical text by retrying on the image turned by 270 and 90 degrees.
//
// # Functions
//
//   - Recognize: OCR on an in-memory image, used by the solving pipeline
//   - ExtractText: OCR on an image file
//   - ExtractTextFromRegion: OCR on a rectangular region, bounds mapped back
//     to the source image
//
// # Error Handling
//
// Functions return errors for invalid options, missing images, unsupported
// language codes and Tesseract initialization failures. If bounding box
// extraction fails, the recognized text is still returned with an empty
// Regions slice.
package ocr
