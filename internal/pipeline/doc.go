// Package pipeline chains the steps that turn a CAPTCHA image into its answer.
//
// A Chain runs Filters in order. Each filter receives the image produced by
// the previous one and may leave results in a Storage shared by the run,
// keyed by filter name. The default chain quantizes the palette, upscales the
// result with nearest-neighbor sampling and reads the text with Tesseract.
// Adding the segment filter before text recognition makes Tesseract read
// each text line found by package segment on its own instead of the whole
// image; the lines follow the image through later resizing.
//
// When a dump directory is configured, the chain writes the image produced by
// every filter to <dump_dir>/<input>/<filter>/after-<filter>.png together with
// the active configuration; filters implementing Dumper add their own files.
// Dump failures are logged and never fail a run.
package pipeline
