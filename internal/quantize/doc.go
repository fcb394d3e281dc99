// Package quantize reduces the palette of a CAPTCHA image to a few
// representative colors before segmentation and OCR.
//
// A quantization pass has four stages:
//
//  1. Histogram: every distinct color is counted and encoded once into the
//     working colorspace (LAB by default).
//  2. Seeding: frequent colors are grouped greedily around the most frequent
//     ones. Two thresholds drive it: threshold1, the minimal share of pixels
//     (percent) for a color to take part, and threshold2, the maximal distance
//     (percent of the largest distance possible in the colorspace) for a color
//     to join a group. The number of groups is not fixed in advance.
//  3. Refinement: Lloyd's iteration over all colors, rare ones included, until
//     no color changes cluster. Clusters that lose every color are dropped.
//  4. Remap: each distinct input color is resolved once to its cluster's color
//     and every pixel is rewritten into a new image.
//
// The histogram scan, the assignment step and the remap write are spread over
// all CPUs; centroid updates and iterations are sequential, so results do not
// depend on the number of CPUs.
package quantize
