package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anthonynsimon/bild/blend"
	"github.com/disintegration/imaging"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/captcha-tools-mcp/internal/config"
	imgutil "github.com/ironsheep/captcha-tools-mcp/internal/imaging"
	"github.com/ironsheep/captcha-tools-mcp/internal/ocr"
	"github.com/ironsheep/captcha-tools-mcp/internal/quantize"
	"github.com/ironsheep/captcha-tools-mcp/internal/segment"
)

// boundsColor outlines recognized words in debug dumps.
var boundsColor = color.NRGBA{R: 0, G: 0, B: 255, A: 255}

// candidatePadding is added around each text candidate before it is read.
const candidatePadding = 2

// Upscale resizes the image by a constant factor with nearest-neighbor
// sampling, so a quantized palette survives unchanged.
type Upscale struct {
	Factor float64
}

// UpscaleResult is stored by Upscale.
type UpscaleResult struct {
	Factor float64     `json:"factor"`
	From   image.Point `json:"from"`
	To     image.Point `json:"to"`
}

func (f *Upscale) Name() string { return config.FilterUpscale }

func (f *Upscale) Process(img image.Image, storage *Storage) (image.Image, error) {
	if f.Factor <= 0 {
		return nil, fmt.Errorf("upscale factor must be positive, got %v", f.Factor)
	}
	b := img.Bounds()
	res := UpscaleResult{Factor: f.Factor, From: b.Size(), To: b.Size()}

	out := img
	if f.Factor != 1 {
		w := int(math.Round(float64(b.Dx()) * f.Factor))
		h := int(math.Round(float64(b.Dy()) * f.Factor))
		out = imaging.Resize(img, max(w, 1), max(h, 1), imaging.NearestNeighbor)
		res.To = out.Bounds().Size()
	}

	storage.Put(f.Name(), res)
	return out, nil
}

// Quantize reduces the image palette.
type Quantize struct {
	Quantizer *quantize.Quantizer
}

// QuantizeResult is stored by Quantize.
type QuantizeResult struct {
	Result  *quantize.Result
	Palette []quantize.ClusterColor
}

func (f *Quantize) Name() string { return config.FilterQuantize }

func (f *Quantize) Process(img image.Image, storage *Storage) (image.Image, error) {
	res, err := f.Quantizer.Quantize(imgutil.ToRGB(img))
	if err != nil {
		return nil, err
	}
	storage.Put(f.Name(), &QuantizeResult{Result: res, Palette: f.Quantizer.Palette(res)})
	return res.Image, nil
}

// Dump writes palette.yaml with the output colors and the refinement trace.
func (f *Quantize) Dump(dir string, img image.Image, storage *Storage) error {
	res, ok := Lookup[*QuantizeResult](storage, f.Name())
	if !ok {
		return nil
	}
	doc := struct {
		ColorsBefore int                     `yaml:"colors_before"`
		Seeds        int                     `yaml:"seeds"`
		Iterations   int                     `yaml:"iterations"`
		Converged    bool                    `yaml:"converged"`
		Inertia      []float64               `yaml:"inertia"`
		Palette      []quantize.ClusterColor `yaml:"palette"`
	}{
		ColorsBefore: len(res.Result.Histogram.Samples),
		Seeds:        res.Result.Seeds,
		Iterations:   res.Result.Iterations,
		Converged:    res.Result.Converged,
		Inertia:      res.Result.Inertia,
		Palette:      res.Palette,
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "palette.yaml"), data, 0o644)
}

// Segment splits the image into same-color segments and finds the regions
// likely to hold text. The image passes through unchanged.
type Segment struct {
	Options segment.Options
}

// SegmentResult is stored by Segment.
type SegmentResult struct {
	*segment.Segmentation
	Candidates []segment.Group `json:"candidates"`

	// Graphical lists, in ascending order, the segments that are not text.
	// Text recognition adds the segments of candidates it could not read.
	Graphical []int `json:"graphical"`

	// Recognized lists the indices into Candidates text recognition read
	// text from.
	Recognized []int `json:"recognized,omitempty"`
}

func (f *Segment) Name() string { return config.FilterSegment }

func (f *Segment) Process(img image.Image, storage *Storage) (image.Image, error) {
	s := segment.Segmentize(img)
	candidates := segment.TextCandidates(s, f.Options)
	storage.Put(f.Name(), &SegmentResult{
		Segmentation: s,
		Candidates:   candidates,
		Graphical:    s.Graphical(f.Options, candidates),
	})
	return img, nil
}

// markRecognized records which candidates were read and moves the segments
// of the others to the graphical set.
func (r *SegmentResult) markRecognized(read []int) {
	r.Recognized = read
	ok := make(map[int]bool, len(read))
	for _, i := range read {
		ok[i] = true
	}
	for i, c := range r.Candidates {
		if !ok[i] {
			r.Graphical = append(r.Graphical, c.Segments...)
		}
	}
	sort.Ints(r.Graphical)
}

// graphicalImage paints the graphical segments in their own color on a
// white canvas the size of the segmented image.
func (r *SegmentResult) graphicalImage() *image.NRGBA {
	out := imaging.New(r.Rect.Dx(), r.Rect.Dy(), color.White)
	graphical := make(map[int]bool, len(r.Graphical))
	for _, i := range r.Graphical {
		graphical[i] = true
	}
	for y := r.Rect.Min.Y; y < r.Rect.Max.Y; y++ {
		for x := r.Rect.Min.X; x < r.Rect.Max.X; x++ {
			if i := r.Label(x, y); graphical[i] {
				c := r.Segments[i].Color
				out.SetNRGBA(x-r.Rect.Min.X, y-r.Rect.Min.Y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
			}
		}
	}
	return out
}

// Dump writes candidates.png with every text candidate outlined and
// segments.yaml with the per-color summary. Vertical lists the indices of
// vertical candidates.
func (f *Segment) Dump(dir string, img image.Image, storage *Storage) error {
	res, ok := Lookup[*SegmentResult](storage, f.Name())
	if !ok {
		return nil
	}

	out := imaging.Clone(img)
	b := out.Bounds()
	for _, c := range res.Candidates {
		rect := image.Rect(c.Bounds.X1, c.Bounds.Y1, c.Bounds.X2-1, c.Bounds.Y2-1)
		drawOutline(out, rect.Intersect(b))
	}
	if err := imgutil.Save(out, filepath.Join(dir, "candidates.png")); err != nil {
		return err
	}

	doc := struct {
		Segments   int                     `yaml:"segments"`
		Graphical  int                     `yaml:"graphical"`
		Colors     []segment.ColorSegments `yaml:"colors"`
		Candidates []segment.Bounds        `yaml:"candidates"`
		Vertical   []int                   `yaml:"vertical,flow"`
	}{
		Segments:  len(res.Segments),
		Graphical: len(res.Graphical),
		Colors:    res.Colors(),
	}
	for i, c := range res.Candidates {
		doc.Candidates = append(doc.Candidates, c.Bounds)
		if c.Vertical {
			doc.Vertical = append(doc.Vertical, i)
		}
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "segments.yaml"), data, 0o644)
}

// TextRecognition reads the text of the image. The image passes through
// unchanged.
//
// When an earlier segment filter found text candidates, each candidate is
// read on its own and the texts are joined with spaces. The whole image is
// read when there are no candidates or none of them yields text.
type TextRecognition struct {
	Options ocr.Options
}

func (f *TextRecognition) Name() string { return config.FilterTextRecognition }

func (f *TextRecognition) Process(img image.Image, storage *Storage) (image.Image, error) {
	res, read, err := f.recognizeCandidates(img, candidateRegions(img, storage))
	if err != nil {
		return nil, err
	}
	if seg, ok := Lookup[*SegmentResult](storage, config.FilterSegment); ok {
		seg.markRecognized(read)
	}
	if res == nil {
		if res, err = ocr.Recognize(img, f.Options); err != nil {
			return nil, err
		}
	}
	storage.Put(f.Name(), res)
	return img, nil
}

// recognizeCandidates reads each candidate on its own, vertical ones with
// the rotated passes first. It also returns the indices of the candidates
// that yielded text.
func (f *TextRecognition) recognizeCandidates(img image.Image, cands []textCandidate) (*ocr.OCRResult, []int, error) {
	var (
		texts  []string
		read   []int
		result ocr.OCRResult
	)
	for _, c := range cands {
		extract := ocr.ExtractTextFromRegion
		if c.vertical {
			extract = ocr.ExtractVerticalTextFromRegion
		}
		res, err := extract(img, c.region, f.Options)
		if err != nil {
			return nil, nil, err
		}
		if text := res.Text(); text != "" {
			texts = append(texts, text)
			read = append(read, c.index)
			result.Regions = append(result.Regions, candidateWords(c.region, res)...)
		}
	}
	if len(texts) == 0 {
		return nil, nil, nil
	}
	result.FullText = strings.Join(texts, " ")
	return &result, read, nil
}

// candidateWords returns the word boxes read in region in image coordinates.
// Boxes from a rotated pass are in the rotated crop's frame, so the region
// itself stands in for them as a single word.
func candidateWords(region image.Rectangle, res *ocr.OCRResult) []ocr.TextRegion {
	if res.Rotation == 0 {
		return res.Regions
	}
	return []ocr.TextRegion{{
		Text:       res.Text(),
		Confidence: meanConfidence(res.Regions),
		Bounds:     ocr.Bounds{X1: region.Min.X, Y1: region.Min.Y, X2: region.Max.X, Y2: region.Max.Y},
	}}
}

// textCandidate is a text candidate mapped onto the image being read.
type textCandidate struct {
	index    int
	region   image.Rectangle
	vertical bool
}

// candidateRegions maps stored text candidates onto img, which may have been
// resized since it was segmented. Regions are padded and clipped to img.
func candidateRegions(img image.Image, storage *Storage) []textCandidate {
	res, ok := Lookup[*SegmentResult](storage, config.FilterSegment)
	if !ok || len(res.Candidates) == 0 || res.Rect.Empty() {
		return nil
	}

	b := img.Bounds()
	sx := float64(b.Dx()) / float64(res.Rect.Dx())
	sy := float64(b.Dy()) / float64(res.Rect.Dy())

	var regions []textCandidate
	for i, c := range res.Candidates {
		r := image.Rect(
			b.Min.X+int(math.Floor(float64(c.Bounds.X1-res.Rect.Min.X)*sx)),
			b.Min.Y+int(math.Floor(float64(c.Bounds.Y1-res.Rect.Min.Y)*sy)),
			b.Min.X+int(math.Ceil(float64(c.Bounds.X2-res.Rect.Min.X)*sx)),
			b.Min.Y+int(math.Ceil(float64(c.Bounds.Y2-res.Rect.Min.Y)*sy)),
		).Inset(-candidatePadding).Intersect(b)
		if !r.Empty() {
			regions = append(regions, textCandidate{index: i, region: r, vertical: c.Vertical})
		}
	}
	return regions
}

// Dump writes recognized.png: the image with every recognized word outlined.
// After a segment filter it also writes graphical.png with the segments that
// are not text, and difference.png, which outlines only the candidates that
// yielded no text.
func (f *TextRecognition) Dump(dir string, img image.Image, storage *Storage) error {
	if res, ok := Lookup[*ocr.OCRResult](storage, f.Name()); ok && res.Rotation == 0 {
		out := imaging.Clone(img)
		b := out.Bounds()
		for _, r := range res.Regions {
			rect := image.Rect(r.Bounds.X1, r.Bounds.Y1, r.Bounds.X2-1, r.Bounds.Y2-1)
			drawOutline(out, rect.Intersect(b))
		}
		if err := imgutil.Save(out, filepath.Join(dir, "recognized.png")); err != nil {
			return err
		}
	}

	seg, ok := Lookup[*SegmentResult](storage, config.FilterSegment)
	if !ok {
		return nil
	}
	if err := imgutil.Save(seg.graphicalImage(), filepath.Join(dir, "graphical.png")); err != nil {
		return err
	}
	return imgutil.Save(candidateDifference(img, candidateRegions(img, storage), seg.Recognized),
		filepath.Join(dir, "difference.png"))
}

// candidateDifference outlines every candidate on one copy of img and the
// recognized ones on another, and returns the per-channel difference.
func candidateDifference(img image.Image, cands []textCandidate, recognized []int) image.Image {
	read := make(map[int]bool, len(recognized))
	for _, i := range recognized {
		read[i] = true
	}

	all, found := imaging.Clone(img), imaging.Clone(img)
	b := all.Bounds()
	for _, c := range cands {
		rect := image.Rect(c.region.Min.X, c.region.Min.Y, c.region.Max.X-1, c.region.Max.Y-1).Sub(img.Bounds().Min)
		drawOutline(all, rect.Intersect(b))
		if read[c.index] {
			drawOutline(found, rect.Intersect(b))
		}
	}
	return blend.Difference(all, found)
}

func drawOutline(img *image.NRGBA, r image.Rectangle) {
	if r.Empty() {
		return
	}
	for x := r.Min.X; x <= r.Max.X; x++ {
		img.SetNRGBA(x, r.Min.Y, boundsColor)
		img.SetNRGBA(x, r.Max.Y, boundsColor)
	}
	for y := r.Min.Y; y <= r.Max.Y; y++ {
		img.SetNRGBA(r.Min.X, y, boundsColor)
		img.SetNRGBA(r.Max.X, y, boundsColor)
	}
}
