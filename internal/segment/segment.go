package segment

import (
	"image"
	"sort"

	"github.com/ironsheep/captcha-tools-mcp/internal/imaging"
)

// Bounds represents a rectangular bounding box in pixel coordinates.
//
// The coordinate convention follows standard image bounds:
//   - (X1, Y1) is the top-left corner (inclusive)
//   - (X2, Y2) is the bottom-right corner (exclusive)
type Bounds struct {
	X1 int `json:"x1"` // Left edge (inclusive)
	Y1 int `json:"y1"` // Top edge (inclusive)
	X2 int `json:"x2"` // Right edge (exclusive)
	Y2 int `json:"y2"` // Bottom edge (exclusive)
}

func (b Bounds) Width() int  { return b.X2 - b.X1 }
func (b Bounds) Height() int { return b.Y2 - b.Y1 }

// Rect converts the bounds to an image.Rectangle.
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// union returns the smallest bounds containing both b and o.
func (b Bounds) union(o Bounds) Bounds {
	return Bounds{
		X1: min(b.X1, o.X1),
		Y1: min(b.Y1, o.Y1),
		X2: max(b.X2, o.X2),
		Y2: max(b.Y2, o.Y2),
	}
}

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Segment is a 4-connected region of pixels sharing one exact color.
type Segment struct {
	// Index is the segment's position in Segmentation.Segments.
	Index int `json:"index"`

	Color  imaging.RGBColor `json:"color"`
	Bounds Bounds           `json:"bounds"`

	// Area is the number of pixels in the segment.
	Area int `json:"area"`

	// Neighbours lists, in ascending order, the indices of segments sharing
	// an edge with this one.
	Neighbours []int `json:"neighbours"`
}

// Segmentation is the partition of an image into segments. Every pixel
// belongs to exactly one segment.
type Segmentation struct {
	// Rect is the bounds of the segmented image.
	Rect     image.Rectangle `json:"-"`
	Segments []Segment       `json:"segments"`

	labels []int
}

// Label returns the index of the segment holding pixel (x, y), or -1 when
// the pixel is outside the image.
func (s *Segmentation) Label(x, y int) int {
	if !(image.Point{X: x, Y: y}).In(s.Rect) {
		return -1
	}
	return s.labels[(y-s.Rect.Min.Y)*s.Rect.Dx()+(x-s.Rect.Min.X)]
}

// Segmentize splits img into segments of equal color.
//
// Segments are numbered in row-major order of their first pixel. Segmentation
// is meant for quantized images; on a raw photo nearly every pixel becomes
// its own segment.
func Segmentize(img image.Image) *Segmentation {
	rect := img.Bounds()
	width, height := rect.Dx(), rect.Dy()

	colors := make([]imaging.RGBColor, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			colors[y*width+x] = imaging.RGBAt(img, x+rect.Min.X, y+rect.Min.Y)
		}
	}

	s := &Segmentation{Rect: rect, labels: make([]int, width*height)}
	for i := range s.labels {
		s.labels[i] = -1
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if s.labels[y*width+x] >= 0 {
				continue
			}
			seg := Segment{Index: len(s.Segments), Color: colors[y*width+x]}
			s.floodFill(colors, x, y, width, height, &seg)
			seg.Bounds.X1 += rect.Min.X
			seg.Bounds.X2 += rect.Min.X
			seg.Bounds.Y1 += rect.Min.Y
			seg.Bounds.Y2 += rect.Min.Y
			s.Segments = append(s.Segments, seg)
		}
	}

	s.linkNeighbours(width, height)
	return s
}

// floodFill labels every pixel reachable from (startX, startY) through
// pixels of the same color and records the segment's bounds and area in
// image-relative coordinates.
//
// Uses a stack-based approach (not recursive) so large backgrounds cannot
// overflow the stack.
func (s *Segmentation) floodFill(colors []imaging.RGBColor, startX, startY, width, height int, seg *Segment) {
	seg.Bounds = Bounds{X1: startX, Y1: startY, X2: startX + 1, Y2: startY + 1}
	s.labels[startY*width+startX] = seg.Index
	stack := []Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		seg.Area++
		seg.Bounds = seg.Bounds.union(Bounds{X1: p.X, Y1: p.Y, X2: p.X + 1, Y2: p.Y + 1})

		for _, n := range [4]Point{{p.X + 1, p.Y}, {p.X - 1, p.Y}, {p.X, p.Y + 1}, {p.X, p.Y - 1}} {
			if n.X < 0 || n.X >= width || n.Y < 0 || n.Y >= height {
				continue
			}
			i := n.Y*width + n.X
			if s.labels[i] >= 0 || colors[i] != seg.Color {
				continue
			}
			s.labels[i] = seg.Index
			stack = append(stack, n)
		}
	}
}

// linkNeighbours fills Segment.Neighbours from horizontally and vertically
// adjacent pixels with different labels.
func (s *Segmentation) linkNeighbours(width, height int) {
	adjacent := make([]map[int]struct{}, len(s.Segments))
	link := func(a, b int) {
		if a == b {
			return
		}
		if adjacent[a] == nil {
			adjacent[a] = make(map[int]struct{})
		}
		if adjacent[b] == nil {
			adjacent[b] = make(map[int]struct{})
		}
		adjacent[a][b] = struct{}{}
		adjacent[b][a] = struct{}{}
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			l := s.labels[y*width+x]
			if x+1 < width {
				link(l, s.labels[y*width+x+1])
			}
			if y+1 < height {
				link(l, s.labels[(y+1)*width+x])
			}
		}
	}

	for i, set := range adjacent {
		n := make([]int, 0, len(set))
		for j := range set {
			n = append(n, j)
		}
		sort.Ints(n)
		s.Segments[i].Neighbours = n
	}
}

// ColorSegments counts the segments of one color.
type ColorSegments struct {
	Color    string `json:"color"`
	Segments int    `json:"segments"`
	Pixels   int    `json:"pixels"`
}

// Colors summarizes the segmentation per color, most fragmented color first.
func (s *Segmentation) Colors() []ColorSegments {
	index := make(map[imaging.RGBColor]int)
	var out []ColorSegments
	for _, seg := range s.Segments {
		i, ok := index[seg.Color]
		if !ok {
			i = len(out)
			index[seg.Color] = i
			out = append(out, ColorSegments{Color: seg.Color.Hex()})
		}
		out[i].Segments++
		out[i].Pixels += seg.Area
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Segments != out[j].Segments {
			return out[i].Segments > out[j].Segments
		}
		return out[i].Color < out[j].Color
	})
	return out
}
