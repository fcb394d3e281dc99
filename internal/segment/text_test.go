package segment

import (
	"image"
	"strings"
	"testing"
)

// createCaptchaImage draws two words that share a line and a short word far
// to the right, plus a speck of noise.
//
//	line 1: A [5,10) with a hole, B [13,18) in two colors, C [26,31), D [34,39)
//	line 2: E [55,58)
func createCaptchaImage() *image.RGBA {
	img := createTestImage(60, 20, white)

	fillRect(img, 5, 5, 10, 15, black)
	img.Set(7, 9, white)

	fillRect(img, 13, 5, 18, 10, red)
	fillRect(img, 13, 10, 18, 15, black)

	fillRect(img, 26, 5, 31, 15, black)
	fillRect(img, 34, 5, 39, 15, black)
	fillRect(img, 55, 5, 58, 15, black)

	fillRect(img, 50, 1, 52, 3, red)
	return img
}

func TestTextCandidates(t *testing.T) {
	img := createCaptchaImage()
	s := Segmentize(img)

	lines := TextCandidates(s, DefaultOptions())

	if len(lines) != 2 {
		t.Fatalf("lines: got %d, want 2: %+v", len(lines), lines)
	}

	first := lines[0]
	if first.Bounds != (Bounds{X1: 5, Y1: 5, X2: 39, Y2: 15}) {
		t.Errorf("first line bounds: got %+v", first.Bounds)
	}
	// A (without its hole) + B (two segments) + C + D
	if len(first.Segments) != 5 {
		t.Errorf("first line segments: got %d, want 5", len(first.Segments))
	}
	if first.Area != 49+50+50+50 {
		t.Errorf("first line area: got %d, want 199", first.Area)
	}
	for _, i := range first.Segments {
		if i == s.Label(7, 9) {
			t.Error("letter hole should be cleared")
		}
	}

	second := lines[1]
	if second.Bounds != (Bounds{X1: 55, Y1: 5, X2: 58, Y2: 15}) || second.Area != 30 {
		t.Errorf("second line: got %+v area %d", second.Bounds, second.Area)
	}
	if first.Vertical || !second.Vertical {
		t.Errorf("vertical: got %v and %v, want false and true", first.Vertical, second.Vertical)
	}

	for i := 1; i < len(first.Segments); i++ {
		if first.Segments[i-1] >= first.Segments[i] {
			t.Errorf("segments should be sorted: %v", first.Segments)
		}
	}
}

func TestTextCandidates_NoiseDropped(t *testing.T) {
	s := Segmentize(createCaptchaImage())
	speck := s.Label(50, 1)

	for _, line := range TextCandidates(s, DefaultOptions()) {
		for _, i := range line.Segments {
			if i == speck {
				t.Error("speck below min_word_area should be dropped")
			}
		}
	}
}

func TestTextCandidates_LetterDelta(t *testing.T) {
	tests := []struct {
		name      string
		gap       int
		wantLines int
	}{
		{"one pixel gap", 1, 1},
		{"gap at limit", 6, 1},
		{"gap above limit", 7, 2},
	}

	opts := DefaultOptions()
	opts.WordDelta = 0

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := createTestImage(60, 20, white)
			fillRect(img, 5, 5, 10, 15, black)
			fillRect(img, 10+tt.gap, 5, 15+tt.gap, 15, black)

			lines := TextCandidates(Segmentize(img), opts)
			if len(lines) != tt.wantLines {
				t.Errorf("lines: got %d, want %d", len(lines), tt.wantLines)
			}
		})
	}
}

func TestTextCandidates_VerticalOverlapRequired(t *testing.T) {
	img := createTestImage(40, 40, white)
	fillRect(img, 5, 5, 10, 12, black)
	// Starts right after the first letter but entirely below it.
	fillRect(img, 12, 20, 17, 27, black)

	lines := TextCandidates(Segmentize(img), DefaultOptions())
	if len(lines) != 2 {
		t.Errorf("lines: got %d, want 2", len(lines))
	}
}

// createVerticalImage stacks three letters top to bottom at x [10,18).
func createVerticalImage() *image.RGBA {
	img := createTestImage(80, 40, white)
	fillRect(img, 10, 5, 18, 13, black)
	fillRect(img, 10, 16, 18, 24, red)
	fillRect(img, 10, 27, 18, 35, black)
	return img
}

func TestTextCandidates_VerticalLine(t *testing.T) {
	lines := TextCandidates(Segmentize(createVerticalImage()), DefaultOptions())

	if len(lines) != 1 {
		t.Fatalf("lines: got %d, want 1: %+v", len(lines), lines)
	}
	if lines[0].Bounds != (Bounds{X1: 10, Y1: 5, X2: 18, Y2: 35}) {
		t.Errorf("bounds: got %+v", lines[0].Bounds)
	}
	if len(lines[0].Segments) != 3 || lines[0].Area != 3*64 {
		t.Errorf("members: got %v area %d", lines[0].Segments, lines[0].Area)
	}
	if !lines[0].Vertical {
		t.Error("a 30x8 line should be vertical")
	}
}

func TestTextCandidates_VerticalPassDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxVerticalHeight = 0

	lines := TextCandidates(Segmentize(createVerticalImage()), opts)
	if len(lines) != 3 {
		t.Errorf("lines: got %d, want 3", len(lines))
	}
	for _, l := range lines {
		if l.Vertical {
			t.Errorf("square letter %+v should not be vertical", l.Bounds)
		}
	}
}

func TestTextCandidates_WideLinesStayHorizontal(t *testing.T) {
	img := createVerticalImage()
	// A word wider than max_vertical_height next to the stack.
	fillRect(img, 32, 5, 40, 13, black)
	fillRect(img, 42, 5, 50, 13, black)
	fillRect(img, 52, 5, 60, 13, black)
	fillRect(img, 62, 5, 70, 13, black)

	lines := TextCandidates(Segmentize(img), DefaultOptions())
	if len(lines) != 2 {
		t.Fatalf("lines: got %d, want 2: %+v", len(lines), lines)
	}
	if lines[0].Bounds != (Bounds{X1: 10, Y1: 5, X2: 18, Y2: 35}) {
		t.Errorf("vertical line: got %+v", lines[0].Bounds)
	}
	if lines[1].Bounds != (Bounds{X1: 32, Y1: 5, X2: 70, Y2: 13}) || lines[1].Vertical {
		t.Errorf("horizontal line: got %+v vertical %v", lines[1].Bounds, lines[1].Vertical)
	}
}

func TestGraphical(t *testing.T) {
	s := Segmentize(createCaptchaImage())
	opts := DefaultOptions()

	got := s.Graphical(opts, TextCandidates(s, opts))

	want := []int{s.Label(0, 0), s.Label(50, 1)}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("graphical: got %v, want background and speck %v", got, want)
	}

	all := s.Graphical(opts, nil)
	for _, i := range all {
		if i == s.Label(7, 9) {
			t.Error("letter hole is never graphical")
		}
	}
	if len(all) != len(s.Segments)-1 {
		t.Errorf("without text: got %d, want every segment but the hole (%d)", len(all), len(s.Segments)-1)
	}
}

func TestTextCandidates_LargeSegmentsIgnored(t *testing.T) {
	img := createTestImage(100, 60, white)
	fillRect(img, 10, 10, 70, 50, black) // wider than any letter

	if lines := TextCandidates(Segmentize(img), DefaultOptions()); len(lines) != 0 {
		t.Errorf("lines: got %d, want 0", len(lines))
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Options)
		wantErr string
	}{
		{"defaults", func(*Options) {}, ""},
		{"zero deltas", func(o *Options) { o.LetterDelta, o.WordDelta, o.MinWordArea = 0, 0, 0 }, ""},
		{"zero width", func(o *Options) { o.MaxWidth = 0 }, "max_width"},
		{"negative height", func(o *Options) { o.MaxHeight = -1 }, "max_height"},
		{"negative letter delta", func(o *Options) { o.LetterDelta = -1 }, "letter_delta"},
		{"negative word delta", func(o *Options) { o.WordDelta = -2 }, "word_delta"},
		{"negative area", func(o *Options) { o.MinWordArea = -3 }, "min_word_area"},
		{"vertical pass off", func(o *Options) { o.MaxVerticalHeight = 0 }, ""},
		{"negative vertical height", func(o *Options) { o.MaxVerticalHeight = -1 }, "max_vertical_height"},
		{"zero vfactor", func(o *Options) { o.MinVFactor = 0 }, "min_vfactor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			err := opts.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error: got %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
