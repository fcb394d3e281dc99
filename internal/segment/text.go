package segment

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

// Options bound the letter-sized segments and the gaps between them.
type Options struct {
	// MaxWidth and MaxHeight bound a single letter.
	MaxWidth  int `yaml:"max_width" json:"max_width"`
	MaxHeight int `yaml:"max_height" json:"max_height"`

	// LetterDelta is the largest gap between two letters of a word.
	LetterDelta int `yaml:"letter_delta" json:"letter_delta"`

	// WordDelta is the largest gap between two words of a line.
	WordDelta int `yaml:"word_delta" json:"word_delta"`

	// MinWordArea drops words with this many pixels or fewer before they
	// are joined into lines.
	MinWordArea int `yaml:"min_word_area" json:"min_word_area"`

	// MaxVerticalHeight sends lines no wider than this through a second,
	// top to bottom grouping pass. Zero disables the pass.
	MaxVerticalHeight int `yaml:"max_vertical_height" json:"max_vertical_height"`

	// MinVFactor marks a candidate as vertical once its height is at least
	// this many times its width.
	MinVFactor float64 `yaml:"min_vfactor" json:"min_vfactor"`
}

// DefaultOptions returns limits suited to CAPTCHAs at their original size.
func DefaultOptions() Options {
	return Options{
		MaxWidth:    40,
		MaxHeight:   30,
		LetterDelta: 6,
		WordDelta:   12,
		MinWordArea: 20,

		MaxVerticalHeight: 30,
		MinVFactor:        2.5,
	}
}

// Validate reports every invalid option at once.
func (o Options) Validate() error {
	var err error
	if o.MaxWidth <= 0 {
		err = multierr.Append(err, fmt.Errorf("max_width must be positive, got %d", o.MaxWidth))
	}
	if o.MaxHeight <= 0 {
		err = multierr.Append(err, fmt.Errorf("max_height must be positive, got %d", o.MaxHeight))
	}
	if o.LetterDelta < 0 {
		err = multierr.Append(err, fmt.Errorf("letter_delta must not be negative, got %d", o.LetterDelta))
	}
	if o.WordDelta < 0 {
		err = multierr.Append(err, fmt.Errorf("word_delta must not be negative, got %d", o.WordDelta))
	}
	if o.MinWordArea < 0 {
		err = multierr.Append(err, fmt.Errorf("min_word_area must not be negative, got %d", o.MinWordArea))
	}
	if o.MaxVerticalHeight < 0 {
		err = multierr.Append(err, fmt.Errorf("max_vertical_height must not be negative, got %d", o.MaxVerticalHeight))
	}
	if o.MinVFactor <= 0 {
		err = multierr.Append(err, fmt.Errorf("min_vfactor must be positive, got %g", o.MinVFactor))
	}
	return err
}

// Group is a set of segments handled as one unit: a letter, a word or a line.
type Group struct {
	Bounds Bounds `json:"bounds"`

	// Segments lists member segment indices in ascending order.
	Segments []int `json:"segments"`

	// Area is the total number of pixels of the member segments.
	Area int `json:"area"`

	// Vertical is set on candidates tall enough to be read top to bottom.
	Vertical bool `json:"vertical"`
}

// VFactor is the ratio of height to width.
func (g Group) VFactor() float64 {
	if g.Bounds.Width() == 0 {
		return 0
	}
	return float64(g.Bounds.Height()) / float64(g.Bounds.Width())
}

func (g Group) transpose() Group {
	g.Bounds = Bounds{X1: g.Bounds.Y1, Y1: g.Bounds.X1, X2: g.Bounds.Y2, Y2: g.Bounds.X2}
	return g
}

func (g Group) merge(o Group) Group {
	return Group{
		Bounds:   g.Bounds.union(o.Bounds),
		Segments: append(append([]int(nil), g.Segments...), o.Segments...),
		Area:     g.Area + o.Area,
	}
}

// TextCandidates returns the regions of s likely to hold a line of text,
// ordered left to right, then top to bottom.
//
// # Algorithm
//
//  1. Box filter: keep segments no larger than a letter
//  2. Letter clearing: drop kept segments that only touch other kept
//     segments, such as the holes of "P" or "B"
//  3. Merging: join touching letter segments into letters
//  4. Words: chain letters left to right while the gap stays within
//     LetterDelta and the letters overlap the first one vertically
//  5. Lines: drop words of MinWordArea pixels or fewer, then chain the rest
//     the same way within WordDelta
//  6. Vertical lines: lines at most MaxVerticalHeight wide are chained
//     again top to bottom, first within LetterDelta, then within WordDelta
func TextCandidates(s *Segmentation, opts Options) []Group {
	_, letters := s.letters(opts)
	words := chain(s.merge(letters), opts.LetterDelta, true)

	large := words[:0]
	for _, w := range words {
		if w.Area > opts.MinWordArea {
			large = append(large, w)
		}
	}

	var lines, narrow []Group
	for _, l := range chain(large, opts.WordDelta, true) {
		if l.Bounds.Width() <= opts.MaxVerticalHeight {
			narrow = append(narrow, l)
		} else {
			lines = append(lines, l)
		}
	}
	if len(narrow) > 0 {
		vwords := chain(narrow, opts.LetterDelta, false)
		lines = append(lines, chain(vwords, opts.WordDelta, false)...)
	}

	sort.SliceStable(lines, func(i, j int) bool {
		a, b := lines[i].Bounds, lines[j].Bounds
		if a.X1 != b.X1 {
			return a.X1 < b.X1
		}
		return a.Y1 < b.Y1
	})
	for i := range lines {
		sort.Ints(lines[i].Segments)
		lines[i].Vertical = lines[i].VFactor() >= opts.MinVFactor
	}
	return lines
}

// Graphical returns, in ascending order, the segments that belong to none
// of the text groups and are not letter holes.
func (s *Segmentation) Graphical(opts Options, text []Group) []int {
	kept, letters := s.letters(opts)
	used := make(map[int]bool)
	for _, g := range text {
		for _, i := range g.Segments {
			used[i] = true
		}
	}

	var out []int
	for _, seg := range s.Segments {
		hole := kept[seg.Index] && !letters[seg.Index]
		if !hole && !used[seg.Index] {
			out = append(out, seg.Index)
		}
	}
	return out
}

// letters applies the box filter and then clears the kept segments that
// touch only other kept segments.
func (s *Segmentation) letters(opts Options) (kept, letters map[int]bool) {
	kept = make(map[int]bool)
	for _, seg := range s.Segments {
		if seg.Bounds.Width() <= opts.MaxWidth && seg.Bounds.Height() <= opts.MaxHeight {
			kept[seg.Index] = true
		}
	}

	letters = make(map[int]bool, len(kept))
	for i := range kept {
		for _, n := range s.Segments[i].Neighbours {
			if !kept[n] {
				letters[i] = true
				break
			}
		}
	}
	return kept, letters
}

// merge groups the given segments into connected components, in order of
// their lowest segment index.
func (s *Segmentation) merge(members map[int]bool) []Group {
	order := make([]int, 0, len(members))
	for i := range members {
		order = append(order, i)
	}
	sort.Ints(order)

	seen := make(map[int]bool, len(members))
	var groups []Group
	for _, start := range order {
		if seen[start] {
			continue
		}
		seen[start] = true
		first := s.Segments[start]
		g := Group{Bounds: first.Bounds, Segments: []int{start}, Area: first.Area}

		stack := []int{start}
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, n := range s.Segments[i].Neighbours {
				if !members[n] || seen[n] {
					continue
				}
				seen[n] = true
				seg := s.Segments[n]
				g.Bounds = g.Bounds.union(seg.Bounds)
				g.Segments = append(g.Segments, n)
				g.Area += seg.Area
				stack = append(stack, n)
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// chain joins groups into horizontal runs. Each run starts at the remaining
// group nearest the top-left corner and repeatedly takes, among the groups
// starting no earlier and at most delta pixels after the last one taken,
// the lowest-reaching group that overlaps the run's first group vertically.
// With horizontal unset the axes swap and runs go top to bottom.
func chain(items []Group, delta int, horizontal bool) []Group {
	if !horizontal {
		runs := chain(transposeAll(items), delta, true)
		for i := range runs {
			runs[i] = runs[i].transpose()
		}
		return runs
	}

	rest := append([]Group(nil), items...)
	sort.SliceStable(rest, func(i, j int) bool {
		a, b := rest[i].Bounds, rest[j].Bounds
		if a.X1+a.Y1 != b.X1+b.Y1 {
			return a.X1+a.Y1 < b.X1+b.Y1
		}
		return a.X1 < b.X1
	})

	var runs []Group
	for len(rest) > 0 {
		run := rest[0]
		rest = rest[1:]
		top, bottom := run.Bounds.Y1, run.Bounds.Y2
		last := run.Bounds

		for {
			next := -1
			for i, c := range rest {
				if c.Bounds.X1 < last.X1 || c.Bounds.X1-last.X2 > delta {
					continue
				}
				if c.Bounds.Y1 >= bottom || c.Bounds.Y2 <= top {
					continue
				}
				if next < 0 || c.Bounds.Y2 > rest[next].Bounds.Y2 {
					next = i
				}
			}
			if next < 0 {
				break
			}
			last = rest[next].Bounds
			run = run.merge(rest[next])
			rest = append(rest[:next], rest[next+1:]...)
		}
		runs = append(runs, run)
	}
	return runs
}

func transposeAll(items []Group) []Group {
	out := make([]Group, len(items))
	for i, g := range items {
		out[i] = g.transpose()
	}
	return out
}
