package quantize

import (
	"sort"

	"github.com/ironsheep/captcha-tools-mcp/internal/colorspace"
	"github.com/ironsheep/captcha-tools-mcp/internal/metric"
)

// Cluster is a group of samples represented by their mean color.
type Cluster struct {
	// Centroid is the per-channel mean of the member vectors.
	Centroid colorspace.Vector

	// Members are indices into the histogram's samples.
	Members []int
}

// Pixels returns the number of image pixels covered by the cluster.
func (c *Cluster) Pixels(samples []Sample) int {
	n := 0
	for _, i := range c.Members {
		n += samples[i].Count
	}
	return n
}

// mean returns the unweighted per-channel mean of the vectors of samples at idx.
// Callers guarantee idx is not empty.
func mean(samples []Sample, idx []int) colorspace.Vector {
	var sum colorspace.Vector
	for _, i := range idx {
		for ch := 0; ch < 3; ch++ {
			sum[ch] += samples[i].Vector[ch]
		}
	}
	n := float64(len(idx))
	return colorspace.Vector{sum[0] / n, sum[1] / n, sum[2] / n}
}

// seeder picks the initial clusters.
type seeder struct {
	metric      metric.Func
	maxDistance float64 // metric distance between the colorspace range corners
	threshold1  float64 // percent of pixels
	threshold2  float64 // percent of maxDistance
}

// seed groups frequent colors around the most frequent ones.
//
// Colors rarer than threshold1 percent of the image do not take part. The rest
// are visited from most to least frequent; each color not yet grouped becomes a
// pivot and collects every ungrouped color within threshold2 percent of the
// maximal distance, itself included. The seed centroid is the plain mean of the
// group, each color counting once whatever its pixel count.
//
// The number of seeds follows from the data and the thresholds.
func (s *seeder) seed(h *Histogram) ([]*Cluster, error) {
	total := float64(h.Total)
	candidates := make([]int, 0, len(h.Samples))
	for i, smp := range h.Samples {
		if float64(smp.Count)/total*100 >= s.threshold1 {
			candidates = append(candidates, i)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return h.Samples[candidates[a]].Count > h.Samples[candidates[b]].Count
	})

	processed := make([]bool, len(candidates))
	var seeds []*Cluster
	for p, pivot := range candidates {
		if processed[p] {
			continue
		}

		var group []int
		for j, other := range candidates {
			if processed[j] {
				continue
			}
			diff := s.metric(h.Samples[pivot].Vector, h.Samples[other].Vector) / s.maxDistance * 100
			if diff <= s.threshold2 {
				group = append(group, other)
				processed[j] = true
			}
		}
		if len(group) == 0 {
			return nil, computationError("empty seed group for color %s: metric does not return 0 for identical colors",
				h.Samples[pivot].RGB.Hex())
		}
		// The pivot stays processed even if the metric left it out of its own group.
		processed[p] = true

		seeds = append(seeds, &Cluster{Centroid: mean(h.Samples, group)})
	}

	return seeds, nil
}
