package quantize

import (
	"github.com/anthonynsimon/bild/parallel"

	"github.com/ironsheep/captcha-tools-mcp/internal/metric"
)

// refiner runs Lloyd's iteration from a seed set.
type refiner struct {
	metric        metric.Func
	maxIterations int
}

// refinement is the outcome of a refiner run.
type refinement struct {
	Clusters   []*Cluster
	Iterations int
	Converged  bool

	// Inertia holds, for every iteration, the sum of squared metric distances
	// between samples and the centroid of their cluster after the update step.
	Inertia []float64
}

// refine assigns every sample to its nearest centroid and moves each centroid
// to the mean of its members, until an assignment pass changes nothing or
// maxIterations is reached. The clusters slice is modified in place.
//
// Ties go to the cluster that comes first. A cluster left without members by
// an assignment pass is dropped before the update; clusters are never reseeded.
func (r *refiner) refine(samples []Sample, clusters []*Cluster) *refinement {
	assign := make([]int, len(samples))
	for i := range assign {
		assign[i] = -1
	}
	next := make([]int, len(samples))

	res := &refinement{}
	for res.Iterations < r.maxIterations {
		res.Iterations++

		parallel.Line(len(samples), func(start, end int) {
			for i := start; i < end; i++ {
				next[i] = r.nearest(samples[i].Vector, clusters)
			}
		})

		changed := 0
		for i := range next {
			if next[i] != assign[i] {
				changed++
			}
		}
		assign, next = next, assign
		if changed == 0 {
			res.Converged = true
			break
		}

		clusters = r.update(samples, clusters, assign)
		res.Inertia = append(res.Inertia, r.inertia(samples, clusters, assign))
	}

	res.Clusters = clusters
	return res
}

// nearest returns the index of the cluster whose centroid is closest to v.
func (r *refiner) nearest(v [3]float64, clusters []*Cluster) int {
	best := 0
	bestDist := r.metric(v, clusters[0].Centroid)
	for k := 1; k < len(clusters); k++ {
		if d := r.metric(v, clusters[k].Centroid); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

// update rebuilds membership from assign, drops empty clusters and recomputes
// centroids. assign is rewritten to the indices of the surviving clusters.
func (r *refiner) update(samples []Sample, clusters []*Cluster, assign []int) []*Cluster {
	members := make([][]int, len(clusters))
	for i, k := range assign {
		members[k] = append(members[k], i)
	}

	remap := make([]int, len(clusters))
	kept := clusters[:0]
	for k, c := range clusters {
		if len(members[k]) == 0 {
			remap[k] = -1
			continue
		}
		remap[k] = len(kept)
		c.Members = members[k]
		c.Centroid = mean(samples, members[k])
		kept = append(kept, c)
	}
	for i, k := range assign {
		assign[i] = remap[k]
	}

	// Clear the tail so dropped clusters are not kept alive by the backing array.
	for k := len(kept); k < len(clusters); k++ {
		clusters[k] = nil
	}
	return kept
}

func (r *refiner) inertia(samples []Sample, clusters []*Cluster, assign []int) float64 {
	var sum float64
	for i, k := range assign {
		d := r.metric(samples[i].Vector, clusters[k].Centroid)
		sum += d * d
	}
	return sum
}
