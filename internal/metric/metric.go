// Package metric provides the distance functions used to compare color vectors.
//
// A metric maps two 3-channel vectors in a working color space to a nonnegative
// distance. The clustering code relies on two properties only: the distance of a
// vector to itself is zero, and the distance is symmetric. Built-in metrics are
// registered by name; callers may also supply their own function, which should be
// checked with Validate before use.
package metric

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

// Func computes the distance between two color vectors.
type Func func(a, b [3]float64) float64

// Default is the metric used when none is configured.
const Default = "euclidean"

// ErrUnknown is returned by Lookup for identifiers that are not registered.
var ErrUnknown = errors.New("unknown metric")

var registry = map[string]Func{
	"euclidean": Euclidean,
	"manhattan": Manhattan,
	"chebyshev": Chebyshev,
}

// Lookup returns the registered metric for name. Matching is case-insensitive.
func Lookup(name string) (Func, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknown, name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names lists the registered metric identifiers in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Euclidean is the straight-line distance between a and b.
func Euclidean(a, b [3]float64) float64 {
	d0 := a[0] - b[0]
	d1 := a[1] - b[1]
	d2 := a[2] - b[2]
	return math.Sqrt(d0*d0 + d1*d1 + d2*d2)
}

// Manhattan is the sum of absolute per-channel differences.
func Manhattan(a, b [3]float64) float64 {
	return math.Abs(a[0]-b[0]) + math.Abs(a[1]-b[1]) + math.Abs(a[2]-b[2])
}

// Chebyshev is the largest absolute per-channel difference.
func Chebyshev(a, b [3]float64) float64 {
	return math.Max(math.Abs(a[0]-b[0]), math.Max(math.Abs(a[1]-b[1]), math.Abs(a[2]-b[2])))
}

// Validate checks that f behaves like a distance on every pair of samples.
//
// The following properties are verified:
//   - f(x, x) == 0
//   - f(x, y) == f(y, x)
//   - f(x, y) >= 0 and is finite
//
// The triangle inequality is not required; squared distances are accepted.
//
// All violations found are returned combined into a single error; a nil result
// means no violation was observed on the given samples.
func Validate(f Func, samples [][3]float64) error {
	if f == nil {
		return errors.New("metric function is nil")
	}

	var err error
	for i, x := range samples {
		if d := f(x, x); d != 0 {
			err = multierr.Append(err, fmt.Errorf("metric(%v, %v) = %v, want 0", x, x, d))
		}
		for _, y := range samples[i+1:] {
			xy, yx := f(x, y), f(y, x)
			if math.IsNaN(xy) || math.IsInf(xy, 0) {
				err = multierr.Append(err, fmt.Errorf("metric(%v, %v) = %v is not finite", x, y, xy))
				continue
			}
			if xy < 0 {
				err = multierr.Append(err, fmt.Errorf("metric(%v, %v) = %v is negative", x, y, xy))
			}
			if xy != yx {
				err = multierr.Append(err, fmt.Errorf("metric is not symmetric: metric(%v, %v) = %v, metric(%v, %v) = %v", x, y, xy, y, x, yx))
			}
		}
	}
	return err
}
