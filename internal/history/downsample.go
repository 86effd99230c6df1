package history

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Stats summarizes a series. Session stats come from Buffer.Stats; window
// stats over a Range slice come from RangeStats.
type Stats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// RangeStats computes min/max/mean over an already-extracted window.
func RangeStats(points []Point) Stats {
	if len(points) == 0 {
		return Stats{}
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	min, _ := stats.Min(values)
	max, _ := stats.Max(values)
	mean, _ := stats.Mean(values)
	return Stats{Min: min, Max: max, Mean: mean, Count: len(points)}
}

// Downsample thins points to at most threshold entries using
// largest-triangle-three-buckets: the first and last points survive, and
// each bucket keeps the point forming the largest triangle with the
// previously kept point and the next bucket's average. Shape-defining
// spikes survive far better than with striding.
func Downsample(points []Point, threshold int) []Point {
	if threshold <= 0 || len(points) <= threshold {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}
	if threshold == 1 {
		return []Point{points[0]}
	}
	if threshold == 2 {
		return []Point{points[0], points[len(points)-1]}
	}

	sampled := make([]Point, 0, threshold)
	sampled = append(sampled, points[0])

	// Interior points split into threshold-2 buckets.
	bucketSize := float64(len(points)-2) / float64(threshold-2)
	prev := points[0]

	for i := 0; i < threshold-2; i++ {
		lo := int(math.Floor(float64(i)*bucketSize)) + 1
		hi := int(math.Floor(float64(i+1)*bucketSize)) + 1
		if hi > len(points)-1 {
			hi = len(points) - 1
		}

		// Average of the next bucket anchors the triangle.
		nextLo := hi
		nextHi := int(math.Floor(float64(i+2)*bucketSize)) + 1
		if nextHi > len(points)-1 {
			nextHi = len(points) - 1
		}
		if nextLo >= nextHi {
			nextHi = nextLo + 1
		}
		var avgX, avgY float64
		n := 0
		for j := nextLo; j < nextHi && j < len(points); j++ {
			avgX += float64(points[j].Timestamp.UnixNano())
			avgY += points[j].Value
			n++
		}
		if n == 0 {
			last := points[len(points)-1]
			avgX = float64(last.Timestamp.UnixNano())
			avgY = last.Value
			n = 1
		}
		avgX /= float64(n)
		avgY /= float64(n)

		prevX := float64(prev.Timestamp.UnixNano())
		prevY := prev.Value

		best := points[lo]
		bestArea := -1.0
		for j := lo; j < hi; j++ {
			x := float64(points[j].Timestamp.UnixNano())
			y := points[j].Value
			area := math.Abs((prevX-avgX)*(y-prevY)-(prevX-x)*(avgY-prevY)) / 2.0
			if area > bestArea {
				bestArea = area
				best = points[j]
			}
		}
		sampled = append(sampled, best)
		prev = best
	}

	sampled = append(sampled, points[len(points)-1])
	return sampled
}
