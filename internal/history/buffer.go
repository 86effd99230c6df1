// Package history keeps bounded per-metric time series. Recent points are
// stored at full resolution; once they age out of the recent window they are
// folded into a downsampled tier so long sessions hold a fixed number of
// points no matter how fast updates arrive.
package history

import (
	"sort"
	"sync"
	"time"
)

// Point is one sample.
type Point struct {
	Value     float64   `json:"v"`
	Timestamp time.Time `json:"t"`
}

// Config sizes one buffer. RecentWindow is how long points stay at full
// resolution, RecentCap the most full-resolution points kept between prunes,
// DownsampleCap the size of the downsampled tier, Horizon the oldest age
// retained at all.
type Config struct {
	RecentWindow  time.Duration
	RecentCap     int
	DownsampleCap int
	Horizon       time.Duration
}

// DefaultConfig keeps one minute at full resolution and an hour downsampled.
func DefaultConfig() Config {
	return Config{
		RecentWindow:  time.Minute,
		RecentCap:     600,
		DownsampleCap: 240,
		Horizon:       time.Hour,
	}
}

// Buffer is a two-tier series for one metric. Add is called by the cache
// writer; Range and Stats may be called concurrently by readers.
type Buffer struct {
	mu          sync.RWMutex
	cfg         Config
	recent      []Point
	spill       []Point // overflowed out of recent, waiting to be folded
	downsampled []Point

	// Session aggregates over every point ever added, so extremes survive
	// downsampling.
	count int
	sum   float64
	min   float64
	max   float64
}

func NewBuffer(cfg Config) *Buffer {
	if cfg.RecentCap <= 0 {
		cfg.RecentCap = DefaultConfig().RecentCap
	}
	if cfg.DownsampleCap <= 0 {
		cfg.DownsampleCap = DefaultConfig().DownsampleCap
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = DefaultConfig().RecentWindow
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = DefaultConfig().Horizon
	}
	return &Buffer{cfg: cfg}
}

// Add appends a sample. When the recent tier exceeds its cap the oldest
// points shift to the spill area; the spill folds into the downsampled tier
// once it reaches that tier's size, keeping total memory fixed under any
// update rate.
func (b *Buffer) Add(value float64, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recent = append(b.recent, Point{Value: value, Timestamp: ts})
	if over := len(b.recent) - b.cfg.RecentCap; over > 0 {
		b.spill = append(b.spill, b.recent[:over]...)
		b.recent = append(b.recent[:0], b.recent[over:]...)
	}
	if len(b.spill) >= b.cfg.DownsampleCap {
		b.foldLocked()
	}

	if b.count == 0 || value < b.min {
		b.min = value
	}
	if b.count == 0 || value > b.max {
		b.max = value
	}
	b.count++
	b.sum += value
}

// Prune runs on the housekeeping tick. It moves recent points older than the
// recent window into the downsampled tier and drops anything older than the
// horizon.
func (b *Buffer) Prune(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := now.Add(-b.cfg.RecentWindow)
	aged := 0
	for aged < len(b.recent) && b.recent[aged].Timestamp.Before(cutoff) {
		aged++
	}
	if aged > 0 {
		b.spill = append(b.spill, b.recent[:aged]...)
		b.recent = append(b.recent[:0], b.recent[aged:]...)
	}
	if len(b.spill) > 0 {
		b.foldLocked()
	}

	oldest := now.Add(-b.cfg.Horizon)
	drop := 0
	for drop < len(b.downsampled) && b.downsampled[drop].Timestamp.Before(oldest) {
		drop++
	}
	if drop > 0 {
		b.downsampled = append(b.downsampled[:0], b.downsampled[drop:]...)
	}
}

// foldLocked merges spill into the downsampled tier, re-thinning to cap.
func (b *Buffer) foldLocked() {
	merged := make([]Point, 0, len(b.downsampled)+len(b.spill))
	merged = append(merged, b.downsampled...)
	merged = append(merged, b.spill...)
	b.downsampled = Downsample(merged, b.cfg.DownsampleCap)
	b.spill = b.spill[:0]
}

// Range returns the retained points with start <= t < end in time order,
// downsampled tier first.
func (b *Buffer) Range(start, end time.Time) []Point {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Point, 0, len(b.downsampled)+len(b.spill)+len(b.recent))
	for _, tier := range [][]Point{b.downsampled, b.spill, b.recent} {
		for _, p := range tier {
			if !p.Timestamp.Before(start) && p.Timestamp.Before(end) {
				out = append(out, p)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Snapshot returns every retained point in time order.
func (b *Buffer) Snapshot() []Point {
	var zero, distantFuture time.Time
	distantFuture = time.Unix(1<<62-1, 0)
	return b.Range(zero, distantFuture)
}

// Len is the number of retained points across both tiers and the spill.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.downsampled) + len(b.spill) + len(b.recent)
}

// Capacity is the most points Len can ever report: the recent cap plus the
// downsampled tier plus a spill area of at most the downsample cap.
func (b *Buffer) Capacity() int {
	return b.cfg.RecentCap + 2*b.cfg.DownsampleCap
}

// Stats returns session aggregates over every point added since creation.
// These survive downsampling; the true session extremes are always exact.
func (b *Buffer) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return Stats{}
	}
	return Stats{
		Min:   b.min,
		Max:   b.max,
		Mean:  b.sum / float64(b.count),
		Count: b.count,
	}
}
