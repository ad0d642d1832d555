// backend/internal/funnel/completion.go
package funnel

import "math"

type Bucket int

const (
	BucketNone Bucket = iota
	BucketLow
	BucketMedium
	BucketHigh
)

// Completion is the share of the order set answered, as a percentage.
// It is not clamped: duplicate ids in an order can push it past 100.
func Completion(answered int64, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(answered) / float64(total) * 100
}

// BucketOf places a completion percentage in the dashboard histogram.
// Exactly 0% belongs to no bucket.
func BucketOf(completion float64) Bucket {
	switch {
	case completion >= 90:
		return BucketHigh
	case completion >= 50:
		return BucketMedium
	case completion > 0:
		return BucketLow
	default:
		return BucketNone
	}
}

// firstGap returns the first position in order without an answer, or -1.
func firstGap(order []string, answered map[string]struct{}) int {
	for i, q := range order {
		if _, ok := answered[q]; !ok {
			return i
		}
	}
	return -1
}

// FirstGap is firstGap over a plain list of answered question ids.
func FirstGap(order []string, answered []string) int {
	set := make(map[string]struct{}, len(answered))
	for _, q := range answered {
		set[q] = struct{}{}
	}
	return firstGap(order, set)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
