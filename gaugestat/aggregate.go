package gaugestat

import (
	"math"
	"sort"
)

// TrimmedMean reduces the raw readings taken for one channel within a
// single tick to one representative value. With three or more
// readings it discards the single smallest and single largest reading
// and averages the rest, which tolerates one spurious spike or
// dropout per tick. With fewer readings there's nothing to trim:
// one or two readings average to themselves, and no readings at all
// yield NaN.
//
// When several readings share the extreme value, exactly one
// occurrence of the minimum and one of the maximum are discarded
// (the slice is sorted and its ends dropped), not all duplicates.
// The result is unaffected by the order of the readings.
func TrimmedMean(readings []float64) float64 {
	switch len(readings) {
	case 0:
		return math.NaN()
	case 1:
		return readings[0]
	case 2:
		return (readings[0] + readings[1]) / 2
	}
	rs := append([]float64(nil), readings...)
	sort.Float64s(rs)
	rs = rs[1 : len(rs)-1]
	sum := 0.0
	for _, r := range rs {
		sum += r
	}
	return sum / float64(len(rs))
}
