package schema

import (
	"math"
	"sort"
)

// Clamp01 limits v to [0,1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Clamp limits v to [lo,hi]. NaN becomes lo.
func Clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v), v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// UniqueSorted returns the distinct values of in, sorted ascending.
func UniqueSorted(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// SortedKeys returns the keys of a string-keyed set in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsSubset reports whether every element of a is in b.
func IsSubset(a []string, b map[string]struct{}) bool {
	for _, v := range a {
		if _, ok := b[v]; !ok {
			return false
		}
	}
	return true
}

// ToSet converts a slice to a set.
func ToSet(in []string) map[string]struct{} {
	set := make(map[string]struct{}, len(in))
	for _, v := range in {
		set[v] = struct{}{}
	}
	return set
}

// BucketFor classifies a score against critical, important and optional thresholds.
func BucketFor(score float64, thresholds map[Bucket]float64) Bucket {
	switch {
	case score >= thresholds[CriticalBucket]:
		return CriticalBucket
	case score >= thresholds[ImportantBucket]:
		return ImportantBucket
	case score >= thresholds[OptionalBucket]:
		return OptionalBucket
	default:
		return ExcludedBucket
	}
}

// DefaultBucketThresholds returns the default relevance thresholds.
func DefaultBucketThresholds() map[Bucket]float64 {
	return map[Bucket]float64{
		CriticalBucket:  0.8,
		ImportantBucket: 0.5,
		OptionalBucket:  0.2,
	}
}
