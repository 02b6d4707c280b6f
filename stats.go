package querycache

import "math"

// Stats is a snapshot of cache effectiveness.
// HitRate is a percentage rounded to two decimals; 0 before the first lookup.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hitRate"`
}

func newStats(hits, misses uint64, size int) Stats {
	return Stats{Hits: hits, Misses: misses, Size: size, HitRate: hitRate(hits, misses)}
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	pct := float64(hits) / float64(total) * 100
	return math.Round(pct*100) / 100
}
