// Package cache implements the bounded, hash-addressed content store.
// Entries live one-per-file under an explicit base directory, shaped to a
// token budget at write time and evicted by a frequency/recency score.
package cache

import "time"

// Score ranks an entry for eviction and search ordering. Higher is better.
// The recency term is bounded to (0, 1] so a single recorded access always
// outweighs pure recency; two never-read entries tie-break on which was
// touched more recently.
func Score(accessCount int, lastAccessedAt, now time.Time) float64 {
	age := now.Sub(lastAccessedAt)
	if age < 0 {
		age = 0
	}
	return float64(accessCount) + 1.0/(1.0+age.Hours())
}
