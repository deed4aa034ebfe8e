package vector

import (
	"sort"

	"github.com/hyperjump/kbase/internal/models"
	"github.com/hyperjump/kbase/pkg/utils"
)

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	na, nb := utils.L2Norm(a), utils.L2Norm(b)
	if na == 0 || nb == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot/(na*nb)
}

// topK sorts hits by ascending distance, ties by ID, and keeps the first k.
func topK(hits []models.QueryHit, k int) []models.QueryHit {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}
