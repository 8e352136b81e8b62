package vectorstore

import "sort"

// rrfK is the rank-fusion smoothing constant: score =
// 1/(60+rank_dense) + 1/(60+rank_sparse), missing ranks treated as
// infinity (the term is simply omitted).
const rrfK = 60

// fuseRRF combines two ranked candidate lists (dense-similarity order and
// sparse-similarity order) by Reciprocal Rank Fusion and returns the top k
// by fused score. A candidate missing from one list only accumulates the
// term from the list it appears in.
//
// Both input slices are assumed already sorted best-first; rank is 1-based
// (the first position contributes 1/(60+1)), matching the formula's
// 1-indexed r_d/r_s.
func fuseRRF(dense, sparse []SearchResult, k int) []SearchResult {
	type fused struct {
		result SearchResult
		score  float64
	}

	byID := make(map[string]*fused, len(dense)+len(sparse))
	order := make([]string, 0, len(dense)+len(sparse))

	add := func(list []SearchResult) {
		for rank, r := range list {
			f, ok := byID[r.PointID]
			if !ok {
				f = &fused{result: r}
				byID[r.PointID] = f
				order = append(order, r.PointID)
			}
			f.score += 1.0 / float64(rrfK+rank+1)
		}
	}
	add(dense)
	add(sparse)

	merged := make([]fused, 0, len(order))
	for _, id := range order {
		merged = append(merged, *byID[id])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].score > merged[j].score
	})

	if k > len(merged) {
		k = len(merged)
	}
	out := make([]SearchResult, k)
	for i := 0; i < k; i++ {
		out[i] = merged[i].result
		out[i].Score = float32(merged[i].score)
	}
	return out
}
