// Package rank merges independently ordered result lists into one
// consensus ranking.
package rank

import "sort"

// Scored pairs an item with its fused score.
type Scored[T any] struct {
	Item  T
	Score float64
}

// Fuse merges ranked lists with positional Borda scoring and returns the
// consensus order.
//
// The item at index i of a list of length L scores (L-i)/L, so every
// list's top item is worth 1.0 regardless of list length. Scores for the
// same identity are summed across lists. Ties keep first-seen order
// (list order, then position), and the first instance seen for an
// identity is the one returned. Empty lists contribute nothing.
func Fuse[T any, K comparable](id func(T) K, lists ...[]T) []T {
	scored := FuseScored(id, lists...)
	out := make([]T, len(scored))
	for i, s := range scored {
		out[i] = s.Item
	}
	return out
}

// FuseScored is Fuse with the summed score attached to each item.
func FuseScored[T any, K comparable](id func(T) K, lists ...[]T) []Scored[T] {
	index := make(map[K]int)
	var merged []Scored[T]

	for _, list := range lists {
		n := len(list)
		if n == 0 {
			continue
		}

		seen := make(map[K]struct{}, n)
		for i, item := range list {
			key := id(item)
			// a repeated identity within one list only counts at its best position
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			score := float64(n-i) / float64(n)
			if pos, ok := index[key]; ok {
				merged[pos].Score += score
				continue
			}
			index[key] = len(merged)
			merged = append(merged, Scored[T]{Item: item, Score: score})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged
}

// TopK returns at most k items. k <= 0 means no limit.
func TopK[T any](items []T, k int) []T {
	if k <= 0 || k >= len(items) {
		return items
	}
	return items[:k]
}
