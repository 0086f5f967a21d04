package retrieval

import "sort"

// DefaultRRFConstant is the rank offset used by reciprocal rank fusion.
const DefaultRRFConstant = 60.0

// Fuse merges ranked branches with reciprocal rank fusion. A candidate's
// fused score is the sum of 1/(rank+constant) over the branches it appears
// in, with rank starting at 1. Ties are broken by the best rank reached in
// any branch, then by id. The first occurrence of a candidate supplies its
// text, price and payload. The result holds at most topK candidates.
func Fuse(topK int, constant float64, branches ...[]Candidate) []Candidate {
	if constant <= 0 {
		constant = DefaultRRFConstant
	}

	type fused struct {
		cand     Candidate
		score    float64
		bestRank int
	}

	byID := make(map[string]*fused)
	order := make([]*fused, 0)
	for _, branch := range branches {
		seen := make(map[string]bool, len(branch))
		for i, c := range branch {
			// a branch contributes once per id
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			rank := i + 1
			f, ok := byID[c.ID]
			if !ok {
				f = &fused{cand: c, bestRank: rank}
				byID[c.ID] = f
				order = append(order, f)
			}
			f.score += 1.0 / (float64(rank) + constant)
			if rank < f.bestRank {
				f.bestRank = rank
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.bestRank != b.bestRank {
			return a.bestRank < b.bestRank
		}
		return a.cand.ID < b.cand.ID
	})

	if topK >= 0 && len(order) > topK {
		order = order[:topK]
	}
	out := make([]Candidate, 0, len(order))
	for _, f := range order {
		c := f.cand
		c.Score = f.score
		out = append(out, c)
	}
	return out
}
