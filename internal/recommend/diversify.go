package recommend

import (
	"sort"

	"github.com/samber/lo"
)

const (
	maxPerBasisArtist = 3
	maxPerCategory    = 15
)

// scoredCandidate pairs a Candidate with its computed score for the
// diversification and persistence stages.
type scoredCandidate struct {
	Candidate
	Confidence float64
	Factors    map[string]float64
}

// diversify implements spec §4.F(e): cap how many candidates share a
// basis artist, cap how many survive per category, and always keep
// candidates with no basis artist (they can't over-represent a single
// seed). Input order is not assumed sorted; output is sorted by
// confidence descending within each category.
func diversify(candidates []scoredCandidate) []scoredCandidate {
	byCategory := lo.GroupBy(candidates, func(c scoredCandidate) string { return string(c.Category) })

	var out []scoredCandidate
	for _, group := range byCategory {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Confidence > group[j].Confidence })

		basisCounts := make(map[uint]int)
		var kept []scoredCandidate
		for _, c := range group {
			if c.BasisArtistID == nil {
				kept = append(kept, c)
				continue
			}
			if basisCounts[*c.BasisArtistID] >= maxPerBasisArtist {
				continue
			}
			basisCounts[*c.BasisArtistID]++
			kept = append(kept, c)
		}

		sort.SliceStable(kept, func(i, j int) bool { return kept[i].Confidence > kept[j].Confidence })
		if len(kept) > maxPerCategory {
			kept = kept[:maxPerCategory]
		}
		out = append(out, kept...)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// dedupe drops candidates that collide on Candidate.key(), keeping the
// first occurrence in input order, which is not necessarily the
// highest-confidence one.
func dedupe(candidates []scoredCandidate) []scoredCandidate {
	return lo.UniqBy(candidates, func(c scoredCandidate) string { return c.key() })
}
