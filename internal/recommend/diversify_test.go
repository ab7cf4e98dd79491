package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vibarr/core/internal/store"
)

func sc(category store.RecommendationCategory, basisArtistID *uint, confidence float64) scoredCandidate {
	return scoredCandidate{
		Candidate:  Candidate{Category: category, BasisArtistID: basisArtistID, TrackTitle: "", AlbumTitle: "", ArtistExternalID: ""},
		Confidence: confidence,
	}
}

func TestDiversifyCapsPerBasisArtist(t *testing.T) {
	artist := uint(1)
	var candidates []scoredCandidate
	for i := 0; i < 6; i++ {
		c := sc(store.CategorySimilarArtists, &artist, float64(i))
		c.ArtistName = "hit"
		candidates = append(candidates, c)
	}

	out := diversify(candidates)

	assert.Len(t, out, maxPerBasisArtist)
}

func TestDiversifyAlwaysKeepsBasislessCandidates(t *testing.T) {
	var candidates []scoredCandidate
	for i := 0; i < 20; i++ {
		candidates = append(candidates, sc(store.CategoryMoodBased, nil, float64(i)))
	}

	out := diversify(candidates)

	assert.Len(t, out, maxPerCategory, "category cap still applies even without a basis artist")
}

func TestDiversifySortsByConfidenceDescending(t *testing.T) {
	a1, a2, a3 := uint(1), uint(2), uint(3)
	candidates := []scoredCandidate{
		sc(store.CategorySimilarArtists, &a1, 0.3),
		sc(store.CategorySimilarArtists, &a2, 0.9),
		sc(store.CategorySimilarArtists, &a3, 0.6),
	}

	out := diversify(candidates)

	require := assert.New(t)
	require.Len(out, 3)
	require.True(out[0].Confidence >= out[1].Confidence)
	require.True(out[1].Confidence >= out[2].Confidence)
}

func TestDedupeDropsDuplicateKeys(t *testing.T) {
	c := Candidate{Category: store.CategorySimilarArtists, ArtistExternalID: "x"}
	candidates := []scoredCandidate{{Candidate: c, Confidence: 0.5}, {Candidate: c, Confidence: 0.9}}

	out := dedupe(candidates)

	assert.Len(t, out, 1)
	assert.Equal(t, 0.5, out[0].Confidence, "dedupe keeps the first occurrence")
}

func TestDiversifyCapsPerCategoryAcrossManyArtists(t *testing.T) {
	var candidates []scoredCandidate
	for i := 0; i < 30; i++ {
		id := uint(i)
		candidates = append(candidates, sc(store.CategoryGenreExplore, &id, float64(i)))
	}

	out := diversify(candidates)

	assert.Len(t, out, maxPerCategory)
}
